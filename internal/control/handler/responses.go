package handler

import (
	"efti-gate/internal/control/models"
	idmodels "efti-gate/internal/identifiers/models"
)

// ResultResponse is the JSON view of a Control result. Data is the dataset
// document as returned by the platform, base64 encoded. Identifiers is present,
// possibly empty, exactly when an identifier search completed.
type ResultResponse struct {
	RequestID        string                 `json:"requestId"`
	Status           string                 `json:"status"`
	ErrorCode        string                 `json:"errorCode,omitempty"`
	ErrorDescription string                 `json:"errorDescription,omitempty"`
	Data             []byte                 `json:"data,omitempty"`
	Identifiers      []idmodels.Consignment `json:"identifiers,omitzero"`
}

// FromResult converts a service result.
func FromResult(res *models.Result) *ResultResponse {
	return &ResultResponse{
		RequestID:        res.RequestID,
		Status:           string(res.Status),
		ErrorCode:        string(res.ErrorCode),
		ErrorDescription: res.ErrorDescription,
		Data:             res.Data,
		Identifiers:      res.Identifiers,
	}
}
