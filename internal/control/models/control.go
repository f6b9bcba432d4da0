package models

import (
	"strings"
	"time"

	idmodels "efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
)

// DefaultSubsetID is used when a UIL query names no subsets.
const DefaultSubsetID = "full"

// Control is one externally tracked query.
//
// Invariants:
//   - RequestID is unique and never reassigned
//   - Status only leaves PENDING once, toward a terminal state
//   - RequestIDs lists owned Requests in creation order; Requests point back by ControlID only
type Control struct {
	ID         int64            `json:"-"`
	RequestID  string           `json:"requestId"`
	Type       RequestType      `json:"requestType"`
	Status     Status           `json:"status"`
	DatasetID  string           `json:"datasetId,omitempty"`
	PlatformID string           `json:"platformId,omitempty"`
	GateID     string           `json:"gateId,omitempty"`
	FromGateID string           `json:"fromGateId,omitempty"`
	SubsetIDs  []string         `json:"subsetIds,omitempty"`
	Search     *SearchParameter `json:"searchParameters,omitempty"`
	Authority  *Authority       `json:"authority,omitempty"`
	Error      *ErrorInfo       `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	RequestIDs []int64          `json:"-"`
}

// SearchParameter is the identifier query a Control was created for.
type SearchParameter struct {
	idmodels.Criteria
	GateIndicators []string `json:"eftiGateIndicator,omitempty"`
}

// Authority identifies the competent authority behind a local ask.
type Authority struct {
	Country            string `json:"country"`
	Name               string `json:"name"`
	NationalIdentifier string `json:"nationalUniqueIdentifier"`
	IsEmergencyService bool   `json:"isEmergencyService"`
}

// NewControl builds a PENDING Control. requestID must be freshly generated or
// taken from an inbound conversation.
func NewControl(requestID string, t RequestType, now time.Time) (*Control, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request id is required")
	}
	return &Control{
		RequestID: requestID,
		Type:      t,
		Status:    StatusPending,
		SubsetIDs: []string{DefaultSubsetID},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsLocalGate reports whether the Control targets ownerGateID.
func (c *Control) IsLocalGate(ownerGateID string) bool {
	return strings.EqualFold(c.GateID, ownerGateID)
}

// Fail moves a not-yet-persisted Control straight to ERROR.
func (c *Control) Fail(code ErrorCode, now time.Time) {
	c.Status = StatusError
	c.Error = NewErrorInfo(code)
	c.UpdatedAt = now
}

// Request is one leg of a Control, scoped to a single destination.
//
// Kind selects which Payload field is meaningful.
type Request struct {
	ID            int64       `json:"-"`
	ControlID     int64       `json:"-"`
	Kind          RequestKind `json:"kind"`
	Status        Status      `json:"status"`
	GateIDDest    string      `json:"gateIdDest"`
	CorrelationID string      `json:"-"`
	Payload       Payload     `json:"-"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Payload holds the kind-specific result of a Request.
type Payload struct {
	Data         []byte
	Consignments []idmodels.Consignment
	Note         string
}

// NewRequest builds a PENDING Request for a Control.
func NewRequest(controlID int64, kind RequestKind, gateIDDest string, now time.Time) *Request {
	return &Request{
		ControlID:  controlID,
		Kind:       kind,
		Status:     StatusPending,
		GateIDDest: gateIDDest,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Outcome is a terminal transition applied to a PENDING Request.
type Outcome struct {
	Status  Status
	Payload Payload
	Error   *ErrorInfo
}

// Completed builds a COMPLETE outcome.
func Completed(p Payload) Outcome {
	return Outcome{Status: StatusComplete, Payload: p}
}

// Failed builds an ERROR outcome from the closed code table.
func Failed(code ErrorCode) Outcome {
	return Outcome{Status: StatusError, Error: NewErrorInfo(code)}
}

// TimedOut builds a TIMEOUT outcome.
func TimedOut() Outcome {
	return Outcome{Status: StatusTimeout}
}

// Apply transitions a PENDING Request in memory. Stores use it to keep their
// conditional update and the in-memory view in line.
func (r *Request) Apply(o Outcome, now time.Time) bool {
	if !r.Status.CanTransitionTo(o.Status) {
		return false
	}
	r.Status = o.Status
	r.Error = o.Error
	if o.Status == StatusComplete {
		r.Payload.Data = o.Payload.Data
		r.Payload.Consignments = o.Payload.Consignments
		if o.Payload.Note != "" {
			r.Payload.Note = o.Payload.Note
		}
	}
	r.UpdatedAt = now
	return true
}
