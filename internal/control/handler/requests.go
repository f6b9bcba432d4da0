package handler

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"efti-gate/internal/control/models"
	"efti-gate/internal/control/service"
	gatemodels "efti-gate/internal/gate/models"
	idmodels "efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
	pkgstrings "efti-gate/pkg/platform/strings"
)

const (
	maxGateIDLength     = 255
	maxPlatformIDLength = 255
	maxDatasetIDLength  = 36
	maxIdentifierLength = 255
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	modeCodePattern   = regexp.MustCompile(`^[1-9]$`)
)

func invalid(code models.ErrorCode) error {
	return dErrors.New(dErrors.CodeValidation, string(code))
}

// AuthorityRequest identifies the competent authority behind a control.
type AuthorityRequest struct {
	Country            string `json:"country"`
	Name               string `json:"name"`
	NationalIdentifier string `json:"nationalUniqueIdentifier"`
	IsEmergencyService bool   `json:"isEmergencyService"`
}

func (a *AuthorityRequest) toModel() *models.Authority {
	if a == nil {
		return nil
	}
	return &models.Authority{
		Country:            strings.TrimSpace(a.Country),
		Name:               strings.TrimSpace(a.Name),
		NationalIdentifier: strings.TrimSpace(a.NationalIdentifier),
		IsEmergencyService: a.IsEmergencyService,
	}
}

// UILRequest is the body of POST /v1/controls/uil.
type UILRequest struct {
	GateID     string            `json:"gateId"`
	PlatformID string            `json:"platformId"`
	DatasetID  string            `json:"datasetId"`
	SubsetIDs  []string          `json:"subsetIds"`
	Authority  *AuthorityRequest `json:"authority,omitempty"`
}

// Validate implements httputil.Validatable.
func (r *UILRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.GateID = strings.TrimSpace(r.GateID)
	r.PlatformID = strings.TrimSpace(r.PlatformID)
	r.DatasetID = strings.TrimSpace(r.DatasetID)
	r.SubsetIDs = pkgstrings.DedupeAndTrim(r.SubsetIDs)

	switch {
	case r.GateID == "":
		return invalid(models.ErrGateIDMissing)
	case utf8.RuneCountInString(r.GateID) > maxGateIDLength:
		return invalid(models.ErrGateIDTooLong)
	case r.PlatformID == "":
		return invalid(models.ErrPlatformIDMissing)
	case utf8.RuneCountInString(r.PlatformID) > maxPlatformIDLength:
		return invalid(models.ErrPlatformIDTooLong)
	case r.DatasetID == "":
		return invalid(models.ErrDatasetIDMissing)
	case utf8.RuneCountInString(r.DatasetID) > maxDatasetIDLength:
		return invalid(models.ErrDatasetIDTooLong)
	}
	return nil
}

func (r *UILRequest) toQuery() service.UILQuery {
	return service.UILQuery{
		GateID:     r.GateID,
		PlatformID: r.PlatformID,
		DatasetID:  r.DatasetID,
		SubsetIDs:  r.SubsetIDs,
		Authority:  r.Authority.toModel(),
	}
}

// IdentifiersRequest is the body of POST /v1/controls/identifiers.
type IdentifiersRequest struct {
	Identifier              string            `json:"identifier"`
	IdentifierTypes         []string          `json:"identifierType"`
	ModeCode                string            `json:"modeCode"`
	RegistrationCountryCode string            `json:"registrationCountryCode"`
	DangerousGoodsIndicator *bool             `json:"dangerousGoodsIndicator"`
	GateIndicators          []string          `json:"eftiGateIndicator"`
	Authority               *AuthorityRequest `json:"authority,omitempty"`

	parsedTypes []idmodels.IdentifierType
	parsedGates []gatemodels.CountryIndicator
}

// Validate implements httputil.Validatable.
func (r *IdentifiersRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Identifier = strings.TrimSpace(r.Identifier)
	switch {
	case r.Identifier == "":
		return invalid(models.ErrIdentifierMissing)
	case utf8.RuneCountInString(r.Identifier) > maxIdentifierLength:
		return invalid(models.ErrIdentifierTooLong)
	case !identifierPattern.MatchString(r.Identifier):
		return invalid(models.ErrIdentifierFormat)
	}

	r.ModeCode = strings.TrimSpace(r.ModeCode)
	if r.ModeCode != "" && !modeCodePattern.MatchString(r.ModeCode) {
		return invalid(models.ErrModeCodeFormat)
	}

	r.RegistrationCountryCode = strings.TrimSpace(r.RegistrationCountryCode)
	if r.RegistrationCountryCode != "" {
		c, err := gatemodels.ParseCountryIndicator(r.RegistrationCountryCode)
		if err != nil {
			return invalid(models.ErrRegistrationCountry)
		}
		r.RegistrationCountryCode = c.String()
	}

	r.parsedTypes = r.parsedTypes[:0]
	for _, raw := range pkgstrings.DedupeAndTrimLower(r.IdentifierTypes) {
		t, ok := idmodels.ParseIdentifierType(raw)
		if !ok {
			return invalid(models.ErrIdentifierTypeIncorrect)
		}
		r.parsedTypes = append(r.parsedTypes, t)
	}

	r.parsedGates = r.parsedGates[:0]
	for _, raw := range pkgstrings.DedupeAndTrimUpper(r.GateIndicators) {
		g, err := gatemodels.ParseCountryIndicator(raw)
		if err != nil {
			return invalid(models.ErrGateIndicatorIncorrect)
		}
		r.parsedGates = append(r.parsedGates, g)
	}
	return nil
}

func (r *IdentifiersRequest) toQuery() service.IdentifiersQuery {
	return service.IdentifiersQuery{
		Criteria: idmodels.Criteria{
			Identifier:          r.Identifier,
			Types:               r.parsedTypes,
			ModeCode:            r.ModeCode,
			RegistrationCountry: r.RegistrationCountryCode,
			DangerousGoods:      r.DangerousGoodsIndicator,
		},
		GateIndicators: r.parsedGates,
		Authority:      r.Authority.toModel(),
	}
}

// NoteRequest is the body of POST /v1/controls/{requestId}/notes.
type NoteRequest struct {
	Message string `json:"message"`
}

// Validate implements httputil.Validatable. Length is checked by the service.
func (r *NoteRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Message) == "" {
		return dErrors.New(dErrors.CodeValidation, "message is required")
	}
	return nil
}
