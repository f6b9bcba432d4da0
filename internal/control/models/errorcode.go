package models

import "strings"

// ErrorCode is the closed taxonomy carried by ERROR Controls, Requests and peer responses.
type ErrorCode string

const (
	ErrXML                     ErrorCode = "XML_ERROR"
	ErrGateIDMissing           ErrorCode = "GATE_ID_MISSING"
	ErrGateIDTooLong           ErrorCode = "GATE_ID_TOO_LONG"
	ErrDatasetIDMissing        ErrorCode = "DATASET_ID_MISSING"
	ErrDatasetIDTooLong        ErrorCode = "DATASET_ID_TOO_LONG"
	ErrPlatformIDMissing       ErrorCode = "PLATFORM_ID_MISSING"
	ErrPlatformIDTooLong       ErrorCode = "PLATFORM_ID_TOO_LONG"
	ErrPlatformIDDoesNotExist  ErrorCode = "PLATFORM_ID_DOES_NOT_EXIST"
	ErrRequestIDMissing        ErrorCode = "REQUESTID_MISSING"
	ErrIdentifierMissing       ErrorCode = "IDENTIFIER_MISSING"
	ErrIdentifierTooLong       ErrorCode = "IDENTIFIER_TOO_LONG"
	ErrIdentifierFormat        ErrorCode = "IDENTIFIER_INCORRECT_FORMAT"
	ErrIdentifierTypeIncorrect ErrorCode = "IDENTIFIER_TYPE_INCORRECT"
	ErrRegistrationCountry     ErrorCode = "REGISTRATION_COUNTRY_INCORRECT"
	ErrModeCodeFormat          ErrorCode = "MODE_CODE_INCORRECT_FORMAT"
	ErrGateIndicatorIncorrect  ErrorCode = "GATE_INDICATOR_INCORRECT"
	ErrAPSubmission            ErrorCode = "AP_SUBMISSION_ERROR"
	ErrRequestBuilding         ErrorCode = "REQUEST_BUILDING"
	ErrIDNotFound              ErrorCode = "ID_NOT_FOUND"
	ErrPlatform                ErrorCode = "PLATFORM_ERROR"
	ErrDataNotFound            ErrorCode = "DATA_NOT_FOUND"
	ErrDataNotFoundOnRegistry  ErrorCode = "DATA_NOT_FOUND_ON_REGISTRY"
	ErrDefault                 ErrorCode = "DEFAULT_ERROR"
	ErrNoteTooLong             ErrorCode = "NOTE_TOO_LONG"
)

var errorDescriptions = map[ErrorCode]string{
	ErrXML:                     "Xml error",
	ErrGateIDMissing:           "Missing parameter gateId",
	ErrGateIDTooLong:           "gateId max length is 255 characters.",
	ErrDatasetIDMissing:        "Missing parameter datasetId",
	ErrDatasetIDTooLong:        "datasetId max length is 36 characters.",
	ErrPlatformIDMissing:       "Missing parameter platformId",
	ErrPlatformIDTooLong:       "platformId max length is 255 characters.",
	ErrPlatformIDDoesNotExist:  "Platform with the given id does not exist.",
	ErrRequestIDMissing:        "Missing parameter requestId",
	ErrIdentifierMissing:       "Identifier missing.",
	ErrIdentifierTooLong:       "Identifier too long",
	ErrIdentifierFormat:        "Identifier incorrect format",
	ErrIdentifierTypeIncorrect: "Identifier type is incorrect",
	ErrRegistrationCountry:     "VehicleCountry incorrect",
	ErrModeCodeFormat:          "Mode Code Incorrect : must be one digit",
	ErrGateIndicatorIncorrect:  "GateIndicator incorrect",
	ErrAPSubmission:            "Error during ap submission.",
	ErrRequestBuilding:         "Error while building request.",
	ErrIDNotFound:              " Id not found.",
	ErrPlatform:                "Platform error",
	ErrDataNotFound:            "Data not found.",
	ErrDataNotFoundOnRegistry:  "Data not found on registry.",
	ErrDefault:                 "Error",
	ErrNoteTooLong:             "Note max length is 255 characters.",
}

// Description returns the fixed text for the code.
func (c ErrorCode) Description() string {
	if d, ok := errorDescriptions[c]; ok {
		return d
	}
	return errorDescriptions[ErrDefault]
}

func (c ErrorCode) Valid() bool {
	_, ok := errorDescriptions[c]
	return ok
}

// ErrorCodeFromDescription looks a code up by its description, ignoring case and
// surrounding space. Peers report errors by description only.
func ErrorCodeFromDescription(desc string) (ErrorCode, bool) {
	desc = strings.TrimSpace(desc)
	for code, d := range errorDescriptions {
		if strings.EqualFold(strings.TrimSpace(d), desc) {
			return code, true
		}
	}
	return "", false
}

// ErrorInfo is the error descriptor stored on Controls and Requests.
type ErrorInfo struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
}

// NewErrorInfo builds a descriptor with the code's fixed description.
func NewErrorInfo(code ErrorCode) *ErrorInfo {
	return &ErrorInfo{Code: code, Description: code.Description()}
}
