package models

import "fmt"

// Status is shared by Controls and Requests. PENDING is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusComplete Status = "COMPLETE"
	StatusError    Status = "ERROR"
	StatusTimeout  Status = "TIMEOUT"
)

func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusTimeout
}

// CanTransitionTo allows only PENDING → terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusComplete, StatusError, StatusTimeout:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// RequestType distinguishes who asked (local authority, peer gate) and what.
type RequestType string

const (
	TypeLocalUIL               RequestType = "LOCAL_UIL_SEARCH"
	TypeExternalUIL            RequestType = "EXTERNAL_UIL_SEARCH"
	TypeExternalAskUIL         RequestType = "EXTERNAL_ASK_UIL_SEARCH"
	TypeLocalIdentifiers       RequestType = "LOCAL_IDENTIFIERS_SEARCH"
	TypeExternalIdentifiers    RequestType = "EXTERNAL_IDENTIFIERS_SEARCH"
	TypeExternalAskIdentifiers RequestType = "EXTERNAL_ASK_IDENTIFIERS_SEARCH"
	TypeNoteSend               RequestType = "NOTE_SEND"
	TypeExternalNoteSend       RequestType = "EXTERNAL_NOTE_SEND"
)

// IsExternalAsk reports whether the Control answers a query from a peer gate.
func (t RequestType) IsExternalAsk() bool {
	return t == TypeExternalAskUIL || t == TypeExternalAskIdentifiers
}

func (t RequestType) IsUIL() bool {
	return t == TypeLocalUIL || t == TypeExternalUIL || t == TypeExternalAskUIL
}

func (t RequestType) IsIdentifiers() bool {
	return t == TypeLocalIdentifiers || t == TypeExternalIdentifiers || t == TypeExternalAskIdentifiers
}

// RequestKind is the Request variant discriminator.
type RequestKind string

const (
	KindUIL        RequestKind = "UIL"
	KindIdentifier RequestKind = "IDENTIFIER"
	KindNote       RequestKind = "NOTE"
)

func ParseRequestKind(s string) (RequestKind, error) {
	switch k := RequestKind(s); k {
	case KindUIL, KindIdentifier, KindNote:
		return k, nil
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}
