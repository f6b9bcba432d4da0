package models

import (
	"bytes"
	"sort"
	"time"

	idmodels "efti-gate/internal/identifiers/models"
)

// Aggregate derives a Control status from its query Requests. Note Requests are
// ignored. A Control older than maxAge is TIMEOUT whatever its children say.
// done is false while the Control must stay PENDING.
func Aggregate(c *Control, requests []Request, now time.Time, maxAge time.Duration) (status Status, done bool) {
	if maxAge > 0 && now.Sub(c.CreatedAt) > maxAge {
		return StatusTimeout, true
	}

	var (
		legs     int
		anyError bool
		allOK    = true
	)
	for _, r := range requests {
		if r.Kind == KindNote {
			continue
		}
		legs++
		if !r.Status.IsTerminal() {
			return StatusPending, false
		}
		switch r.Status {
		case StatusError:
			anyError = true
			allOK = false
		case StatusTimeout:
			allOK = false
		}
	}
	if legs == 0 {
		return StatusPending, false
	}
	switch {
	case allOK:
		return StatusComplete, true
	case anyError:
		return StatusError, true
	default:
		return StatusTimeout, true
	}
}

// FirstError returns the first error descriptor among query Requests, if any.
func FirstError(requests []Request) *ErrorInfo {
	for _, r := range requests {
		if r.Kind != KindNote && r.Status == StatusError && r.Error != nil {
			return r.Error
		}
	}
	return nil
}

// Result is the externally visible view of a Control.
type Result struct {
	RequestID        string                 `json:"requestId"`
	Status           Status                 `json:"status"`
	ErrorCode        ErrorCode              `json:"errorCode,omitempty"`
	ErrorDescription string                 `json:"errorDescription,omitempty"`
	Data             []byte                 `json:"data,omitempty"`
	Identifiers      []idmodels.Consignment `json:"identifiers,omitzero"`
}

// BuildResult merges the payloads of completed legs. UIL data is concatenated
// in request order; consignments are merged and sorted by gate id.
func BuildResult(c *Control, requests []Request) *Result {
	res := &Result{RequestID: c.RequestID, Status: c.Status}
	if c.Error != nil {
		res.ErrorCode = c.Error.Code
		res.ErrorDescription = c.Error.Description
	}
	if c.Status != StatusComplete {
		return res
	}

	switch {
	case c.Type.IsUIL():
		var buf bytes.Buffer
		for _, r := range requests {
			if r.Kind == KindUIL && r.Status == StatusComplete {
				buf.Write(r.Payload.Data)
			}
		}
		res.Data = buf.Bytes()
	case c.Type.IsIdentifiers():
		merged := make([]idmodels.Consignment, 0)
		for _, r := range requests {
			if r.Kind == KindIdentifier && r.Status == StatusComplete {
				merged = append(merged, r.Payload.Consignments...)
			}
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].GateID < merged[j].GateID })
		res.Identifiers = merged
	}
	return res
}
