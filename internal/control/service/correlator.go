package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"efti-gate/internal/control/models"
	"efti-gate/internal/edelivery"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/requestcontext"
)

// InboundResponse is a peer's answer to one of our query legs.
type InboundResponse struct {
	RequestID   string
	FromPartyID string
	Kind        models.RequestKind
	Status      edelivery.Status
	Description string
	Payload     models.Payload
}

// HandleResponse applies a peer response to the matching PENDING leg. Unknown
// Controls, unmatched legs and legs already resolved are discarded without error.
func (s *Service) HandleResponse(ctx context.Context, resp InboundResponse) error {
	c, err := s.store.FindControlByRequestID(ctx, resp.RequestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.discard(ctx, "response for unknown control", "request_id", resp.RequestID)
			return nil
		}
		return fmt.Errorf("find control: %w", err)
	}
	if c.Type.IsExternalAsk() {
		s.discard(ctx, "response for an external ask", "request_id", resp.RequestID)
		return nil
	}

	gateID, err := s.resolver.GateIDForParty(ctx, resp.FromPartyID)
	if err != nil {
		return err
	}
	r, err := s.store.FindPendingRequest(ctx, c.ID, gateID, resp.Kind)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.discard(ctx, "no pending request for response",
				"request_id", resp.RequestID,
				"gate_id", gateID,
				"kind", resp.Kind,
			)
			return nil
		}
		return fmt.Errorf("find pending request: %w", err)
	}
	return s.apply(ctx, r, responseOutcome(resp))
}

// acknowledge applies o to the PENDING Request carrying correlationID.
// Replays and unknown ids are discarded.
func (s *Service) acknowledge(ctx context.Context, correlationID string, o models.Outcome) error {
	r, err := s.store.FindRequestByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.discard(ctx, "ack for unknown correlation id", "correlation_id", correlationID)
			return nil
		}
		return fmt.Errorf("find request: %w", err)
	}
	return s.apply(ctx, r, o)
}

// HandleSendSuccess completes legs whose only job was delivery: notes and the
// response leg of an external ask. Query legs wait for the peer's answer.
func (s *Service) HandleSendSuccess(ctx context.Context, messageID string) error {
	r, c, ok, err := s.requestForMessage(ctx, messageID)
	if err != nil || !ok {
		return err
	}
	if r.Kind != models.KindNote && !c.Type.IsExternalAsk() {
		return nil
	}
	return s.apply(ctx, r, models.Completed(r.Payload))
}

// HandleSendFailure fails the leg the access point could not deliver.
func (s *Service) HandleSendFailure(ctx context.Context, messageID string) error {
	s.logger.WarnContext(ctx, "access point reported send failure", "correlation_id", messageID)
	return s.acknowledge(ctx, messageID, models.Failed(models.ErrAPSubmission))
}

func (s *Service) requestForMessage(ctx context.Context, messageID string) (*models.Request, *models.Control, bool, error) {
	r, err := s.store.FindRequestByCorrelationID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.DebugContext(ctx, "notification for unknown message", "correlation_id", messageID)
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("find request: %w", err)
	}
	c, err := s.store.FindControlByID(ctx, r.ControlID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("find control: %w", err)
	}
	return r, c, true, nil
}

// apply resolves r and, when the transition applied, re-derives its Control.
func (s *Service) apply(ctx context.Context, r *models.Request, o models.Outcome) error {
	applied, err := s.resolveRequest(ctx, r, o, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if !applied {
		s.discard(ctx, "request already resolved", "correlation_id", r.CorrelationID, "status", o.Status)
		return nil
	}
	s.metrics.IncrementAcks("applied")
	return s.reconcile(ctx, r.ControlID)
}

// reconcile moves a PENDING Control to the status its legs aggregate to.
func (s *Service) reconcile(ctx context.Context, controlID int64) error {
	c, err := s.store.FindControlByID(ctx, controlID)
	if err != nil {
		return fmt.Errorf("find control: %w", err)
	}
	if c.Status.IsTerminal() {
		return nil
	}
	reqs, err := s.store.ListRequests(ctx, controlID)
	if err != nil {
		return fmt.Errorf("list requests: %w", err)
	}
	now := requestcontext.Now(ctx)
	status, done := models.Aggregate(c, reqs, now, s.cfg.PendingTimeout)
	if !done {
		return nil
	}
	var errInfo *models.ErrorInfo
	if status == models.StatusError {
		errInfo = models.FirstError(reqs)
	}
	applied, err := s.store.ResolveControl(ctx, controlID, status, errInfo, now)
	if err != nil {
		return fmt.Errorf("resolve control: %w", err)
	}
	if applied {
		s.metrics.IncrementControlsCompleted(string(status))
		s.logger.InfoContext(ctx, "control resolved",
			"request_id", c.RequestID,
			"status", status,
		)
	}
	return nil
}

func (s *Service) discard(ctx context.Context, msg string, args ...any) {
	s.metrics.IncrementAcks("discarded")
	s.logger.DebugContext(ctx, msg, args...)
}

// responseOutcome maps a peer status onto a Request transition. Error
// descriptions are matched against the code table; a blank one means the
// dataset was not found.
func responseOutcome(resp InboundResponse) models.Outcome {
	switch resp.Status {
	case edelivery.StatusOK:
		return models.Completed(resp.Payload)
	case edelivery.StatusGatewayTimeout:
		return models.TimedOut()
	}
	desc := strings.TrimSpace(resp.Description)
	if desc == "" {
		return models.Failed(models.ErrDataNotFound)
	}
	if code, ok := models.ErrorCodeFromDescription(desc); ok {
		return models.Failed(code)
	}
	if code := models.ErrorCode(strings.ToUpper(desc)); code.Valid() {
		return models.Failed(code)
	}
	return models.Outcome{
		Status: models.StatusError,
		Error:  &models.ErrorInfo{Code: models.ErrDefault, Description: desc},
	}
}

// responseStatus is the eDelivery status reported back for a locally resolved leg.
func responseStatus(r models.Request) (edelivery.Status, string) {
	switch r.Status {
	case models.StatusError:
		if r.Error == nil {
			return edelivery.StatusBadRequest, models.ErrDefault.Description()
		}
		if r.Error.Code == models.ErrIDNotFound || r.Error.Code == models.ErrDataNotFoundOnRegistry {
			return edelivery.StatusNotFound, r.Error.Description
		}
		return edelivery.StatusBadRequest, r.Error.Description
	case models.StatusTimeout:
		return edelivery.StatusGatewayTimeout, ""
	}
	return edelivery.StatusOK, ""
}

// wrapInternal marks store failures surfaced through public operations.
func wrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
