package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"efti-gate/internal/control/models"
	"efti-gate/internal/edelivery"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/requestcontext"
)

const maxNoteLength = 255

// SendNote attaches a follow-up message to an existing Control. Notes for the
// owner gate go to the local platform; others travel to the Control's gate.
func (s *Service) SendNote(ctx context.Context, requestID, message string) error {
	if strings.TrimSpace(message) == "" {
		return dErrors.New(dErrors.CodeValidation, "note message is required")
	}
	if utf8.RuneCountInString(message) > maxNoteLength {
		return dErrors.New(dErrors.CodeValidation, string(models.ErrNoteTooLong))
	}
	c, err := s.store.FindControlByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, string(models.ErrIDNotFound))
		}
		return wrapInternal(err, "failed to load control")
	}
	if !c.Type.IsUIL() {
		return dErrors.New(dErrors.CodeValidation, "notes can only follow a dataset control")
	}
	now := requestcontext.Now(ctx)

	r := models.NewRequest(c.ID, models.KindNote, c.GateID, now)
	r.Payload.Note = message
	if err := s.store.AddRequest(ctx, r); err != nil {
		return wrapInternal(err, "failed to record note")
	}

	if s.resolver.IsLocal(c.GateID) {
		return s.deliverNoteLocally(ctx, c, r)
	}

	body, buildErr := edelivery.Marshal(edelivery.PostFollowUpRequest{
		RequestID: c.RequestID,
		UIL:       &edelivery.UIL{GateID: c.GateID, PlatformID: c.PlatformID, DatasetID: c.DatasetID},
		Message:   message,
	})
	if err := s.dispatchOrFail(ctx, c, r, body, buildErr); err != nil {
		return wrapInternal(err, "failed to send note")
	}
	if r.Status == models.StatusError {
		return dErrors.New(dErrors.CodeUnavailable, "note was not sent")
	}
	return nil
}

// HandleInboundNote forwards a peer's note to the local platform. Notes for
// unknown Controls are dropped.
func (s *Service) HandleInboundNote(ctx context.Context, requestID, fromPartyID, message string) error {
	c, err := s.store.FindControlByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "note for unknown control dropped", "request_id", requestID)
			return nil
		}
		return fmt.Errorf("find control: %w", err)
	}
	if !c.Type.IsUIL() {
		s.logger.WarnContext(ctx, "note for non-dataset control dropped", "request_id", requestID)
		return nil
	}
	if utf8.RuneCountInString(message) > maxNoteLength {
		s.logger.WarnContext(ctx, "oversized note dropped", "request_id", requestID, "from", fromPartyID)
		return nil
	}

	r := models.NewRequest(c.ID, models.KindNote, s.resolver.OwnerID(), requestcontext.Now(ctx))
	r.Payload.Note = message
	if err := s.store.AddRequest(ctx, r); err != nil {
		return fmt.Errorf("record note: %w", err)
	}
	if err := s.deliverNoteLocally(ctx, c, r); err != nil && !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		return err
	}
	return nil
}

func (s *Service) deliverNoteLocally(ctx context.Context, c *models.Control, r *models.Request) error {
	now := requestcontext.Now(ctx)
	if err := s.datasets.PostNote(ctx, c.PlatformID, c.DatasetID, r.Payload.Note); err != nil {
		s.logger.ErrorContext(ctx, "platform rejected note",
			"request_id", c.RequestID,
			"platform_id", c.PlatformID,
			"error", err,
		)
		if _, rerr := s.resolveRequest(ctx, r, models.Failed(models.ErrPlatform), now); rerr != nil {
			return wrapInternal(rerr, "failed to record note")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "note was not delivered")
	}
	if _, err := s.resolveRequest(ctx, r, models.Completed(r.Payload), now); err != nil {
		return wrapInternal(err, "failed to record note")
	}
	s.logger.InfoContext(ctx, "note delivered to platform", "request_id", c.RequestID)
	return nil
}
