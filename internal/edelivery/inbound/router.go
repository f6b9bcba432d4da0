// Package inbound turns access point notifications into Control operations.
//
// Each notification is deduplicated by message id, then routed by type and,
// for received messages, by the root element of the peer document.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"efti-gate/internal/control/models"
	"efti-gate/internal/control/service"
	"efti-gate/internal/edelivery"
	idmodels "efti-gate/internal/identifiers/models"
	"efti-gate/internal/platform/kafka/consumer"
	"efti-gate/internal/platform/metrics"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/requestcontext"
)

// Controls is the part of the control service notifications drive.
type Controls interface {
	HandleInboundQuery(ctx context.Context, q service.InboundQuery) error
	HandleResponse(ctx context.Context, resp service.InboundResponse) error
	HandleInboundNote(ctx context.Context, requestID, fromPartyID, message string) error
	HandleSendSuccess(ctx context.Context, messageID string) error
	HandleSendFailure(ctx context.Context, messageID string) error
}

// Registrar stores identifier declarations pushed by the local platform.
type Registrar interface {
	Register(ctx context.Context, c *idmodels.Consignment) error
}

// Deduper remembers which notifications were already handled.
type Deduper interface {
	MarkNew(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

var (
	errMalformed  = errors.New("malformed notification")
	errUnroutable = errors.New("unroutable notification")
)

// Router implements consumer.Handler for the notification topic.
type Router struct {
	controls    Controls
	registrar   Registrar
	dedupe      Deduper
	ownerGateID string

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = t
	}
}

func NewRouter(controls Controls, registrar Registrar, dedupe Deduper, ownerGateID string, opts ...Option) (*Router, error) {
	switch {
	case controls == nil:
		return nil, errors.New("control service is required")
	case registrar == nil:
		return nil, errors.New("identifier registrar is required")
	case dedupe == nil:
		return nil, errors.New("deduper is required")
	}
	r := &Router{
		controls:    controls,
		registrar:   registrar,
		dedupe:      dedupe,
		ownerGateID: ownerGateID,
		logger:      slog.Default(),
		tracer:      otel.Tracer("efti-gate/inbound"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

var _ consumer.Handler = (*Router)(nil)

// Handle processes one notification record. Malformed, duplicate and
// unroutable records are skipped without error; a failed handler releases the
// dedupe marker so the consumer's retry, or a redelivery after a restart, is
// handled again.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	n, err := edelivery.ParseNotification(msg.Value)
	if err != nil {
		r.metrics.IncrementSkipped("malformed")
		r.logger.WarnContext(ctx, "malformed notification skipped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	ctx = requestcontext.WithRequestID(ctx, n.MessageID)

	fresh, err := r.dedupe.MarkNew(ctx, n.MessageID)
	if err != nil {
		r.logger.WarnContext(ctx, "dedupe unavailable, handling anyway", "message_id", n.MessageID, "error", err)
		fresh = true
	}
	if !fresh {
		r.metrics.IncrementSkipped("duplicate")
		r.logger.DebugContext(ctx, "duplicate notification skipped", "message_id", n.MessageID)
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "inbound.notification", trace.WithAttributes(
		attribute.String("efti.notification_type", string(n.Type)),
		attribute.String("efti.message_id", n.MessageID),
		attribute.String("efti.conversation_id", n.ConversationID),
	))
	defer span.End()

	err = r.route(ctx, n)
	switch {
	case err == nil:
		r.metrics.IncrementConsumed(string(n.Type), "handled")
		return nil
	case errors.Is(err, errMalformed), dErrors.HasCode(err, dErrors.CodeValidation):
		r.metrics.IncrementSkipped("malformed")
		r.logger.WarnContext(ctx, "undecodable peer document skipped", "message_id", n.MessageID, "error", err)
		return nil
	case errors.Is(err, errUnroutable):
		r.metrics.IncrementSkipped("unroutable")
		r.logger.WarnContext(ctx, "unroutable notification skipped", "message_id", n.MessageID, "error", err)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "handler failed")
	r.metrics.IncrementConsumed(string(n.Type), "failed")
	if rerr := r.dedupe.Release(ctx, n.MessageID); rerr != nil {
		r.logger.WarnContext(ctx, "dedupe release failed", "message_id", n.MessageID, "error", rerr)
	}
	return fmt.Errorf("handle %s notification %s: %w", n.Type, n.MessageID, err)
}

func (r *Router) route(ctx context.Context, n edelivery.Notification) error {
	switch n.Type {
	case edelivery.NotificationSendSuccess:
		return r.controls.HandleSendSuccess(ctx, n.MessageID)
	case edelivery.NotificationSendFailure:
		return r.controls.HandleSendFailure(ctx, n.MessageID)
	}

	body := []byte(n.Body)
	root, err := edelivery.RootElement(body)
	if err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	ctx = requestcontext.WithPeerGateID(ctx, n.FromPartyID)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("efti.document", root))

	switch root {
	case edelivery.RootUILQuery:
		var q edelivery.UILQuery
		if err := decode(body, &q); err != nil {
			return err
		}
		return r.controls.HandleInboundQuery(ctx, service.InboundQuery{
			RequestID:   requestID(q.RequestID, n),
			FromPartyID: n.FromPartyID,
			Kind:        models.KindUIL,
			GateID:      q.UIL.GateID,
			PlatformID:  q.UIL.PlatformID,
			DatasetID:   q.UIL.DatasetID,
			SubsetIDs:   q.SubsetIDs,
		})

	case edelivery.RootIdentifierQuery:
		var q edelivery.IdentifierQuery
		if err := decode(body, &q); err != nil {
			return err
		}
		return r.controls.HandleInboundQuery(ctx, service.InboundQuery{
			RequestID:   requestID(q.RequestID, n),
			FromPartyID: n.FromPartyID,
			Kind:        models.KindIdentifier,
			Criteria:    r.criteria(ctx, q),
		})

	case edelivery.RootUILResponse:
		var resp edelivery.UILResponse
		if err := decode(body, &resp); err != nil {
			return err
		}
		var data []byte
		if resp.Consignment != nil {
			data = resp.Consignment.Inner
		}
		return r.controls.HandleResponse(ctx, service.InboundResponse{
			RequestID:   requestID(resp.RequestID, n),
			FromPartyID: n.FromPartyID,
			Kind:        models.KindUIL,
			Status:      peerStatus(resp.Status),
			Description: resp.Description,
			Payload:     models.Payload{Data: data},
		})

	case edelivery.RootIdentifierResponse:
		var resp edelivery.IdentifierResponse
		if err := decode(body, &resp); err != nil {
			return err
		}
		return r.controls.HandleResponse(ctx, service.InboundResponse{
			RequestID:   requestID(resp.RequestID, n),
			FromPartyID: n.FromPartyID,
			Kind:        models.KindIdentifier,
			Status:      peerStatus(resp.Status),
			Description: resp.Description,
			Payload:     models.Payload{Consignments: resp.Consignments},
		})

	case edelivery.RootPostFollowUpRequest:
		var note edelivery.PostFollowUpRequest
		if err := decode(body, &note); err != nil {
			return err
		}
		return r.controls.HandleInboundNote(ctx, requestID(note.RequestID, n), n.FromPartyID, note.Message)

	case edelivery.RootSaveIdentifiersRequest:
		var save edelivery.SaveIdentifiersRequest
		if err := decode(body, &save); err != nil {
			return err
		}
		c := save.Consignment
		if c.DatasetID == "" {
			c.DatasetID = save.DatasetID
		}
		if c.PlatformID == "" {
			c.PlatformID = n.FromPartyID
		}
		if c.GateID == "" {
			c.GateID = r.ownerGateID
		}
		return r.registrar.Register(ctx, &c)
	}
	return fmt.Errorf("%w: root element %q", errUnroutable, root)
}

func (r *Router) criteria(ctx context.Context, q edelivery.IdentifierQuery) idmodels.Criteria {
	c := idmodels.Criteria{
		Identifier:          q.Identifier,
		ModeCode:            q.ModeCode,
		RegistrationCountry: q.RegistrationCountryCode,
		DangerousGoods:      q.DangerousGoodsIndicator,
	}
	for _, raw := range q.IdentifierTypes {
		t, ok := idmodels.ParseIdentifierType(raw)
		if !ok {
			r.logger.WarnContext(ctx, "unknown identifier type ignored", "identifier_type", raw)
			continue
		}
		c.Types = append(c.Types, t)
	}
	return c
}

func decode(body []byte, v any) error {
	if err := edelivery.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	return nil
}

// requestID prefers the id carried in the document over the conversation id.
func requestID(fromBody string, n edelivery.Notification) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	return n.ConversationID
}

// peerStatus reads a response status; anything outside the protocol is a bad request.
func peerStatus(raw string) edelivery.Status {
	if st, ok := edelivery.ParseStatus(raw); ok {
		return st
	}
	return edelivery.StatusBadRequest
}
