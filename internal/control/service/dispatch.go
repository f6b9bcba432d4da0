package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"efti-gate/internal/control/models"
	"efti-gate/internal/edelivery"
	gatemodels "efti-gate/internal/gate/models"
	idmodels "efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/requestcontext"
)

// UILQuery asks one gate for one dataset.
type UILQuery struct {
	GateID     string
	PlatformID string
	DatasetID  string
	SubsetIDs  []string
	Authority  *models.Authority
}

func (q UILQuery) validate() error {
	if code := missingUILField(q.GateID, q.PlatformID, q.DatasetID); code != "" {
		return dErrors.New(dErrors.CodeValidation, string(code))
	}
	return nil
}

func missingUILField(gateID, platformID, datasetID string) models.ErrorCode {
	switch {
	case strings.TrimSpace(gateID) == "":
		return models.ErrGateIDMissing
	case strings.TrimSpace(platformID) == "":
		return models.ErrPlatformIDMissing
	case strings.TrimSpace(datasetID) == "":
		return models.ErrDatasetIDMissing
	}
	return ""
}

// IdentifiersQuery searches the registries of the indicated gates, or of every
// registered gate when GateIndicators is empty.
type IdentifiersQuery struct {
	Criteria       idmodels.Criteria
	GateIndicators []gatemodels.CountryIndicator
	Authority      *models.Authority
}

func (q IdentifiersQuery) validate() error {
	if strings.TrimSpace(q.Criteria.Identifier) == "" {
		return dErrors.New(dErrors.CodeValidation, string(models.ErrIdentifierMissing))
	}
	for _, g := range q.GateIndicators {
		if !g.IsValid() {
			return dErrors.New(dErrors.CodeValidation, string(models.ErrGateIndicatorIncorrect))
		}
	}
	return nil
}

// CreateUILControl creates a Control with a single UIL Request. A local gate is
// answered from the registry and the local platform before returning; a
// foreign gate is asked through the access point.
func (s *Service) CreateUILControl(ctx context.Context, q UILQuery) (*models.Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	local := s.resolver.IsLocal(q.GateID)
	t := models.TypeExternalUIL
	if local {
		t = models.TypeLocalUIL
	}

	c, err := models.NewControl(s.newID(), t, now)
	if err != nil {
		return nil, err
	}
	c.GateID = q.GateID
	c.PlatformID = q.PlatformID
	c.DatasetID = q.DatasetID
	c.Authority = q.Authority
	if len(q.SubsetIDs) > 0 {
		c.SubsetIDs = q.SubsetIDs
	}
	r := models.NewRequest(0, models.KindUIL, q.GateID, now)
	if err := s.create(ctx, c, r); err != nil {
		return nil, err
	}

	if local {
		if _, err := s.resolveRequest(ctx, r, s.fetchLocalDataset(ctx, c), now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve local request")
		}
	} else {
		body, buildErr := edelivery.Marshal(edelivery.UILQuery{
			RequestID: c.RequestID,
			UIL:       edelivery.UIL{GateID: c.GateID, PlatformID: c.PlatformID, DatasetID: c.DatasetID},
			SubsetIDs: c.SubsetIDs,
		})
		if err := s.dispatchOrFail(ctx, c, r, body, buildErr); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to dispatch request")
		}
	}

	if err := s.reconcile(ctx, c.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update control")
	}
	return s.GetResult(ctx, c.RequestID)
}

// CreateIdentifiersControl fans an identifier search out to the resolved gates.
// Indicators without a registered gate become ERROR legs; the owner gate is
// searched in the caller's turn and peers are asked concurrently.
func (s *Service) CreateIdentifiersControl(ctx context.Context, q IdentifiersQuery) (*models.Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	dests, err := s.resolver.ResolveCountries(ctx, q.GateIndicators)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve gates")
	}

	c, err := models.NewControl(s.newID(), models.TypeLocalIdentifiers, now)
	if err != nil {
		return nil, err
	}
	c.GateID = s.resolver.OwnerID()
	c.Authority = q.Authority
	c.Search = &models.SearchParameter{Criteria: q.Criteria}
	for _, g := range q.GateIndicators {
		c.Search.GateIndicators = append(c.Search.GateIndicators, g.String())
	}

	var (
		local  *models.Request
		remote []*models.Request
		all    []*models.Request
	)
	for _, d := range dests {
		switch {
		case d.Absent():
			r := models.NewRequest(0, models.KindIdentifier, d.Country.String(), now)
			r.Apply(models.Failed(models.ErrGateIndicatorIncorrect), now)
			all = append(all, r)
		case s.resolver.IsLocal(d.Gate.ID):
			if local == nil {
				local = models.NewRequest(0, models.KindIdentifier, d.Gate.ID, now)
				all = append(all, local)
			}
		default:
			r := models.NewRequest(0, models.KindIdentifier, d.Gate.ID, now)
			remote = append(remote, r)
			all = append(all, r)
		}
	}
	if local == nil && len(q.GateIndicators) == 0 {
		local = models.NewRequest(0, models.KindIdentifier, s.resolver.OwnerID(), now)
		all = append(all, local)
	}
	if err := s.create(ctx, c, all...); err != nil {
		return nil, err
	}

	if local != nil {
		if _, err := s.resolveRequest(ctx, local, s.searchLocal(ctx, q.Criteria), now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve local request")
		}
	}
	if len(remote) > 0 {
		body, buildErr := edelivery.Marshal(identifierQueryBody(c.RequestID, q.Criteria))
		var g errgroup.Group
		g.SetLimit(s.cfg.DispatchConcurrency)
		for _, r := range remote {
			g.Go(func() error {
				return s.dispatchOrFail(ctx, c, r, body, buildErr)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to dispatch requests")
		}
	}

	if err := s.reconcile(ctx, c.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update control")
	}
	return s.GetResult(ctx, c.RequestID)
}

// GetResult returns the externally visible state of a Control.
func (s *Service) GetResult(ctx context.Context, requestID string) (*models.Result, error) {
	c, err := s.store.FindControlByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "control not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load control")
	}
	reqs, err := s.store.ListRequests(ctx, c.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requests")
	}
	return models.BuildResult(c, reqs), nil
}

func (s *Service) create(ctx context.Context, c *models.Control, reqs ...*models.Request) error {
	if err := s.store.CreateControl(ctx, c, reqs); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "request id already in use")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create control")
	}
	s.metrics.IncrementControlsCreated(string(c.Type))
	s.logger.InfoContext(ctx, "control created",
		"request_id", c.RequestID,
		"request_type", c.Type,
		"gate_id", c.GateID,
		"requests", len(reqs),
	)
	return nil
}

// fetchLocalDataset answers a UIL leg from the owner gate's registry and platform.
func (s *Service) fetchLocalDataset(ctx context.Context, c *models.Control) models.Outcome {
	if !s.datasets.KnowsPlatform(c.PlatformID) {
		return models.Failed(models.ErrPlatformIDDoesNotExist)
	}
	known, err := s.identifiers.ExistsByUIL(ctx, s.resolver.OwnerID(), c.DatasetID, c.PlatformID)
	if err != nil {
		s.logger.ErrorContext(ctx, "registry lookup failed", "request_id", c.RequestID, "error", err)
		return models.Failed(models.ErrDefault)
	}
	if !known {
		return models.Failed(models.ErrDataNotFoundOnRegistry)
	}
	data, err := s.datasets.FetchDataset(ctx, c.PlatformID, c.DatasetID, c.SubsetIDs)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Failed(models.ErrDataNotFound)
		}
		s.logger.ErrorContext(ctx, "platform fetch failed",
			"request_id", c.RequestID,
			"platform_id", c.PlatformID,
			"error", err,
		)
		return models.Failed(models.ErrPlatform)
	}
	return models.Completed(models.Payload{Data: data})
}

func (s *Service) searchLocal(ctx context.Context, criteria idmodels.Criteria) models.Outcome {
	found, err := s.identifiers.Search(ctx, criteria)
	if err != nil {
		s.logger.ErrorContext(ctx, "local identifier search failed", "identifier", criteria.Identifier, "error", err)
		return models.Failed(models.ErrDefault)
	}
	return models.Completed(models.Payload{Consignments: found})
}

// dispatchOrFail submits body for r, or fails r with REQUEST_BUILDING when the
// body could not be built. Only store failures are returned.
func (s *Service) dispatchOrFail(ctx context.Context, c *models.Control, r *models.Request, body []byte, buildErr error) error {
	if buildErr != nil {
		s.logger.ErrorContext(ctx, "request body build failed", "request_id", c.RequestID, "error", buildErr)
		_, err := s.resolveRequest(ctx, r, models.Failed(models.ErrRequestBuilding), requestcontext.Now(ctx))
		return err
	}
	return s.dispatch(ctx, c, r, body)
}

// dispatch records a pre-generated correlation id on r and submits body to
// r's destination. A failed submission moves r to ERROR; only store failures
// are returned.
func (s *Service) dispatch(ctx context.Context, c *models.Control, r *models.Request, body []byte) error {
	ctx, span := s.tracer.Start(ctx, "control.dispatch", trace.WithAttributes(
		attribute.String("efti.request_id", c.RequestID),
		attribute.String("efti.gate_id_dest", r.GateIDDest),
		attribute.String("efti.request_kind", string(r.Kind)),
	))
	defer span.End()

	msgID := s.messageID()
	if err := s.store.SetCorrelationID(ctx, r.ID, msgID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set correlation id")
		return fmt.Errorf("set correlation id: %w", err)
	}
	r.CorrelationID = msgID

	receiver, err := s.receiverFor(ctx, r.GateIDDest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve receiver")
		return err
	}

	start := time.Now()
	assigned, err := s.sender.Send(ctx, edelivery.Message{
		ConversationID: c.RequestID,
		Receiver:       receiver,
		MessageID:      msgID,
		Body:           body,
	})
	if err != nil {
		s.metrics.ObserveDispatch("failed", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		s.logger.WarnContext(ctx, "dispatch failed",
			"request_id", c.RequestID,
			"gate_id", r.GateIDDest,
			"correlation_id", msgID,
			"error", err,
		)
		_, rerr := s.resolveRequest(ctx, r, models.Failed(models.ErrAPSubmission), requestcontext.Now(ctx))
		return rerr
	}
	s.metrics.ObserveDispatch("sent", time.Since(start))

	if assigned != msgID {
		if err := s.store.SetCorrelationID(ctx, r.ID, assigned); err != nil {
			span.RecordError(err)
			return fmt.Errorf("set assigned correlation id: %w", err)
		}
		r.CorrelationID = assigned
	}
	span.SetAttributes(attribute.String("efti.correlation_id", r.CorrelationID))
	s.logger.DebugContext(ctx, "request dispatched",
		"request_id", c.RequestID,
		"gate_id", r.GateIDDest,
		"correlation_id", r.CorrelationID,
	)
	return nil
}

// receiverFor returns the access point party of a gate, which defaults to the
// gate id itself.
func (s *Service) receiverFor(ctx context.Context, gateID string) (string, error) {
	g, err := s.resolver.Gate(ctx, gateID)
	if err != nil {
		return "", fmt.Errorf("resolve receiver: %w", err)
	}
	if g != nil && g.PartyID != "" {
		return g.PartyID, nil
	}
	return gateID, nil
}

// resolveRequest applies o to r in the store and mirrors it on r when applied.
func (s *Service) resolveRequest(ctx context.Context, r *models.Request, o models.Outcome, now time.Time) (bool, error) {
	applied, err := s.store.ResolveRequest(ctx, r.ID, o, now)
	if err != nil {
		return false, fmt.Errorf("resolve request: %w", err)
	}
	if applied {
		r.Apply(o, now)
	}
	return applied, nil
}

func identifierQueryBody(requestID string, c idmodels.Criteria) edelivery.IdentifierQuery {
	q := edelivery.IdentifierQuery{
		RequestID:               requestID,
		Identifier:              c.Identifier,
		ModeCode:                c.ModeCode,
		RegistrationCountryCode: c.RegistrationCountry,
		DangerousGoodsIndicator: c.DangerousGoods,
	}
	for _, t := range c.Types {
		q.IdentifierTypes = append(q.IdentifierTypes, string(t))
	}
	return q
}
