package service

import (
	"context"
	"errors"
	"strings"

	"efti-gate/internal/control/models"
	"efti-gate/internal/edelivery"
	idmodels "efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/requestcontext"
)

// InboundQuery is a peer gate asking the owner gate. Kind selects which of the
// UIL fields or Criteria is meaningful.
type InboundQuery struct {
	RequestID   string
	FromPartyID string
	Kind        models.RequestKind
	GateID      string
	PlatformID  string
	DatasetID   string
	SubsetIDs   []string
	Criteria    idmodels.Criteria
}

// HandleInboundQuery answers a peer query. The Control is keyed by the peer's
// conversation id. A redelivered query attaches to the existing Control and
// only finishes the legs an earlier delivery left undone, so the query runs
// once and the peer gets one answer. The Control holds two legs: the local
// resolution and the response sent back, which completes once the access point
// confirms delivery.
func (s *Service) HandleInboundQuery(ctx context.Context, q InboundQuery) error {
	if strings.TrimSpace(q.RequestID) == "" {
		return dErrors.New(dErrors.CodeValidation, string(models.ErrRequestIDMissing))
	}
	if q.Kind != models.KindUIL && q.Kind != models.KindIdentifier {
		return dErrors.New(dErrors.CodeValidation, "unsupported query kind "+string(q.Kind))
	}
	now := requestcontext.Now(ctx)
	fromGate, err := s.resolver.GateIDForParty(ctx, q.FromPartyID)
	if err != nil {
		return wrapInternal(err, "failed to resolve peer gate")
	}

	t := models.TypeExternalAskUIL
	if q.Kind == models.KindIdentifier {
		t = models.TypeExternalAskIdentifiers
	}
	c, err := models.NewControl(q.RequestID, t, now)
	if err != nil {
		return err
	}
	c.GateID = s.resolver.OwnerID()
	c.FromGateID = fromGate
	if q.Kind == models.KindUIL {
		c.PlatformID = q.PlatformID
		c.DatasetID = q.DatasetID
		if len(q.SubsetIDs) > 0 {
			c.SubsetIDs = q.SubsetIDs
		}
	} else {
		c.Search = &models.SearchParameter{Criteria: q.Criteria}
	}

	local := models.NewRequest(0, q.Kind, c.GateID, now)
	reply := models.NewRequest(0, q.Kind, fromGate, now)
	if err := s.create(ctx, c, local, reply); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		c, local, reply, err = s.attachInboundQuery(ctx, q.RequestID)
		if err != nil || c == nil {
			return err
		}
	}
	return s.answerInboundQuery(ctx, q, c, local, reply)
}

// attachInboundQuery loads the Control an earlier delivery created. A nil
// Control means the reply is already on its way or resolved.
func (s *Service) attachInboundQuery(ctx context.Context, requestID string) (*models.Control, *models.Request, *models.Request, error) {
	c, err := s.store.FindControlByRequestID(ctx, requestID)
	if err != nil {
		return nil, nil, nil, wrapInternal(err, "failed to load control")
	}
	reqs, err := s.store.ListRequests(ctx, c.ID)
	if err != nil {
		return nil, nil, nil, wrapInternal(err, "failed to load requests")
	}
	if !c.Type.IsExternalAsk() || len(reqs) < 2 {
		s.logger.WarnContext(ctx, "inbound query reuses a foreign request id", "request_id", requestID)
		return nil, nil, nil, nil
	}
	local, reply := reqs[0], reqs[1]
	if reply.Status.IsTerminal() || reply.CorrelationID != "" {
		s.logger.InfoContext(ctx, "duplicate inbound query ignored",
			"request_id", requestID,
			"gate_id", c.FromGateID,
		)
		return nil, nil, nil, nil
	}
	s.logger.InfoContext(ctx, "resuming unanswered inbound query",
		"request_id", requestID,
		"gate_id", c.FromGateID,
		"local_status", local.Status,
	)
	return c, &local, &reply, nil
}

// answerInboundQuery resolves the local leg when still PENDING and submits the
// response leg.
func (s *Service) answerInboundQuery(ctx context.Context, q InboundQuery, c *models.Control, local, reply *models.Request) error {
	if local.Status == models.StatusPending {
		var o models.Outcome
		switch {
		case q.Kind == models.KindIdentifier && strings.TrimSpace(q.Criteria.Identifier) == "":
			o = models.Failed(models.ErrIdentifierMissing)
		case q.Kind == models.KindIdentifier:
			o = s.searchLocal(ctx, q.Criteria)
		default:
			if code := missingUILField(q.GateID, q.PlatformID, q.DatasetID); code != "" {
				o = models.Failed(code)
			} else {
				o = s.fetchLocalDataset(ctx, c)
			}
		}
		applied, err := s.resolveRequest(ctx, local, o, requestcontext.Now(ctx))
		if err != nil {
			return wrapInternal(err, "failed to resolve local request")
		}
		if !applied {
			reqs, err := s.store.ListRequests(ctx, c.ID)
			if err != nil {
				return wrapInternal(err, "failed to load requests")
			}
			*local = reqs[0]
		}
	}

	body, buildErr := edelivery.Marshal(responseBody(c.RequestID, *local))
	if err := s.dispatchOrFail(ctx, c, reply, body, buildErr); err != nil {
		return wrapInternal(err, "failed to send response")
	}
	return wrapInternal(s.reconcile(ctx, c.ID), "failed to update control")
}

func responseBody(requestID string, local models.Request) any {
	status, desc := responseStatus(local)
	if local.Kind == models.KindIdentifier {
		return edelivery.IdentifierResponse{
			RequestID:    requestID,
			Status:       string(status),
			Description:  desc,
			Consignments: local.Payload.Consignments,
		}
	}
	resp := edelivery.UILResponse{
		RequestID:   requestID,
		Status:      string(status),
		Description: desc,
	}
	if local.Status == models.StatusComplete {
		resp.Consignment = edelivery.Fragment(local.Payload.Data)
	}
	return resp
}
