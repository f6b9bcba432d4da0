package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/control/models"
	idmodels "efti-gate/internal/identifiers/models"
	"efti-gate/pkg/platform/sentinel"
)

// Store is the surface both implementations share.
type Store interface {
	CreateControl(ctx context.Context, c *models.Control, reqs []*models.Request) error
	AddRequest(ctx context.Context, r *models.Request) error
	FindControlByRequestID(ctx context.Context, requestID string) (*models.Control, error)
	FindControlByID(ctx context.Context, id int64) (*models.Control, error)
	ListRequests(ctx context.Context, controlID int64) ([]models.Request, error)
	SetCorrelationID(ctx context.Context, requestID int64, correlationID string) error
	FindRequestByCorrelationID(ctx context.Context, correlationID string) (*models.Request, error)
	FindPendingRequest(ctx context.Context, controlID int64, gateIDDest string, kind models.RequestKind) (*models.Request, error)
	ResolveRequest(ctx context.Context, id int64, o models.Outcome, now time.Time) (bool, error)
	ResolveControl(ctx context.Context, id int64, status models.Status, errInfo *models.ErrorInfo, now time.Time) (bool, error)
	ExpirePendingRequests(ctx context.Context, cutoff, now time.Time) ([]int64, error)
	ExpirePendingControls(ctx context.Context, cutoff, now time.Time) (int, error)
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// contractSuite runs the same behaviour checks against any Store.
type contractSuite struct {
	suite.Suite
	store Store
	ctx   context.Context
}

func (s *contractSuite) newControl(requestID string, dests ...string) (*models.Control, []*models.Request) {
	c, err := models.NewControl(requestID, models.TypeExternalUIL, t0)
	s.Require().NoError(err)
	c.GateID = "https://efti.gate.be.eu"
	c.DatasetID = "67fe38bd-6bf7-4b06-b20e-206264bd639c"
	c.PlatformID = "acme"
	reqs := make([]*models.Request, 0, len(dests))
	for _, d := range dests {
		reqs = append(reqs, models.NewRequest(0, models.KindUIL, d, t0))
	}
	s.Require().NoError(s.store.CreateControl(s.ctx, c, reqs))
	return c, reqs
}

// =============================================================================
// Creation
// =============================================================================

func (s *contractSuite) TestCreateControl() {
	s.Run("assigns ids and links requests", func() {
		c, reqs := s.newControl("create-1", "https://efti.gate.be.eu", "https://efti.gate.fr.eu")
		s.NotZero(c.ID)
		s.Require().Len(c.RequestIDs, 2)
		s.Equal(reqs[0].ID, c.RequestIDs[0])
		s.Equal(c.ID, reqs[1].ControlID)

		found, err := s.store.FindControlByRequestID(s.ctx, "create-1")
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
		s.Equal([]string{models.DefaultSubsetID}, found.SubsetIDs)
		s.Equal(c.RequestIDs, found.RequestIDs)
	})

	s.Run("duplicate request id conflicts", func() {
		s.newControl("create-dup")
		c, err := models.NewControl("create-dup", models.TypeLocalUIL, t0)
		s.Require().NoError(err)
		err = s.store.CreateControl(s.ctx, c, nil)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("search parameters round trip", func() {
		c, err := models.NewControl("create-search", models.TypeLocalIdentifiers, t0)
		s.Require().NoError(err)
		dg := true
		c.Search = &models.SearchParameter{
			Criteria: idmodels.Criteria{
				Identifier:     "ABC123",
				Types:          []idmodels.IdentifierType{idmodels.IdentifierEquipment},
				DangerousGoods: &dg,
			},
			GateIndicators: []string{"FR"},
		}
		s.Require().NoError(s.store.CreateControl(s.ctx, c, nil))

		found, err := s.store.FindControlByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Require().NotNil(found.Search)
		s.Equal("ABC123", found.Search.Identifier)
		s.Equal([]string{"FR"}, found.Search.GateIndicators)
		s.Require().NotNil(found.Search.DangerousGoods)
		s.True(*found.Search.DangerousGoods)
	})

	s.Run("unknown control is not found", func() {
		_, err := s.store.FindControlByRequestID(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =============================================================================
// Correlation
// =============================================================================

func (s *contractSuite) TestCorrelation() {
	c, reqs := s.newControl("corr-1", "https://efti.gate.fr.eu")
	s.Require().NoError(s.store.SetCorrelationID(s.ctx, reqs[0].ID, "m-1@domibus.eu"))

	s.Run("lookup by correlation id", func() {
		r, err := s.store.FindRequestByCorrelationID(s.ctx, "m-1@domibus.eu")
		s.Require().NoError(err)
		s.Equal(reqs[0].ID, r.ID)
		s.Equal(c.ID, r.ControlID)
	})

	s.Run("correlation id is unique", func() {
		_, other := s.newControl("corr-2", "https://efti.gate.de.eu")
		err := s.store.SetCorrelationID(s.ctx, other[0].ID, "m-1@domibus.eu")
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("pending request by destination is case insensitive", func() {
		r, err := s.store.FindPendingRequest(s.ctx, c.ID, "HTTPS://EFTI.GATE.FR.EU", models.KindUIL)
		s.Require().NoError(err)
		s.Equal(reqs[0].ID, r.ID)

		_, err = s.store.FindPendingRequest(s.ctx, c.ID, "https://efti.gate.fr.eu", models.KindNote)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =============================================================================
// Transitions
// =============================================================================

func (s *contractSuite) TestResolveRequest() {
	s.Run("applies once", func() {
		_, reqs := s.newControl("resolve-1", "https://efti.gate.fr.eu")
		applied, err := s.store.ResolveRequest(s.ctx, reqs[0].ID, models.Completed(models.Payload{Data: []byte("<c/>")}), t0.Add(time.Second))
		s.Require().NoError(err)
		s.True(applied)

		applied, err = s.store.ResolveRequest(s.ctx, reqs[0].ID, models.Failed(models.ErrAPSubmission), t0.Add(2*time.Second))
		s.Require().NoError(err)
		s.False(applied)

		list, err := s.store.ListRequests(s.ctx, reqs[0].ControlID)
		s.Require().NoError(err)
		s.Equal(models.StatusComplete, list[0].Status)
		s.Equal([]byte("<c/>"), list[0].Payload.Data)
		s.Nil(list[0].Error)
	})

	s.Run("error carries descriptor", func() {
		_, reqs := s.newControl("resolve-2", "https://efti.gate.fr.eu")
		applied, err := s.store.ResolveRequest(s.ctx, reqs[0].ID, models.Failed(models.ErrAPSubmission), t0)
		s.Require().NoError(err)
		s.True(applied)

		list, err := s.store.ListRequests(s.ctx, reqs[0].ControlID)
		s.Require().NoError(err)
		s.Require().NotNil(list[0].Error)
		s.Equal(models.ErrAPSubmission, list[0].Error.Code)
	})

	s.Run("concurrent resolutions apply exactly once", func() {
		_, reqs := s.newControl("resolve-race", "https://efti.gate.fr.eu")
		var (
			wg      sync.WaitGroup
			applied atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.store.ResolveRequest(s.ctx, reqs[0].ID, models.TimedOut(), t0)
				if err == nil && ok {
					applied.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), applied.Load())
	})
}

func (s *contractSuite) TestResolveControl() {
	c, _ := s.newControl("ctl-1")
	applied, err := s.store.ResolveControl(s.ctx, c.ID, models.StatusError, models.NewErrorInfo(models.ErrDataNotFound), t0)
	s.Require().NoError(err)
	s.True(applied)

	applied, err = s.store.ResolveControl(s.ctx, c.ID, models.StatusComplete, nil, t0)
	s.Require().NoError(err)
	s.False(applied)

	found, err := s.store.FindControlByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusError, found.Status)
	s.Require().NotNil(found.Error)
	s.Equal(models.ErrDataNotFound, found.Error.Code)
}

// =============================================================================
// Expiry
// =============================================================================

func (s *contractSuite) TestExpirePending() {
	old, oldReqs := s.newControl("exp-old", "https://efti.gate.fr.eu")

	fresh, err := models.NewControl("exp-fresh", models.TypeExternalUIL, t0.Add(time.Hour))
	s.Require().NoError(err)
	freshReq := models.NewRequest(0, models.KindUIL, "https://efti.gate.fr.eu", t0.Add(time.Hour))
	s.Require().NoError(s.store.CreateControl(s.ctx, fresh, []*models.Request{freshReq}))

	cutoff := t0.Add(time.Minute)
	now := t0.Add(2 * time.Minute)

	ids, err := s.store.ExpirePendingRequests(s.ctx, cutoff, now)
	s.Require().NoError(err)
	s.Contains(ids, old.ID)
	s.NotContains(ids, fresh.ID)

	n, err := s.store.ExpirePendingControls(s.ctx, cutoff, now)
	s.Require().NoError(err)
	s.GreaterOrEqual(n, 1)

	list, err := s.store.ListRequests(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusTimeout, list[0].Status)
	s.Equal(oldReqs[0].ID, list[0].ID)

	found, err := s.store.FindControlByID(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)

	s.Run("late ack after expiry is not applied", func() {
		applied, err := s.store.ResolveRequest(s.ctx, oldReqs[0].ID, models.Completed(models.Payload{}), now)
		s.Require().NoError(err)
		s.False(applied)
	})
}
