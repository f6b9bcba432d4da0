// Package service tracks Controls from intake to a terminal status.
//
// A Control fans out into Requests, one per destination. Local legs resolve in
// the caller's turn; peer legs are submitted to the access point and resolved
// later by the correlator or the timeout sweep. Every transition out of PENDING
// goes through a conditional store update, so concurrent acks, sweeps and
// notifications never apply twice.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"efti-gate/internal/control/metrics"
	"efti-gate/internal/control/models"
	"efti-gate/internal/edelivery"
	gatemodels "efti-gate/internal/gate/models"
	idmodels "efti-gate/internal/identifiers/models"
)

// Store persists Controls and their Requests.
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

// Resolver is the gate directory seen from the owner gate.
type Resolver interface {
	OwnerID() string
	IsLocal(gateID string) bool
	ResolveCountries(ctx context.Context, indicators []gatemodels.CountryIndicator) ([]gatemodels.Destination, error)
	Gate(ctx context.Context, gateID string) (*gatemodels.Gate, error)
	GateIDForParty(ctx context.Context, partyID string) (string, error)
}

// Identifiers is the local identifier registry.
type Identifiers interface {
	Search(ctx context.Context, c idmodels.Criteria) ([]idmodels.Consignment, error)
	ExistsByUIL(ctx context.Context, gateID, datasetID, platformID string) (bool, error)
}

// Sender submits a message to the access point and returns its message id.
type Sender interface {
	Send(ctx context.Context, msg edelivery.Message) (string, error)
}

// DatasetSource is the platform behind the owner gate. FetchDataset returns an
// error wrapping sentinel.ErrNotFound when the dataset does not exist.
type DatasetSource interface {
	KnowsPlatform(platformID string) bool
	FetchDataset(ctx context.Context, platformID, datasetID string, subsetIDs []string) ([]byte, error)
	PostNote(ctx context.Context, platformID, datasetID, message string) error
}

// Config holds the lifecycle knobs.
type Config struct {
	PendingTimeout      time.Duration
	DispatchConcurrency int
}

const (
	defaultPendingTimeout      = 60 * time.Second
	defaultDispatchConcurrency = 4
)

// Service is the Control tracker, dispatcher and correlator.
type Service struct {
	store       Store
	resolver    Resolver
	identifiers Identifiers
	sender      Sender
	datasets    DatasetSource
	cfg         Config

	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	newID     func() string
	messageID func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithRequestIDGenerator replaces the uuid generator used for new requestIds.
func WithRequestIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// WithMessageIDGenerator replaces the access point message id generator.
func WithMessageIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.messageID = gen
	}
}

func New(store Store, resolver Resolver, identifiers Identifiers, sender Sender, datasets DatasetSource, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("control store is required")
	case resolver == nil:
		return nil, errors.New("gate resolver is required")
	case identifiers == nil:
		return nil, errors.New("identifier registry is required")
	case sender == nil:
		return nil, errors.New("sender is required")
	case datasets == nil:
		return nil, errors.New("dataset source is required")
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = defaultPendingTimeout
	}
	if cfg.DispatchConcurrency <= 0 {
		cfg.DispatchConcurrency = defaultDispatchConcurrency
	}

	s := &Service{
		store:       store,
		resolver:    resolver,
		identifiers: identifiers,
		sender:      sender,
		datasets:    datasets,
		cfg:         cfg,
		logger:      slog.Default(),
		tracer:      otel.Tracer("efti-gate/control"),
		newID:       uuid.NewString,
		messageID:   edelivery.NewMessageID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
