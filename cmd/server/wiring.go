package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	controlhandler "efti-gate/internal/control/handler"
	controlmetrics "efti-gate/internal/control/metrics"
	controlservice "efti-gate/internal/control/service"
	controlstore "efti-gate/internal/control/store"
	"efti-gate/internal/control/sweeper"
	"efti-gate/internal/dataset"
	"efti-gate/internal/edelivery"
	"efti-gate/internal/edelivery/inbound"
	gatemodels "efti-gate/internal/gate/models"
	"efti-gate/internal/gate/resolver"
	gatestore "efti-gate/internal/gate/store"
	idservice "efti-gate/internal/identifiers/service"
	idstore "efti-gate/internal/identifiers/store"
	"efti-gate/internal/platform/config"
	"efti-gate/internal/platform/kafka"
	"efti-gate/internal/platform/kafka/consumer"
	"efti-gate/internal/platform/metrics"
	"efti-gate/internal/platform/postgres"
	"efti-gate/internal/platform/redis"
	"efti-gate/pkg/platform/httputil"
	"efti-gate/pkg/platform/middleware/metadata"
	"efti-gate/pkg/platform/middleware/request"
	"efti-gate/pkg/platform/middleware/requesttime"
)

// app holds the running components and the resources they share.
type app struct {
	log      *slog.Logger
	db       *sql.DB
	pool     *pgxpool.Pool
	redis    *redis.Client
	controls *controlhandler.Handler
	sweeper  *sweeper.Sweeper
	consumer *consumer.Consumer
}

type gateDirectory interface {
	resolver.Store
	Save(ctx context.Context, gate gatemodels.Gate) error
}

// build connects the backing services. Without DATABASE_URL every store is
// in-process, which is enough for local runs against a stub access point.
func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{log: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var (
		gates    gateDirectory
		controls controlservice.Store
		registry idservice.Store
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := postgres.Migrate(db); err != nil {
			return nil, err
		}
		pool, err := postgres.OpenPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		gates = gatestore.NewPostgres(db)
		controls = controlstore.NewPostgres(db)
		registry = idstore.NewPostgres(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		gates = gatestore.NewInMemory()
		controls = controlstore.NewInMemory()
		registry = idstore.NewInMemory()
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = rc
	var dedupe inbound.Deduper = inbound.NewMemoryDeduper(cfg.Redis.DedupeTTL)
	if rc != nil {
		gates = gatestore.NewRedisCache(gates, rc.Client, cfg.Redis.GateCacheTTL, log)
		dedupe = inbound.NewRedisDeduper(rc.Client, cfg.Redis.DedupeTTL)
	}

	owner := gatemodels.Gate{ID: cfg.Gate.OwnerID, Country: gatemodels.CountryIndicator(cfg.Gate.OwnerCountry), PartyID: cfg.Gate.OwnerID}
	if !owner.Country.IsValid() {
		return nil, fmt.Errorf("EFTI_OWNER_COUNTRY %q is not a known country indicator", cfg.Gate.OwnerCountry)
	}
	if err := gates.Save(ctx, owner); err != nil {
		return nil, fmt.Errorf("register owner gate: %w", err)
	}
	res, err := resolver.New(gates, cfg.Gate.OwnerID)
	if err != nil {
		return nil, err
	}

	identifiers := idservice.New(registry, idservice.WithLogger(log))
	sender := edelivery.NewAPSender(cfg.AP, cfg.Gate.OwnerID, edelivery.WithSenderLogger(log))
	datasets := dataset.NewRestClient(cfg.Platform, dataset.WithLogger(log))

	svc, err := controlservice.New(controls, res, identifiers, sender, datasets,
		controlservice.Config{
			PendingTimeout:      cfg.Gate.PendingTimeout,
			DispatchConcurrency: cfg.Gate.DispatchConcurrency,
		},
		controlservice.WithLogger(log),
		controlservice.WithMetrics(controlmetrics.New()),
	)
	if err != nil {
		return nil, err
	}
	a.controls = controlhandler.New(svc, log)

	a.sweeper, err = sweeper.New(svc, cfg.Gate.SweepInterval, sweeper.WithLogger(log))
	if err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, 1, cfg.Kafka.NotificationTopic, cfg.Kafka.DeadLetterTopic); err != nil {
			return nil, err
		}
		router, err := inbound.NewRouter(svc, identifiers, dedupe, cfg.Gate.OwnerID,
			inbound.WithLogger(log),
			inbound.WithMetrics(metrics.New()),
		)
		if err != nil {
			return nil, err
		}
		a.consumer, err = consumer.New(consumer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Group:           cfg.Kafka.ConsumerGroup,
			Topics:          []string{cfg.Kafka.NotificationTopic},
			MaxAttempts:     cfg.Kafka.MaxAttempts,
			RetryBackoff:    cfg.Kafka.RetryBackoff,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		}, router, log)
		if err != nil {
			return nil, err
		}
	}

	ok = true
	return a, nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientIP)
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(a.log))

	r.Get("/health", a.health)
	r.Handle("/metrics", metrics.Handler())
	a.controls.Register(r)
	return r
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			status["postgres"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	httputil.WriteJSON(w, code, status)
}

func (a *app) close() {
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
