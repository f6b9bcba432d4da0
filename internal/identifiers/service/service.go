// Package service runs identifier searches against the local registry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/platform/sentinel"
)

// Store is the identifier registry.
type Store interface {
	Match(ctx context.Context, t models.IdentifierType, c models.Criteria) ([]models.Consignment, error)
	FindByUIL(ctx context.Context, gateID, datasetID, platformID string) (*models.Consignment, error)
	Save(ctx context.Context, c *models.Consignment) error
}

// Service is the identifier search engine.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the selected strategies concurrently and returns their union,
// deduplicated by consignment id. Order follows strategy order, then store order.
func (s *Service) Search(ctx context.Context, c models.Criteria) ([]models.Consignment, error) {
	if strings.TrimSpace(c.Identifier) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier is required")
	}
	strategies := c.Strategies()
	results := make([][]models.Consignment, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range strategies {
		g.Go(func() error {
			found, err := s.store.Match(gctx, t, c)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identifier search failed")
	}

	var (
		seen = make(map[int64]struct{})
		out  = make([]models.Consignment, 0)
	)
	for _, batch := range results {
		for _, cons := range batch {
			if _, dup := seen[cons.ID]; dup {
				continue
			}
			seen[cons.ID] = struct{}{}
			out = append(out, cons)
		}
	}

	s.logger.DebugContext(ctx, "identifier search completed",
		"identifier", c.Identifier,
		"strategies", len(strategies),
		"results", len(out),
	)
	return out, nil
}

// ExistsByUIL reports whether the registry knows the dataset.
func (s *Service) ExistsByUIL(ctx context.Context, gateID, datasetID, platformID string) (bool, error) {
	_, err := s.store.FindByUIL(ctx, gateID, datasetID, platformID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up dataset")
	}
	return true, nil
}

// Register stores (or replaces) a platform's identifier declaration.
func (s *Service) Register(ctx context.Context, c *models.Consignment) error {
	if c == nil || c.GateID == "" || c.PlatformID == "" || c.DatasetID == "" {
		return dErrors.New(dErrors.CodeValidation, "consignment uil is incomplete")
	}
	if err := s.store.Save(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register identifiers")
	}
	s.logger.InfoContext(ctx, "identifiers registered",
		"gate_id", c.GateID,
		"platform_id", c.PlatformID,
		"dataset_id", c.DatasetID,
	)
	return nil
}
