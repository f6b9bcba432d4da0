package service

import (
	"context"
	"fmt"
	"time"

	"efti-gate/internal/control/models"
	"efti-gate/pkg/requestcontext"
)

// SweepReport counts what one sweep moved to TIMEOUT.
type SweepReport struct {
	// Reconciled is the number of Controls whose Requests expired.
	Reconciled int
	// Controls is the number of Controls expired directly.
	Controls int
}

// SweepTimeouts expires every PENDING Request and Control created more than
// PendingTimeout before now. Controls owning an expired Request are resolved
// through the usual aggregation before the remaining stale Controls are
// expired directly. Nothing is sent to peers.
func (s *Service) SweepTimeouts(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport
	ctx = requestcontext.WithTime(ctx, now)
	cutoff := now.Add(-s.cfg.PendingTimeout)

	ids, err := s.store.ExpirePendingRequests(ctx, cutoff, now)
	if err != nil {
		return report, fmt.Errorf("expire requests: %w", err)
	}
	for _, id := range ids {
		if err := s.reconcile(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "reconcile after expiry failed", "control_id", id, "error", err)
			continue
		}
		report.Reconciled++
	}
	s.metrics.AddSweepTimeouts("request", len(ids))

	n, err := s.store.ExpirePendingControls(ctx, cutoff, now)
	if err != nil {
		return report, fmt.Errorf("expire controls: %w", err)
	}
	report.Controls = n
	s.metrics.AddSweepTimeouts("control", n)
	s.metrics.AddControlsCompleted(string(models.StatusTimeout), n)

	if report.Reconciled > 0 || report.Controls > 0 {
		s.logger.InfoContext(ctx, "timeout sweep completed",
			"reconciled", report.Reconciled,
			"controls_expired", report.Controls,
		)
	}
	return report, nil
}
