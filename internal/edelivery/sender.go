package edelivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"efti-gate/internal/platform/config"
	"efti-gate/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// APSender submits messages to the access point web service.
type APSender struct {
	cfg        config.APConfig
	addressing Addressing
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *circuit.Breaker
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	openedAt time.Time
}

type SenderOption func(*APSender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *APSender) { s.client = c }
}

func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(s *APSender) { s.logger = l }
}

func WithBreaker(b *circuit.Breaker) SenderOption {
	return func(s *APSender) { s.breaker = b }
}

func WithClock(now func() time.Time) SenderOption {
	return func(s *APSender) { s.now = now }
}

// NewAPSender builds a sender that identifies itself as ownerGateID.
func NewAPSender(cfg config.APConfig, ownerGateID string, opts ...SenderOption) *APSender {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	s := &APSender{
		cfg: cfg,
		addressing: Addressing{
			Sender:       ownerGateID,
			ServiceType:  cfg.ServiceType,
			ServiceValue: cfg.ServiceValue,
		},
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: circuit.New("ap-connector"),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send submits msg and returns the message id the access point assigned.
// Every failure wraps ErrDispatch.
func (s *APSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.URL == "" {
		return "", fmt.Errorf("%w: access point url is not configured", ErrDispatch)
	}
	if s.rejectWhileOpen() {
		return "", fmt.Errorf("%w: access point circuit is open", ErrDispatch)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: wait for submission slot: %w", ErrDispatch, err)
	}

	payload, err := BuildSubmitRequest(s.addressing, msg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build submit request: %w", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure(ctx)
		return "", fmt.Errorf("%w: submit message: %w", ErrDispatch, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		s.recordFailure(ctx)
		return "", fmt.Errorf("%w: read submit response: %w", ErrDispatch, err)
	}

	ids, fault, parseErr := parseSubmitResponse(body)
	switch {
	case fault != "":
		s.recordSuccess(ctx)
		return "", fmt.Errorf("%w: access point fault: %s", ErrDispatch, fault)
	case resp.StatusCode >= http.StatusInternalServerError:
		s.recordFailure(ctx)
		return "", fmt.Errorf("%w: access point returned %d", ErrDispatch, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		s.recordSuccess(ctx)
		return "", fmt.Errorf("%w: access point returned %d", ErrDispatch, resp.StatusCode)
	case parseErr != nil:
		s.recordSuccess(ctx)
		return "", fmt.Errorf("%w: %w", ErrDispatch, parseErr)
	}
	s.recordSuccess(ctx)

	if len(ids) == 0 {
		s.logger.ErrorContext(ctx, "no messageId for request", "request_id", msg.ConversationID)
		return "", fmt.Errorf("%w: no messageId for request %s", ErrDispatch, msg.ConversationID)
	}
	return ids[0], nil
}

// rejectWhileOpen fails fast until the cooldown since opening elapses; after
// that calls go through as probes.
func (s *APSender) rejectWhileOpen() bool {
	if !s.breaker.IsOpen() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.openedAt) < s.cfg.BreakerCooldown
}

func (s *APSender) recordFailure(ctx context.Context) {
	_, change := s.breaker.RecordFailure()
	if s.breaker.IsOpen() {
		s.mu.Lock()
		s.openedAt = s.now()
		s.mu.Unlock()
	}
	if change.Opened {
		s.logger.WarnContext(ctx, "access point circuit opened", "breaker", s.breaker.Name())
	}
}

func (s *APSender) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "access point circuit closed", "breaker", s.breaker.Name())
	}
}

// IsDispatchError reports whether err came from a failed submission.
func IsDispatchError(err error) bool {
	return errors.Is(err, ErrDispatch)
}
