package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"efti-gate/internal/control/models"
	"efti-gate/pkg/platform/sentinel"
)

// InMemory keeps Controls and Requests in maps. Every transition takes the write
// lock, so conditional updates behave like the Postgres store's.
type InMemory struct {
	mu            sync.RWMutex
	nextControl   int64
	nextRequest   int64
	controls      map[int64]*models.Control
	byRequestID   map[string]int64
	requests      map[int64]*models.Request
	byCorrelation map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		controls:      make(map[int64]*models.Control),
		byRequestID:   make(map[string]int64),
		requests:      make(map[int64]*models.Request),
		byCorrelation: make(map[string]int64),
	}
}

func (s *InMemory) CreateControl(_ context.Context, c *models.Control, reqs []*models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequestID[c.RequestID]; exists {
		return sentinel.ErrConflict
	}
	s.nextControl++
	c.ID = s.nextControl
	c.RequestIDs = nil
	stored := cloneControl(c)
	s.controls[c.ID] = stored
	s.byRequestID[c.RequestID] = c.ID

	for _, r := range reqs {
		s.insertRequestLocked(stored, r)
	}
	c.RequestIDs = append([]int64(nil), stored.RequestIDs...)
	return nil
}

func (s *InMemory) AddRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[r.ControlID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.insertRequestLocked(c, r)
	return nil
}

func (s *InMemory) insertRequestLocked(c *models.Control, r *models.Request) {
	s.nextRequest++
	r.ID = s.nextRequest
	r.ControlID = c.ID
	cp := *r
	s.requests[r.ID] = &cp
	if r.CorrelationID != "" {
		s.byCorrelation[r.CorrelationID] = r.ID
	}
	c.RequestIDs = append(c.RequestIDs, r.ID)
}

func (s *InMemory) FindControlByRequestID(_ context.Context, requestID string) (*models.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRequestID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneControl(s.controls[id]), nil
}

func (s *InMemory) FindControlByID(_ context.Context, id int64) (*models.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneControl(c), nil
}

// ListRequests returns a Control's Requests in creation order.
func (s *InMemory) ListRequests(_ context.Context, controlID int64) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[controlID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]models.Request, 0, len(c.RequestIDs))
	for _, id := range c.RequestIDs {
		out = append(out, *s.requests[id])
	}
	return out, nil
}

func (s *InMemory) SetCorrelationID(_ context.Context, requestID int64, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.byCorrelation[correlationID]; taken && owner != requestID {
		return sentinel.ErrConflict
	}
	if r.CorrelationID != "" {
		delete(s.byCorrelation, r.CorrelationID)
	}
	r.CorrelationID = correlationID
	s.byCorrelation[correlationID] = requestID
	return nil
}

func (s *InMemory) FindRequestByCorrelationID(_ context.Context, correlationID string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCorrelation[correlationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.requests[id]
	return &cp, nil
}

// FindPendingRequest returns the oldest PENDING Request of a kind sent to gateIDDest.
func (s *InMemory) FindPendingRequest(_ context.Context, controlID int64, gateIDDest string, kind models.RequestKind) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[controlID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	for _, id := range c.RequestIDs {
		r := s.requests[id]
		if r.Kind == kind && r.Status == models.StatusPending && strings.EqualFold(r.GateIDDest, gateIDDest) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ResolveRequest(_ context.Context, id int64, o models.Outcome, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return r.Apply(o, now), nil
}

func (s *InMemory) ResolveControl(_ context.Context, id int64, status models.Status, errInfo *models.ErrorInfo, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !c.Status.CanTransitionTo(status) {
		return false, nil
	}
	c.Status = status
	c.Error = errInfo
	c.UpdatedAt = now
	return true, nil
}

// ExpirePendingRequests times out PENDING Requests created before cutoff and
// returns the distinct owning Control ids in ascending order.
func (s *InMemory) ExpirePendingRequests(_ context.Context, cutoff, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[int64]struct{})
	for _, r := range s.requests {
		if r.CreatedAt.Before(cutoff) && r.Apply(models.TimedOut(), now) {
			touched[r.ControlID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ExpirePendingControls times out PENDING Controls created before cutoff.
func (s *InMemory) ExpirePendingControls(_ context.Context, cutoff, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.controls {
		if c.Status == models.StatusPending && c.CreatedAt.Before(cutoff) {
			c.Status = models.StatusTimeout
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func cloneControl(c *models.Control) *models.Control {
	cp := *c
	cp.SubsetIDs = append([]string(nil), c.SubsetIDs...)
	cp.RequestIDs = append([]int64(nil), c.RequestIDs...)
	return &cp
}
