package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"efti-gate/internal/gate/models"
	"efti-gate/pkg/platform/sentinel"
)

// InMemory keeps the gate directory in a map keyed by lower-cased gate id.
type InMemory struct {
	mu    sync.RWMutex
	gates map[string]models.Gate
}

func NewInMemory(gates ...models.Gate) *InMemory {
	s := &InMemory{gates: make(map[string]models.Gate)}
	for _, g := range gates {
		s.gates[strings.ToLower(g.ID)] = g
	}
	return s
}

func (s *InMemory) Save(_ context.Context, gate models.Gate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[strings.ToLower(gate.ID)] = gate
	return nil
}

func (s *InMemory) FindByID(_ context.Context, gateID string) (*models.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gates[strings.ToLower(gateID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &g, nil
}

func (s *InMemory) FindByCountries(_ context.Context, countries []models.CountryIndicator) ([]models.Gate, error) {
	want := make(map[models.CountryIndicator]struct{}, len(countries))
	for _, c := range countries {
		want[c] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Gate
	for _, g := range s.gates {
		if _, ok := want[g.Country]; ok {
			out = append(out, g)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemory) List(_ context.Context) ([]models.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Gate, 0, len(s.gates))
	for _, g := range s.gates {
		out = append(out, g)
	}
	sortByID(out)
	return out, nil
}

func sortByID(gates []models.Gate) {
	sort.Slice(gates, func(i, j int) bool { return gates[i].ID < gates[j].ID })
}
