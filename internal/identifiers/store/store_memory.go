package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"efti-gate/internal/identifiers/models"
	"efti-gate/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres strategies over an in-process map.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.Consignment
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]models.Consignment)}
}

// Save replaces the aggregate registered under the consignment's locator.
func (s *InMemory) Save(_ context.Context, c *models.Consignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.byID {
		if existing.MatchesUIL(c.GateID, c.DatasetID, c.PlatformID) {
			delete(s.byID, id)
		}
	}
	s.nextID++
	c.ID = s.nextID
	s.byID[c.ID] = *c
	return nil
}

func (s *InMemory) FindByUIL(_ context.Context, gateID, datasetID, platformID string) (*models.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byID {
		if c.MatchesUIL(gateID, datasetID, platformID) {
			found := c
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Match(_ context.Context, t models.IdentifierType, crit models.Criteria) ([]models.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Consignment
	for _, c := range s.byID {
		if matches(t, c, crit) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// matches follows the join semantics of the SQL fragments: the identifier row
// and the movement row satisfying the shared filters need not be the same row,
// except for the means strategy where both live on the movement.
func matches(t models.IdentifierType, c models.Consignment, crit models.Criteria) bool {
	switch t {
	case models.IdentifierMeans:
		for _, m := range c.Movements {
			if strings.EqualFold(m.UsedTransportMeansID, crit.Identifier) &&
				movementOK(m, crit) &&
				(crit.RegistrationCountry == "" || m.UsedTransportMeansRegistrationCountry == crit.RegistrationCountry) {
				return true
			}
		}
	case models.IdentifierEquipment:
		for _, ue := range c.UsedTransportEquipments {
			if strings.EqualFold(ue.EquipmentID, crit.Identifier) &&
				(crit.RegistrationCountry == "" || ue.RegistrationCountry == crit.RegistrationCountry) {
				return anyMovementOK(c, crit)
			}
		}
	case models.IdentifierCarried:
		for _, ue := range c.UsedTransportEquipments {
			for _, ce := range ue.CarriedTransportEquipments {
				if strings.EqualFold(ce.EquipmentID, crit.Identifier) {
					return anyMovementOK(c, crit)
				}
			}
		}
	}
	return false
}

func movementOK(m models.Movement, crit models.Criteria) bool {
	if crit.DangerousGoods != nil && m.DangerousGoodsIndicator != *crit.DangerousGoods {
		return false
	}
	if crit.ModeCode != "" && m.ModeCode != crit.ModeCode {
		return false
	}
	return true
}

func anyMovementOK(c models.Consignment, crit models.Criteria) bool {
	if crit.DangerousGoods == nil && crit.ModeCode == "" {
		return true
	}
	for _, m := range c.Movements {
		if movementOK(m, crit) {
			return true
		}
	}
	return false
}
