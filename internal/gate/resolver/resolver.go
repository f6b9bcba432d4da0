// Package resolver maps country indicators and gate ids to registered gates.
//
// Absence is a result, not an error: an indicator without a registered gate
// yields a Destination with a nil Gate, and an unknown gate id yields ok=false.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"efti-gate/internal/gate/models"
	"efti-gate/pkg/platform/sentinel"
)

// Store is the gate directory.
type Store interface {
	FindByID(ctx context.Context, gateID string) (*models.Gate, error)
	FindByCountries(ctx context.Context, countries []models.CountryIndicator) ([]models.Gate, error)
	List(ctx context.Context) ([]models.Gate, error)
}

// Resolver answers destination lookups on behalf of the owner gate.
type Resolver struct {
	store   Store
	ownerID string
}

func New(store Store, ownerGateID string) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("gate store is required")
	}
	if strings.TrimSpace(ownerGateID) == "" {
		return nil, fmt.Errorf("owner gate id is required")
	}
	return &Resolver{store: store, ownerID: ownerGateID}, nil
}

// OwnerID is the id of the gate this process runs as.
func (r *Resolver) OwnerID() string { return r.ownerID }

// IsLocal reports whether gateID designates the owner gate.
func (r *Resolver) IsLocal(gateID string) bool {
	return strings.EqualFold(strings.TrimSpace(gateID), r.ownerID)
}

// ResolveCountries returns one destination per distinct indicator, in country
// order. With no indicators it returns the first registered gate of every country.
func (r *Resolver) ResolveCountries(ctx context.Context, indicators []models.CountryIndicator) ([]models.Destination, error) {
	if len(indicators) == 0 {
		gates, err := r.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list gates: %w", err)
		}
		return firstPerCountry(gates), nil
	}

	requested := distinct(indicators)
	gates, err := r.store.FindByCountries(ctx, requested)
	if err != nil {
		return nil, fmt.Errorf("find gates by countries: %w", err)
	}
	byCountry := make(map[models.CountryIndicator]models.Gate, len(gates))
	for _, g := range gates {
		if _, seen := byCountry[g.Country]; !seen {
			byCountry[g.Country] = g
		}
	}

	out := make([]models.Destination, 0, len(requested))
	for _, c := range requested {
		d := models.Destination{Country: c}
		if g, ok := byCountry[c]; ok {
			d.Gate = &g
		}
		out = append(out, d)
	}
	return out, nil
}

// ResolveGate returns the country a gate is registered under.
func (r *Resolver) ResolveGate(ctx context.Context, gateID string) (models.CountryIndicator, bool, error) {
	g, err := r.Gate(ctx, gateID)
	if err != nil || g == nil {
		return "", false, err
	}
	return g.Country, true, nil
}

// Gate returns the directory entry for gateID, or nil when it is not registered.
func (r *Resolver) Gate(ctx context.Context, gateID string) (*models.Gate, error) {
	g, err := r.store.FindByID(ctx, gateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find gate: %w", err)
	}
	return g, nil
}

// GateIDForParty maps an access point party back to its gate id. Gates without
// a distinct party id are addressed by their own id.
func (r *Resolver) GateIDForParty(ctx context.Context, partyID string) (string, error) {
	gates, err := r.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list gates: %w", err)
	}
	for _, g := range gates {
		if g.PartyID != "" && strings.EqualFold(g.PartyID, partyID) {
			return g.ID, nil
		}
	}
	return partyID, nil
}

func distinct(indicators []models.CountryIndicator) []models.CountryIndicator {
	seen := make(map[models.CountryIndicator]struct{}, len(indicators))
	out := make([]models.CountryIndicator, 0, len(indicators))
	for _, c := range indicators {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	models.SortCountries(out)
	return out
}

func firstPerCountry(gates []models.Gate) []models.Destination {
	sorted := append([]models.Gate(nil), gates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	seen := make(map[models.CountryIndicator]struct{})
	countries := make([]models.CountryIndicator, 0, len(sorted))
	byCountry := make(map[models.CountryIndicator]models.Gate)
	for _, g := range sorted {
		if _, ok := seen[g.Country]; ok {
			continue
		}
		seen[g.Country] = struct{}{}
		countries = append(countries, g.Country)
		byCountry[g.Country] = g
	}
	models.SortCountries(countries)

	out := make([]models.Destination, 0, len(countries))
	for _, c := range countries {
		g := byCountry[c]
		out = append(out, models.Destination{Country: c, Gate: &g})
	}
	return out
}
