package models

import (
	"sort"
	"strings"

	dErrors "efti-gate/pkg/domain-errors"
)

// CountryIndicator is the closed set of country codes a gate can be registered under.
type CountryIndicator string

// Order matters: resolution results are sorted by position in this list.
var countryIndicators = []CountryIndicator{
	"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI",
	"FR", "GR", "HR", "HU", "IE", "IT", "LT", "LU", "LV", "MT",
	"NL", "PL", "PT", "RO", "SE", "SI", "SK",
	"BO", "LI", "SY",
}

var countryIndex = func() map[CountryIndicator]int {
	idx := make(map[CountryIndicator]int, len(countryIndicators))
	for i, c := range countryIndicators {
		idx[c] = i
	}
	return idx
}()

// ParseCountryIndicator accepts an exact enumerated value (case-insensitive input).
func ParseCountryIndicator(s string) (CountryIndicator, error) {
	c := CountryIndicator(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := countryIndex[c]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown country indicator: "+s)
	}
	return c, nil
}

func (c CountryIndicator) IsValid() bool {
	_, ok := countryIndex[c]
	return ok
}

func (c CountryIndicator) String() string { return string(c) }

// SortCountries orders indicators by their enumeration position.
func SortCountries(cs []CountryIndicator) {
	sort.SliceStable(cs, func(i, j int) bool {
		return countryIndex[cs[i]] < countryIndex[cs[j]]
	})
}

// Gate is one registered federation node.
type Gate struct {
	ID      string           `json:"id"`
	Country CountryIndicator `json:"country"`
	// PartyID is the access point party identifier messages are addressed to.
	PartyID string `json:"party_id"`
}

// Destination is one resolved target. Gate is nil when no gate is registered
// for Country.
type Destination struct {
	Country CountryIndicator
	Gate    *Gate
}

// Absent reports whether the destination has no registered gate.
func (d Destination) Absent() bool {
	return d.Gate == nil
}
