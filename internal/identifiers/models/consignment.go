package models

import (
	"strings"
	"time"
)

// Consignment is the registry aggregate for one dataset a platform declared.
// ID is the registry primary key and the identity used to deduplicate search results.
type Consignment struct {
	ID                                    int64                    `json:"-" xml:"-"`
	GateID                                string                   `json:"gateId" xml:"gateId"`
	PlatformID                            string                   `json:"platformId" xml:"platformId"`
	DatasetID                             string                   `json:"datasetId" xml:"datasetId"`
	CarrierAcceptanceDatetime             *time.Time               `json:"carrierAcceptanceDatetime,omitempty" xml:"carrierAcceptanceDatetime,omitempty"`
	DeliveryEventActualOccurrenceDatetime *time.Time               `json:"deliveryEventActualOccurrenceDatetime,omitempty" xml:"deliveryEventActualOccurrenceDatetime,omitempty"`
	Movements                             []Movement               `json:"mainCarriageTransportMovement,omitempty" xml:"mainCarriageTransportMovement"`
	UsedTransportEquipments               []UsedTransportEquipment `json:"usedTransportEquipment,omitempty" xml:"usedTransportEquipment"`
}

// Movement is one main-carriage leg and its transport means.
type Movement struct {
	ModeCode                              string `json:"modeCode" xml:"modeCode"`
	DangerousGoodsIndicator               bool   `json:"dangerousGoodsIndicator" xml:"dangerousGoodsIndicator"`
	UsedTransportMeansID                  string `json:"usedTransportMeansId" xml:"usedTransportMeans>id"`
	UsedTransportMeansRegistrationCountry string `json:"usedTransportMeansRegistrationCountry,omitempty" xml:"usedTransportMeans>registrationCountry,omitempty"`
	SchemeAgencyID                        string `json:"schemeAgencyId,omitempty" xml:"usedTransportMeans>schemeAgencyId,omitempty"`
}

type UsedTransportEquipment struct {
	SequenceNumber             int                         `json:"sequenceNumber" xml:"sequenceNumber"`
	EquipmentID                string                      `json:"id" xml:"id"`
	SchemeAgencyID             string                      `json:"schemeAgencyId,omitempty" xml:"schemeAgencyId,omitempty"`
	RegistrationCountry        string                      `json:"registrationCountry,omitempty" xml:"registrationCountry,omitempty"`
	CategoryCode               string                      `json:"categoryCode,omitempty" xml:"categoryCode,omitempty"`
	CarriedTransportEquipments []CarriedTransportEquipment `json:"carriedTransportEquipment,omitempty" xml:"carriedTransportEquipment"`
}

type CarriedTransportEquipment struct {
	SequenceNumber int    `json:"sequenceNumber" xml:"sequenceNumber"`
	EquipmentID    string `json:"id" xml:"id"`
	SchemeAgencyID string `json:"schemeAgencyId,omitempty" xml:"schemeAgencyId,omitempty"`
}

// MatchesUIL reports whether the consignment is addressed by the given locator.
func (c *Consignment) MatchesUIL(gateID, datasetID, platformID string) bool {
	return c.GateID == gateID && c.DatasetID == datasetID && c.PlatformID == platformID
}

// IdentifierType selects one search strategy.
type IdentifierType string

const (
	IdentifierMeans     IdentifierType = "means"
	IdentifierEquipment IdentifierType = "equipment"
	IdentifierCarried   IdentifierType = "carried"
)

// AllIdentifierTypes is the strategy set used when the caller does not choose.
var AllIdentifierTypes = []IdentifierType{IdentifierMeans, IdentifierEquipment, IdentifierCarried}

// ParseIdentifierType matches case-insensitively; ok is false for unknown values.
func ParseIdentifierType(s string) (IdentifierType, bool) {
	t := IdentifierType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case IdentifierMeans, IdentifierEquipment, IdentifierCarried:
		return t, true
	}
	return "", false
}

// Criteria is a validated identifier search.
type Criteria struct {
	Identifier          string           `json:"identifier"`
	Types               []IdentifierType `json:"identifierType,omitempty"`
	ModeCode            string           `json:"modeCode,omitempty"`
	RegistrationCountry string           `json:"registrationCountryCode,omitempty"`
	DangerousGoods      *bool            `json:"dangerousGoodsIndicator,omitempty"`
}

// Strategies returns the selected identifier types, all of them when none were given.
func (c Criteria) Strategies() []IdentifierType {
	if len(c.Types) == 0 {
		return AllIdentifierTypes
	}
	seen := make(map[IdentifierType]struct{}, len(c.Types))
	out := make([]IdentifierType, 0, len(c.Types))
	for _, t := range c.Types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
