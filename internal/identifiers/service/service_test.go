package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/identifiers/models"
	"efti-gate/internal/identifiers/store"
	dErrors "efti-gate/pkg/domain-errors"
)

// =============================================================================
// Identifier Search Test Suite
// =============================================================================
// Fixture: three consignments on the same gate.
//   - c1: means "ABC123" (FR, road, dangerous goods), equipment "TRL-1" (BE)
//   - c2: equipment "ABC123" (DE) carrying "CONT-9"
//   - c3: means "XYZ" (road), equipment "TRL-2" carrying "abc123"

type SearchSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	service *Service
	ids     map[string]int64
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchSuite))
}

func (s *SearchSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.service = New(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.ids = make(map[string]int64)

	s.register("c1", models.Consignment{
		Movements: []models.Movement{{
			ModeCode: "3", DangerousGoodsIndicator: true,
			UsedTransportMeansID: "ABC123", UsedTransportMeansRegistrationCountry: "FR",
		}},
		UsedTransportEquipments: []models.UsedTransportEquipment{{SequenceNumber: 1, EquipmentID: "TRL-1", RegistrationCountry: "BE"}},
	})
	s.register("c2", models.Consignment{
		UsedTransportEquipments: []models.UsedTransportEquipment{{
			SequenceNumber: 1, EquipmentID: "ABC123", RegistrationCountry: "DE",
			CarriedTransportEquipments: []models.CarriedTransportEquipment{{SequenceNumber: 1, EquipmentID: "CONT-9"}},
		}},
	})
	s.register("c3", models.Consignment{
		Movements: []models.Movement{{ModeCode: "3", UsedTransportMeansID: "XYZ"}},
		UsedTransportEquipments: []models.UsedTransportEquipment{{
			SequenceNumber: 1, EquipmentID: "TRL-2",
			CarriedTransportEquipments: []models.CarriedTransportEquipment{{SequenceNumber: 1, EquipmentID: "abc123"}},
		}},
	})
}

func (s *SearchSuite) register(dataset string, c models.Consignment) {
	c.GateID = "https://efti.gate.fr.eu"
	c.PlatformID = "acme"
	c.DatasetID = dataset
	s.Require().NoError(s.service.Register(s.ctx, &c))
	s.ids[dataset] = c.ID
}

func (s *SearchSuite) datasets(list []models.Consignment) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.DatasetID)
	}
	return out
}

// =============================================================================
// Strategy selection
// =============================================================================

func (s *SearchSuite) TestStrategySelection() {
	s.Run("unspecified types run all strategies", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "abc123"})
		s.Require().NoError(err)
		s.ElementsMatch([]string{"c1", "c2", "c3"}, s.datasets(got))
	})

	s.Run("means only", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "ABC123", Types: []models.IdentifierType{models.IdentifierMeans}})
		s.Require().NoError(err)
		s.Equal([]string{"c1"}, s.datasets(got))
	})

	s.Run("equipment only", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "abc123", Types: []models.IdentifierType{models.IdentifierEquipment}})
		s.Require().NoError(err)
		s.Equal([]string{"c2"}, s.datasets(got))
	})

	s.Run("carried only", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "CONT-9", Types: []models.IdentifierType{models.IdentifierCarried}})
		s.Require().NoError(err)
		s.Equal([]string{"c2"}, s.datasets(got))
	})
}

// =============================================================================
// Filters
// =============================================================================

func (s *SearchSuite) TestFilters() {
	s.Run("registration country applies to means on the movement", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{
			Identifier: "abc123", Types: []models.IdentifierType{models.IdentifierMeans}, RegistrationCountry: "BE",
		})
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("registration country applies to equipment on the equipment", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{
			Identifier: "TRL-1", Types: []models.IdentifierType{models.IdentifierEquipment}, RegistrationCountry: "BE",
		})
		s.Require().NoError(err)
		s.Equal([]string{"c1"}, s.datasets(got))
	})

	s.Run("registration country is ignored for carried equipment", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{
			Identifier: "abc123", Types: []models.IdentifierType{models.IdentifierCarried}, RegistrationCountry: "PL",
		})
		s.Require().NoError(err)
		s.Equal([]string{"c3"}, s.datasets(got))
	})

	s.Run("dangerous goods filter uses movements", func() {
		dg := true
		got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "abc123", DangerousGoods: &dg})
		s.Require().NoError(err)
		s.Equal([]string{"c1"}, s.datasets(got))
	})

	s.Run("mode code filter on carried equipment", func() {
		got, err := s.service.Search(s.ctx, models.Criteria{
			Identifier: "abc123", Types: []models.IdentifierType{models.IdentifierCarried}, ModeCode: "1",
		})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

// =============================================================================
// Union and deduplication
// =============================================================================

func (s *SearchSuite) TestDeduplicatesByConsignmentID() {
	s.register("c4", models.Consignment{
		Movements:               []models.Movement{{ModeCode: "1", UsedTransportMeansID: "DUP"}},
		UsedTransportEquipments: []models.UsedTransportEquipment{{EquipmentID: "dup"}},
	})

	got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "dup"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(s.ids["c4"], got[0].ID)
}

func (s *SearchSuite) TestDuplicateTypesRunOnce() {
	got, err := s.service.Search(s.ctx, models.Criteria{
		Identifier: "ABC123",
		Types:      []models.IdentifierType{models.IdentifierMeans, models.IdentifierMeans},
	})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *SearchSuite) TestValidationAndErrors() {
	s.Run("blank identifier", func() {
		_, err := s.service.Search(s.ctx, models.Criteria{Identifier: " "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is internal", func() {
		svc := New(brokenStore{})
		_, err := svc.Search(s.ctx, models.Criteria{Identifier: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Registry lookups
// =============================================================================

func (s *SearchSuite) TestExistsByUIL() {
	ok, err := s.service.ExistsByUIL(s.ctx, "https://efti.gate.fr.eu", "c2", "acme")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.ExistsByUIL(s.ctx, "https://efti.gate.fr.eu", "missing", "acme")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SearchSuite) TestRegisterReplacesByUIL() {
	replacement := models.Consignment{
		GateID: "https://efti.gate.fr.eu", PlatformID: "acme", DatasetID: "c1",
		Movements: []models.Movement{{UsedTransportMeansID: "NEW-1"}},
	}
	s.Require().NoError(s.service.Register(s.ctx, &replacement))

	got, err := s.service.Search(s.ctx, models.Criteria{Identifier: "ABC123", Types: []models.IdentifierType{models.IdentifierMeans}})
	s.Require().NoError(err)
	s.Empty(got)

	err = s.service.Register(s.ctx, &models.Consignment{GateID: "g"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

type brokenStore struct{}

func (brokenStore) Match(context.Context, models.IdentifierType, models.Criteria) ([]models.Consignment, error) {
	return nil, errors.New("registry offline")
}

func (brokenStore) FindByUIL(context.Context, string, string, string) (*models.Consignment, error) {
	return nil, errors.New("registry offline")
}

func (brokenStore) Save(context.Context, *models.Consignment) error {
	return errors.New("registry offline")
}
