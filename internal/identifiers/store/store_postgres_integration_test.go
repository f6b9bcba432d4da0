//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/identifiers/models"
	"efti-gate/internal/identifiers/store"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "consignment"))
}

func truck(datasetID, plate string, dangerous bool) *models.Consignment {
	return &models.Consignment{
		GateID:     "https://efti.gate.bo.eu",
		PlatformID: "acme",
		DatasetID:  datasetID,
		Movements: []models.Movement{{
			ModeCode:                              "3",
			DangerousGoodsIndicator:               dangerous,
			UsedTransportMeansID:                  plate,
			UsedTransportMeansRegistrationCountry: "FR",
		}},
		UsedTransportEquipments: []models.UsedTransportEquipment{{
			SequenceNumber: 1,
			EquipmentID:    "TRL-" + datasetID,
			CarriedTransportEquipments: []models.CarriedTransportEquipment{
				{SequenceNumber: 1, EquipmentID: "CONT-" + datasetID},
			},
		}},
	}
}

func (s *PostgresSuite) TestSaveAndFindByUIL() {
	c := truck("ds-1", "ABC123", false)
	s.Require().NoError(s.store.Save(s.ctx, c))
	s.NotZero(c.ID)

	found, err := s.store.FindByUIL(s.ctx, c.GateID, "ds-1", "acme")
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Require().Len(found.Movements, 1)
	s.Equal("ABC123", found.Movements[0].UsedTransportMeansID)
	s.Require().Len(found.UsedTransportEquipments, 1)
	s.Equal("CONT-ds-1", found.UsedTransportEquipments[0].CarriedTransportEquipments[0].EquipmentID)

	_, err = s.store.FindByUIL(s.ctx, c.GateID, "ds-2", "acme")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestSaveReplacesLocator() {
	s.Require().NoError(s.store.Save(s.ctx, truck("ds-1", "ABC123", false)))
	s.Require().NoError(s.store.Save(s.ctx, truck("ds-1", "XYZ789", false)))

	found, err := s.store.FindByUIL(s.ctx, "https://efti.gate.bo.eu", "ds-1", "acme")
	s.Require().NoError(err)
	s.Equal("XYZ789", found.Movements[0].UsedTransportMeansID)

	old, err := s.store.Match(s.ctx, models.IdentifierMeans, models.Criteria{Identifier: "ABC123"})
	s.Require().NoError(err)
	s.Empty(old)
}

func (s *PostgresSuite) TestMatchStrategies() {
	s.Require().NoError(s.store.Save(s.ctx, truck("ds-1", "ABC123", true)))
	s.Require().NoError(s.store.Save(s.ctx, truck("ds-2", "DEF456", false)))
	dangerous := true

	s.Run("means is case-insensitive", func() {
		got, err := s.store.Match(s.ctx, models.IdentifierMeans, models.Criteria{Identifier: "abc123"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("ds-1", got[0].DatasetID)
	})

	s.Run("equipment honours movement filters", func() {
		got, err := s.store.Match(s.ctx, models.IdentifierEquipment, models.Criteria{Identifier: "TRL-ds-2", DangerousGoods: &dangerous})
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("carried", func() {
		got, err := s.store.Match(s.ctx, models.IdentifierCarried, models.Criteria{Identifier: "CONT-ds-2", ModeCode: "3"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("ds-2", got[0].DatasetID)
	})
}
