package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/control/store"
)

type InMemorySuite struct {
	contractSuite
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
}

func (s *InMemorySuite) TestReturnedControlsAreCopies() {
	c, _ := s.newControl("copy-1", "https://efti.gate.fr.eu")
	found, err := s.store.FindControlByID(s.ctx, c.ID)
	s.Require().NoError(err)
	found.RequestIDs[0] = 999
	found.SubsetIDs[0] = "mutated"

	again, err := s.store.FindControlByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.RequestIDs[0], again.RequestIDs[0])
	s.Equal("full", again.SubsetIDs[0])
}
