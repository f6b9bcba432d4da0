//go:build integration

package inbound_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/edelivery/inbound"
	"efti-gate/pkg/testutil/containers"
)

type RedisDeduperSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	dedupe *inbound.RedisDeduper
}

func TestRedisDeduperSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisDeduperSuite))
}

func (s *RedisDeduperSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.dedupe = inbound.NewRedisDeduper(s.redis.Client, time.Minute)
}

func (s *RedisDeduperSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisDeduperSuite) TestMarkAndRelease() {
	ctx := context.Background()

	fresh, err := s.dedupe.MarkNew(ctx, "m-1@domibus.eu")
	s.Require().NoError(err)
	s.True(fresh)

	fresh, err = s.dedupe.MarkNew(ctx, "m-1@domibus.eu")
	s.Require().NoError(err)
	s.False(fresh)

	ttl, err := s.redis.Client.TTL(ctx, "efti:notification:m-1@domibus.eu").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.dedupe.Release(ctx, "m-1@domibus.eu"))
	fresh, err = s.dedupe.MarkNew(ctx, "m-1@domibus.eu")
	s.Require().NoError(err)
	s.True(fresh)
}
