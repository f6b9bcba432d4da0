//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager hands out one shared container per backend for the whole test binary.
type Manager struct {
	pgOnce sync.Once
	pg     *PostgresContainer
	rdOnce sync.Once
	rd     *RedisContainer
	kfOnce sync.Once
	kf     *RedpandaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres starts Postgres on first use and applies the schema.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() {
		m.pg = NewPostgresContainer(t)
	})
	if m.pg == nil {
		t.Fatal("postgres container failed to start in an earlier suite")
	}
	return m.pg
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.rdOnce.Do(func() {
		m.rd = NewRedisContainer(t)
	})
	if m.rd == nil {
		t.Fatal("redis container failed to start in an earlier suite")
	}
	return m.rd
}

func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.kfOnce.Do(func() {
		m.kf = NewRedpandaContainer(t)
	})
	if m.kf == nil {
		t.Fatal("redpanda container failed to start in an earlier suite")
	}
	return m.kf
}
