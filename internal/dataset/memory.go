package dataset

import (
	"context"
	"fmt"
	"sync"

	"efti-gate/pkg/platform/sentinel"
)

// Note is a follow-up message received by InMemory.
type Note struct {
	PlatformID string
	DatasetID  string
	Message    string
}

// InMemory is a dataset source backed by a map, keyed by platform and dataset.
type InMemory struct {
	mu        sync.RWMutex
	platforms []string
	datasets  map[string][]byte
	notes     []Note
}

func NewInMemory(platforms ...string) *InMemory {
	return &InMemory{
		platforms: platforms,
		datasets:  make(map[string][]byte),
	}
}

func key(platformID, datasetID string) string {
	return platformID + "/" + datasetID
}

// Put stores doc as the dataset for platformID and datasetID.
func (m *InMemory) Put(platformID, datasetID string, doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[key(platformID, datasetID)] = doc
}

func (m *InMemory) KnowsPlatform(platformID string) bool {
	return knows(m.platforms, platformID)
}

// FetchDataset ignores subset filters and returns the whole document.
func (m *InMemory) FetchDataset(_ context.Context, platformID, datasetID string, _ []string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.datasets[key(platformID, datasetID)]
	if !ok {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, sentinel.ErrNotFound)
	}
	return doc, nil
}

func (m *InMemory) PostNote(_ context.Context, platformID, datasetID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[key(platformID, datasetID)]; !ok {
		return fmt.Errorf("post note for %s: %w", datasetID, sentinel.ErrNotFound)
	}
	m.notes = append(m.notes, Note{PlatformID: platformID, DatasetID: datasetID, Message: message})
	return nil
}

// Notes returns the notes posted so far.
func (m *InMemory) Notes() []Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Note(nil), m.notes...)
}
