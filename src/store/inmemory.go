package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// InMemoryStore is a thread-safe in-memory implementation of Store.
// Used in tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]BuildRecord // project/target/number -> record
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]BuildRecord)}
}

func recordKey(projectID, targetID string, buildNumber int) string {
	return projectID + "/" + targetID + "/" + strconv.Itoa(buildNumber)
}

// RecordBuild saves one build outcome, overwriting any previous record of the
// same build.
func (s *InMemoryStore) RecordBuild(ctx context.Context, record *BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(record.ProjectID, record.TargetID, record.BuildNumber)] = *record
	return nil
}

// History returns records for a target, newest build number first.
func (s *InMemoryStore) History(ctx context.Context, projectID, targetID string, limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []BuildRecord
	for _, record := range s.records {
		if record.ProjectID == projectID && record.TargetID == targetID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BuildNumber > out[j].BuildNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
