package results

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in memory. It backs result queries when no
// database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID][]Record)}
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.SessionID] = append(m.sessions[rec.SessionID], rec)
	return nil
}

func (m *MemoryStore) SessionResults(_ context.Context, sessionID uuid.UUID) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TrialIndex < out[j].TrialIndex })
	return out, nil
}
