package models

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/tsmodel"
)

var _ Store = (*MemoryStore)(nil)

type artifactKey struct {
	user, category, kind string
}

// MemoryStore keeps encoded artifacts in process memory. Artifacts go
// through the codec so it behaves like the persistent backends.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[artifactKey][]byte
	trainedAt map[artifactKey]time.Time
	users     map[string]time.Time
	logs      map[string][]RunLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[artifactKey][]byte),
		trainedAt: make(map[artifactKey]time.Time),
		users:     make(map[string]time.Time),
		logs:      make(map[string][]RunLog),
	}
}

func (m *MemoryStore) load(userID, category, kind string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.artifacts[artifactKey{userID, category, kind}]
	if !ok {
		return nil, core.ErrModelNotFound
	}
	return b, nil
}

func (m *MemoryStore) save(userID, category, kind string, b []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := artifactKey{userID, category, kind}
	m.artifacts[k] = b
	m.trainedAt[k] = at
}

func (m *MemoryStore) LoadSeasonal(_ context.Context, userID, category string) (*tsmodel.SeasonalArtifact, error) {
	b, err := m.load(userID, category, KindSeasonal)
	if err != nil {
		return nil, err
	}
	return DecodeSeasonal(b)
}

func (m *MemoryStore) LoadSequence(_ context.Context, userID, category string) (*tsmodel.SequenceArtifact, error) {
	b, err := m.load(userID, category, KindSequence)
	if err != nil {
		return nil, err
	}
	return DecodeSequence(b)
}

func (m *MemoryStore) SaveSeasonal(_ context.Context, userID, category string, a *tsmodel.SeasonalArtifact) error {
	b, err := EncodeSeasonal(a)
	if err != nil {
		return err
	}
	m.save(userID, category, KindSeasonal, b, a.TrainedAt)
	return nil
}

func (m *MemoryStore) SaveSequence(_ context.Context, userID, category string, a *tsmodel.SequenceArtifact) error {
	b, err := EncodeSequence(a)
	if err != nil {
		return err
	}
	m.save(userID, category, KindSequence, b, a.TrainedAt)
	return nil
}

// PutRaw stores bytes without validation, for exercising corrupt artifacts.
func (m *MemoryStore) PutRaw(userID, category, kind string, b []byte) {
	m.save(userID, category, kind, b, time.Time{})
}

func (m *MemoryStore) MarkTrained(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = at
	return nil
}

func (m *MemoryStore) Status(_ context.Context, userID string) (UserStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := UserStatus{UserID: userID, LastTrained: m.users[userID]}
	keys := slices.SortedFunc(maps.Keys(m.artifacts), func(a, b artifactKey) int {
		if a.category != b.category {
			if a.category < b.category {
				return -1
			}
			return 1
		}
		if a.kind < b.kind {
			return -1
		}
		if a.kind > b.kind {
			return 1
		}
		return 0
	})
	for _, k := range keys {
		if k.user != userID {
			continue
		}
		c := st.Category(k.category)
		switch k.kind {
		case KindSeasonal:
			c.HasSeasonal = true
			c.SeasonalTrainedAt = m.trainedAt[k]
		case KindSequence:
			c.HasSequence = true
			c.SequenceTrainedAt = m.trainedAt[k]
		}
	}
	st.RecentLogs = recent(m.logs[userID], 5)
	return st, nil
}

func (m *MemoryStore) ListTrained(_ context.Context) ([]core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.User, 0, len(m.users))
	for id, at := range m.users {
		out = append(out, core.User{ID: id, LastTrained: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveRunLog(_ context.Context, log RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.UserID] = append(m.logs[log.UserID], log)
	return nil
}

func (m *MemoryStore) ListRunLogs(_ context.Context, userID string, limit int) ([]RunLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return recent(m.logs[userID], limit), nil
}

// recent returns up to limit logs, newest first.
func recent(logs []RunLog, limit int) []RunLog {
	out := slices.Clone(logs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
