package store

import (
	"context"
	"sync"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
)

// MemoryStore keeps encoded replays in memory. Stored replays are
// round-tripped through the codec so callers cannot alias them.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]Entry
	blobs   map[string][]byte
}

// NewMemoryStore creates an empty store. A nil clock uses real time.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryStore{
		clock:   c,
		entries: make(map[string]Entry),
		blobs:   make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(ctx context.Context, name string, rf keyframe.ReplayFile) (Entry, error) {
	blob, err := EncodeBlob(rf, false)
	if err != nil {
		return Entry{}, err
	}
	e := newEntry(name, rf, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	s.blobs[e.ID] = blob
	return e, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (keyframe.ReplayFile, Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	blob := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return keyframe.ReplayFile{}, Entry{}, ErrNotFound
	}
	rf, err := DecodeBlob(blob)
	if err != nil {
		return keyframe.ReplayFile{}, Entry{}, err
	}
	return rf, e, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	delete(s.blobs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
