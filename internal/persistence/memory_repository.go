package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/AkatukiSora/mapassist/internal/game"
)

type memoryEntry struct {
	payload []byte
	savedAt time.Time
}

// MemoryRepository keeps archived areas for the life of the process.
type MemoryRepository struct {
	mu    sync.RWMutex
	areas map[AreaKey]memoryEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		areas: make(map[AreaKey]memoryEntry),
	}
}

func (r *MemoryRepository) GetArea(_ context.Context, key AreaKey) (*game.AreaData, error) {
	r.mu.RLock()
	e, ok := r.areas[key]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	// Entries are kept encoded so callers never share maps with the archive.
	return decodeArea(e.payload)
}

func (r *MemoryRepository) SaveArea(_ context.Context, key AreaKey, data *game.AreaData) error {
	payload, err := encodeArea(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.areas[key] = memoryEntry{payload: payload, savedAt: time.Now().UTC()}
	return nil
}

func (r *MemoryRepository) PurgeBefore(_ context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.areas {
		if e.savedAt.Before(t) {
			delete(r.areas, key)
			n++
		}
	}
	return n, nil
}
