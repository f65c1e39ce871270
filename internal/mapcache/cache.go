// Package mapcache serves area layouts for one game session. Misses are
// fetched on the caller's goroutine; neighbours of every requested area are
// warmed by a single background worker.
package mapcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AkatukiSora/mapassist/internal/game"
	"github.com/AkatukiSora/mapassist/internal/persistence"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("map cache closed")

// destroyTimeout bounds the best-effort session teardown in Close.
const destroyTimeout = 5 * time.Second

// Client is the part of the map service the cache uses.
type Client interface {
	CreateSession(ctx context.Context, difficulty game.Difficulty, mapSeed uint32) (string, error)
	FetchArea(ctx context.Context, sessionID string, area game.Area) (*game.AreaData, error)
	DestroySession(ctx context.Context, sessionID string) error
}

// Options tunes a Cache. The zero value prefetches only neighbours and keeps
// everything it loads.
type Options struct {
	// ClearOnAreaChange drops every cached area before each prefetch batch,
	// keeping only the neighbourhood of the latest area.
	ClearOnAreaChange bool
	// Prefetch is warmed as soon as the session exists.
	Prefetch []game.Area
	// Archive, when set, is consulted before the map service and receives
	// every fetched area.
	Archive persistence.AreaRepository
}

// Cache holds the areas of one (difficulty, seed) session.
type Cache struct {
	client     Client
	difficulty game.Difficulty
	mapSeed    uint32
	session    string
	opts       Options

	areas sync.Map // game.Area -> *game.AreaData

	// mu orders insertions against Close.
	mu     sync.Mutex
	closed bool

	queue     *batchQueue
	done      chan struct{}
	closeOnce sync.Once

	// afterBatch, when set, sees every batch the worker finishes.
	afterBatch func([]game.Area)
}

// New creates a map session and starts the prefetch worker.
func New(ctx context.Context, client Client, difficulty game.Difficulty, mapSeed uint32, opts Options) (*Cache, error) {
	return newCache(ctx, client, difficulty, mapSeed, opts, nil)
}

func newCache(ctx context.Context, client Client, difficulty game.Difficulty, mapSeed uint32, opts Options, afterBatch func([]game.Area)) (*Cache, error) {
	session, err := client.CreateSession(ctx, difficulty, mapSeed)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		client:     client,
		difficulty: difficulty,
		mapSeed:    mapSeed,
		session:    session,
		opts:       opts,
		queue:      newBatchQueue(),
		done:       make(chan struct{}),
		afterBatch: afterBatch,
	}
	go c.run()

	if len(opts.Prefetch) > 0 {
		c.queue.push(append([]game.Area(nil), opts.Prefetch...))
	}
	return c, nil
}

// Session returns the map service session id.
func (c *Cache) Session() string {
	return c.session
}

// Get returns the layout of area. On a miss it consults the archive, then
// fetches from the map service; fetch failures are returned as is. Every
// successful call queues the area's neighbours for prefetch.
func (c *Cache) Get(ctx context.Context, area game.Area) (*game.AreaData, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	data, ok := c.lookup(area)
	if !ok {
		slog.Info("map cache miss", "area", area, "session", c.session)
		var err error
		data, err = c.load(ctx, area)
		if err != nil {
			return nil, err
		}
		c.store(area, data)
	}

	if adjacent := data.AdjacentAreas(); len(adjacent) > 0 {
		c.queue.push(adjacent)
	}
	return data, nil
}

// Contains reports whether area is cached.
func (c *Cache) Contains(area game.Area) bool {
	_, ok := c.areas.Load(area)
	return ok
}

// Len returns the number of cached areas.
func (c *Cache) Len() int {
	n := 0
	c.areas.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the worker after it has drained the queued batches, then
// destroys the session. Destroy failures are logged only. Close is
// idempotent.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.queue.close()
		<-c.done

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
		defer cancel()
		if err := c.client.DestroySession(ctx, c.session); err != nil {
			slog.Warn("map session already gone", "session", c.session, "error", err)
		}
	})
}

func (c *Cache) run() {
	defer close(c.done)
	// In-flight fetches are never cancelled; shutdown waits for them.
	ctx := context.Background()

	for {
		batch, ok := c.queue.pop()
		if !ok {
			slog.Debug("prefetch worker stopped", "session", c.session)
			return
		}
		if c.opts.ClearOnAreaChange {
			c.clear()
		}
		for _, area := range batch {
			if c.Contains(area) {
				continue
			}
			data, err := c.load(ctx, area)
			if err != nil {
				slog.Warn("prefetch failed", "area", area, "session", c.session, "error", err)
				continue
			}
			c.store(area, data)
			slog.Debug("prefetched area", "area", area, "session", c.session)
		}
		if c.afterBatch != nil {
			c.afterBatch(batch)
		}
	}
}

func (c *Cache) lookup(area game.Area) (*game.AreaData, bool) {
	v, ok := c.areas.Load(area)
	if !ok {
		return nil, false
	}
	return v.(*game.AreaData), true
}

// load reads area from the archive or, failing that, the map service.
// Archive errors never fail the load.
func (c *Cache) load(ctx context.Context, area game.Area) (*game.AreaData, error) {
	key := persistence.AreaKey{Difficulty: c.difficulty, MapSeed: c.mapSeed, Area: area}
	if c.opts.Archive != nil {
		data, err := c.opts.Archive.GetArea(ctx, key)
		if err != nil {
			slog.Warn("archive read failed", "key", key, "error", err)
		} else if data != nil {
			return data, nil
		}
	}

	data, err := c.client.FetchArea(ctx, c.session, area)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", c.session, err)
	}

	if c.opts.Archive != nil {
		if err := c.opts.Archive.SaveArea(ctx, key, data); err != nil {
			slog.Warn("archive write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

func (c *Cache) store(area game.Area, data *game.AreaData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.areas.Store(area, data)
}

func (c *Cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.areas.Clear()
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
