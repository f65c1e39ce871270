package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AkatukiSora/mapassist/internal/game"
	"github.com/AkatukiSora/mapassist/internal/mapcache"
	"github.com/AkatukiSora/mapassist/internal/poi"
)

// ErrNoSession is returned by Area while no game has been seen yet.
var ErrNoSession = errors.New("no map session")

// StateSource produces game state snapshots. gamestate.Extractor satisfies it.
type StateSource interface {
	Poll() (game.State, bool)
}

// AreaCache serves the area layouts of one game. mapcache.Cache satisfies it.
type AreaCache interface {
	Get(ctx context.Context, area game.Area) (*game.AreaData, error)
	Close()
}

// CacheFactory opens the cache for a new game.
type CacheFactory func(ctx context.Context, difficulty game.Difficulty, mapSeed uint32) (AreaCache, error)

// NewCacheFactory returns a CacheFactory backed by mapcache.
func NewCacheFactory(client mapcache.Client, opts mapcache.Options) CacheFactory {
	return func(ctx context.Context, difficulty game.Difficulty, mapSeed uint32) (AreaCache, error) {
		c, err := mapcache.New(ctx, client, difficulty, mapSeed, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Config controls the poll loop. A zero Interval means 100ms.
type Config struct {
	Interval           time.Duration
	HiddenAreas        []game.Area
	ToggleViaInGameMap bool
}

// Frame is the result of one poll published to observers.
type Frame struct {
	State     game.State            `json:"state"`
	InGame    bool                  `json:"inGame"`
	Area      game.Area             `json:"area"`
	AreaName  string                `json:"areaName"`
	POIs      []poi.PointOfInterest `json:"pois"`
	Hidden    bool                  `json:"hidden"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Service runs the poll loop: read the game state, keep a map session per
// game, load the current area and decide whether the map is shown.
type Service struct {
	source   StateSource
	newCache CacheFactory
	cfg      Config

	// tickMu serialises Tick and Close; mu guards the fields below for
	// readers and is never held across network calls.
	tickMu sync.Mutex

	mu      sync.RWMutex
	cache   AreaCache
	last    *game.State
	area    *game.AreaData
	pois    []poi.PointOfInterest
	visible bool
	frame   Frame

	subMu sync.Mutex
	subs  map[chan Frame]struct{}
}

// NewService returns a Service polling source. newCache opens the map
// session of each game the source reports.
func NewService(source StateSource, newCache CacheFactory, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Service{
		source:   source,
		newCache: newCache,
		cfg:      cfg,
		visible:  true,
		frame:    Frame{Hidden: true},
		subs:     make(map[chan Frame]struct{}),
	}
}

// Run ticks every Interval until ctx is cancelled, then closes the current
// map session.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("poll loop starting", "interval", s.cfg.Interval)
	defer s.Close()

	// A timer rather than a ticker: a slow tick must not queue up more.
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("poll loop stopped")
			return nil
		case <-timer.C:
		}
		if err := s.Tick(ctx); err != nil {
			slog.Warn("tick failed", "error", err)
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Tick performs one poll. An unavailable state keeps the last known one.
// A failed map session or area load is returned; the next tick retries it.
// Network calls run without holding the state lock, so readers keep seeing
// the previous frame meanwhile.
func (s *Service) Tick(ctx context.Context) error {
	state, ok := s.source.Poll()
	if !ok {
		return nil
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	err := s.update(ctx, state)

	s.mu.Lock()
	frame := s.buildFrameLocked()
	s.frame = frame
	s.mu.Unlock()

	s.publish(frame)
	return err
}

// update runs with tickMu held. Only tickMu holders write cache, last, area
// and pois, so update reads them directly and takes mu only to commit.
func (s *Service) update(ctx context.Context, state game.State) error {
	prev := s.last
	cache := s.cache
	if state.HasGameChanged(prev) {
		slog.Info("game changed", "state", state.String())
		s.mu.Lock()
		s.cache = nil
		s.area, s.pois = nil, nil
		s.mu.Unlock()
		if cache != nil {
			cache.Close()
		}

		next, err := s.newCache(ctx, state.Difficulty, state.MapSeed)
		if err != nil {
			// Unset last so the next poll counts as a new game again.
			s.mu.Lock()
			s.last = nil
			s.mu.Unlock()
			return fmt.Errorf("open map session: %w", err)
		}
		cache = next
		s.mu.Lock()
		s.cache = next
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.last = &state
	if state.Area == game.AreaNone {
		s.area, s.pois = nil, nil
	}
	current := s.area
	s.mu.Unlock()

	if state.Area == game.AreaNone {
		return nil
	}
	if !state.HasMapChanged(prev) && current != nil {
		return nil
	}

	slog.Info("area changed", "area", state.Area)
	data, err := cache.Get(ctx, state.Area)
	if err != nil {
		s.mu.Lock()
		s.area, s.pois = nil, nil
		s.mu.Unlock()
		return fmt.Errorf("load area %s: %w", state.Area, err)
	}
	pois, err := poi.Get(ctx, cache, data)
	if err != nil {
		// The map is still usable without markers.
		slog.Warn("points of interest unavailable", "area", state.Area, "error", err)
	}
	s.mu.Lock()
	s.area, s.pois = data, pois
	s.mu.Unlock()
	return nil
}

func (s *Service) buildFrameLocked() Frame {
	f := Frame{UpdatedAt: time.Now(), POIs: slices.Clone(s.pois)}
	if s.last != nil {
		f.State = *s.last
		f.InGame = true
		f.Area = s.last.Area
		f.AreaName = s.last.Area.Name()
	}
	f.Hidden = s.shouldHideLocked()
	return f
}

func (s *Service) shouldHideLocked() bool {
	if !s.visible || s.last == nil {
		return true
	}
	if s.last.Area == game.AreaNone || s.area == nil {
		return true
	}
	if slices.Contains(s.cfg.HiddenAreas, s.last.Area) {
		return true
	}
	if s.cfg.ToggleViaInGameMap && !s.last.MapShown {
		return true
	}
	return false
}

// SetVisible switches the overlay on or off independent of the game state.
func (s *Service) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	frame := s.buildFrameLocked()
	s.frame = frame
	s.mu.Unlock()
	s.publish(frame)
}

// Snapshot returns the latest frame.
func (s *Service) Snapshot() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.frame
	f.POIs = slices.Clone(f.POIs)
	return f
}

// Area returns a layout of the current game.
func (s *Service) Area(ctx context.Context, area game.Area) (*game.AreaData, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()
	if cache == nil {
		return nil, ErrNoSession
	}
	return cache.Get(ctx, area)
}

// Subscribe returns a channel receiving every published frame. Slow
// subscribers miss frames rather than stall the loop.
func (s *Service) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 8)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Service) publish(f Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Close releases the current map session. It waits for a running Tick.
func (s *Service) Close() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	cache := s.cache
	s.cache, s.last = nil, nil
	s.area, s.pois = nil, nil
	s.mu.Unlock()

	if cache != nil {
		cache.Close()
	}
}
