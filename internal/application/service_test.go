package application

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AkatukiSora/mapassist/internal/config"
	"github.com/AkatukiSora/mapassist/internal/game"
	"github.com/AkatukiSora/mapassist/internal/gamestate"
	"github.com/AkatukiSora/mapassist/internal/mapapi"
	"github.com/AkatukiSora/mapassist/internal/mapcache"
	"github.com/AkatukiSora/mapassist/internal/procmem"
)

type scriptedSource struct {
	states []game.State
	ok     []bool
	i      int
}

func (s *scriptedSource) Poll() (game.State, bool) {
	if s.i >= len(s.states) {
		return game.State{}, false
	}
	st, ok := s.states[s.i], s.ok[s.i]
	s.i++
	return st, ok
}

type stubCache struct {
	mu     sync.Mutex
	seed   uint32
	gets   []game.Area
	fail   bool
	closed bool
}

func (c *stubCache) Get(_ context.Context, area game.Area) (*game.AreaData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets = append(c.gets, area)
	if c.fail {
		return nil, errors.New("map service down")
	}
	return &game.AreaData{
		Area: area,
		AdjacentLevels: map[game.Area]game.AdjacentLevel{
			area + 1: {Area: area + 1, Exits: []game.Point{{X: 1, Y: 1}}},
		},
	}, nil
}

func (c *stubCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type stubFactory struct {
	caches []*stubCache
	err    error
}

func (f *stubFactory) open(_ context.Context, _ game.Difficulty, seed uint32) (AreaCache, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &stubCache{seed: seed}
	f.caches = append(f.caches, c)
	return c, nil
}

func inGame(seed uint32, area game.Area) game.State {
	return game.State{MapSeed: seed, Difficulty: game.Normal, Area: area, MapShown: true}
}

func TestTickFollowsGameAndArea(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		states: []game.State{
			inGame(1, game.BloodMoor),
			inGame(1, game.BloodMoor),
			{},
			inGame(1, game.ColdPlains),
			inGame(2, game.RogueEncampment),
		},
		ok: []bool{true, true, false, true, true},
	}
	factory := &stubFactory{}
	svc := NewService(source, factory.open, Config{ToggleViaInGameMap: true})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if i == 2 {
			// Unavailable poll keeps the previous frame.
			if f := svc.Snapshot(); f.Area != game.BloodMoor || !f.InGame {
				t.Fatalf("frame after unavailable poll = %+v", f)
			}
		}
	}

	if len(factory.caches) != 2 {
		t.Fatalf("caches opened = %d, want 2", len(factory.caches))
	}
	first, second := factory.caches[0], factory.caches[1]
	if !first.closed || second.closed {
		t.Fatalf("closed = %v/%v, want first only", first.closed, second.closed)
	}
	if got := first.gets; len(got) != 2 || got[0] != game.BloodMoor || got[1] != game.ColdPlains {
		t.Fatalf("first cache gets = %v", got)
	}

	f := svc.Snapshot()
	if f.Hidden || f.Area != game.RogueEncampment || f.AreaName != "Rogue Encampment" {
		t.Fatalf("frame = %+v", f)
	}
	if len(f.POIs) != 1 || f.POIs[0].Label != game.BloodMoor.Name() {
		t.Fatalf("pois = %+v", f.POIs)
	}

	svc.Close()
	if !second.closed {
		t.Fatalf("close did not release the session")
	}
}

func TestHiddenDecision(t *testing.T) {
	t.Parallel()

	mapClosed := inGame(1, game.BloodMoor)
	mapClosed.MapShown = false

	tests := []struct {
		name   string
		state  game.State
		cfg    Config
		hidden bool
	}{
		{"shown", inGame(1, game.BloodMoor), Config{ToggleViaInGameMap: true}, false},
		{"no area", inGame(1, game.AreaNone), Config{}, true},
		{"hidden area", inGame(1, game.Harrogath), Config{HiddenAreas: []game.Area{game.Harrogath}}, true},
		{"in-game map closed", mapClosed, Config{ToggleViaInGameMap: true}, true},
		{"toggle disabled", mapClosed, Config{ToggleViaInGameMap: false}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory := &stubFactory{}
			svc := NewService(&scriptedSource{states: []game.State{tt.state}, ok: []bool{true}}, factory.open, tt.cfg)
			if err := svc.Tick(context.Background()); err != nil {
				t.Fatalf("tick: %v", err)
			}
			if got := svc.Snapshot().Hidden; got != tt.hidden {
				t.Fatalf("hidden = %v, want %v", got, tt.hidden)
			}
		})
	}
}

func TestSetVisible(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	svc := NewService(&scriptedSource{states: []game.State{inGame(1, game.BloodMoor)}, ok: []bool{true}}, factory.open, Config{})
	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	frames, cancel := svc.Subscribe()
	defer cancel()

	svc.SetVisible(false)
	if f := <-frames; !f.Hidden {
		t.Fatalf("frame after hide = %+v", f)
	}
	svc.SetVisible(true)
	if f := <-frames; f.Hidden {
		t.Fatalf("frame after show = %+v", f)
	}
}

func TestSessionFailureIsRetried(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		states: []game.State{inGame(1, game.BloodMoor), inGame(1, game.BloodMoor)},
		ok:     []bool{true, true},
	}
	factory := &stubFactory{err: mapapi.ErrSessionCreate}
	svc := NewService(source, factory.open, Config{})

	if err := svc.Tick(context.Background()); !errors.Is(err, mapapi.ErrSessionCreate) {
		t.Fatalf("err = %v, want ErrSessionCreate", err)
	}
	if _, err := svc.Area(context.Background(), game.BloodMoor); !errors.Is(err, ErrNoSession) {
		t.Fatalf("area err = %v, want ErrNoSession", err)
	}

	factory.err = nil
	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if len(factory.caches) != 1 || len(factory.caches[0].gets) != 1 {
		t.Fatalf("retry did not open a session and load the area")
	}
}

func TestAreaFailureIsRetried(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		states: []game.State{inGame(1, game.BloodMoor), inGame(1, game.BloodMoor)},
		ok:     []bool{true, true},
	}
	factory := &stubFactory{}
	svc := NewService(source, func(ctx context.Context, d game.Difficulty, seed uint32) (AreaCache, error) {
		c, err := factory.open(ctx, d, seed)
		if err == nil {
			c.(*stubCache).fail = true
		}
		return c, err
	}, Config{})

	if err := svc.Tick(context.Background()); err == nil {
		t.Fatalf("expected area load error")
	}
	if !svc.Snapshot().Hidden {
		t.Fatalf("map must be hidden without area data")
	}

	cache := factory.caches[0]
	cache.mu.Lock()
	cache.fail = false
	cache.mu.Unlock()
	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if len(factory.caches) != 1 || len(cache.gets) != 2 {
		t.Fatalf("caches = %d, gets = %v", len(factory.caches), cache.gets)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	source := &scriptedSource{states: []game.State{inGame(1, game.BloodMoor)}, ok: []bool{true}}
	svc := NewService(source, factory.open, Config{Interval: 5 * time.Millisecond})

	frames, cancelSub := svc.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-frames:
	case <-time.After(3 * time.Second):
		t.Fatalf("no frame published")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}
	if !factory.caches[0].closed {
		t.Fatalf("run did not close the session on exit")
	}
}

// TestEndToEnd drives the loop from a synthetic process image against a fake
// map service.
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		deletes int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_, _ = io.WriteString(w, `{"id":"abc"}`)
		case r.Method == http.MethodDelete:
			mu.Lock()
			deletes++
			mu.Unlock()
		case strings.HasSuffix(r.URL.Path, "/areas/2"):
			_, _ = io.WriteString(w, `{"levelOrigin":{"x":1,"y":2},"mapRows":[[0]],"adjacentLevels":{"3":{"exits":[{"x":9,"y":9}],"origin":{"x":0,"y":0},"width":1,"height":1}},"objects":{"119":[{"x":4,"y":4}]}}`)
		default:
			_, _ = io.WriteString(w, `{"levelOrigin":{"x":0,"y":0},"mapRows":[]}`)
		}
	}))
	defer srv.Close()

	o := config.DefaultOffsets()
	img := newPlayerImage(o)
	extractor := gamestate.New(img, "D2R.exe", o)
	svc := NewService(extractor, NewCacheFactory(mapapi.NewClient(srv.URL, nil), mapcache.Options{}), Config{ToggleViaInGameMap: true})

	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	f := svc.Snapshot()
	if f.Hidden || f.Area != game.BloodMoor || f.State.MapSeed != 777 {
		t.Fatalf("frame = %+v", f)
	}
	if len(f.POIs) != 2 {
		t.Fatalf("pois = %+v, want next area and waypoint", f.POIs)
	}
	if img.OpenHandles() != 0 {
		t.Fatalf("open handles = %d", img.OpenHandles())
	}

	svc.Close()
	mu.Lock()
	defer mu.Unlock()
	if deletes != 1 {
		t.Fatalf("deletes = %d, want 1", deletes)
	}
}

func newPlayerImage(o config.Offsets) *procmem.Image {
	const (
		base  = 0x140000000
		unit  = 0x10000
		act   = 0x11000
		misc  = 0x12000
		path  = 0x13000
		room1 = 0x14000
		room2 = 0x15000
		level = 0x16000
	)
	img := procmem.NewImage("D2R.exe", 100, base)
	img.PutUint64(base+o.UnitTable, unit)
	img.PutUint64(unit+o.PlayerMarkerOffset, o.PlayerMarker)
	img.PutUint64(unit+o.Unit.Player, 0x17000)
	img.PutUint64(unit+o.Unit.Act, act)
	img.PutUint64(unit+o.Unit.Path, path)
	img.PutUint32(act+o.Act.MapSeed, 777)
	img.PutUint64(act+o.Act.Misc, misc)
	img.PutUint8(misc+o.Act.Difficulty, 0)
	img.PutUint16(path+o.Path.X, 10)
	img.PutUint16(path+o.Path.Y, 20)
	img.PutUint64(path+o.Path.Room1, room1)
	img.PutUint64(room1+o.Room1.Room2, room2)
	img.PutUint64(room2+o.Room2.Level, level)
	img.PutUint32(level+o.Level.AreaID, uint32(game.BloodMoor))
	img.PutUint8(base+o.InGameMap, 1)
	return img
}

func TestReadersDoNotWaitForMapService(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		states: []game.State{inGame(1, game.BloodMoor), inGame(2, game.ColdPlains)},
		ok:     []bool{true, true},
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	opened := 0
	open := func(_ context.Context, _ game.Difficulty, seed uint32) (AreaCache, error) {
		opened++
		if opened == 2 {
			close(entered)
			<-release
		}
		return &stubCache{seed: seed}, nil
	}
	svc := NewService(source, open, Config{})
	ctx := context.Background()

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}

	tickDone := make(chan error, 1)
	go func() { tickDone <- svc.Tick(ctx) }()
	<-entered

	readers := make(chan struct{})
	go func() {
		defer close(readers)
		if f := svc.Snapshot(); f.Area != game.BloodMoor {
			t.Errorf("snapshot during game change = %+v, want last frame", f)
		}
		svc.SetVisible(true)
		if f := svc.Snapshot(); f.State.MapSeed != 1 {
			t.Errorf("frame after SetVisible = %+v, want the previous game", f)
		}
		if _, err := svc.Area(ctx, game.BloodMoor); !errors.Is(err, ErrNoSession) {
			t.Errorf("area during game change err = %v, want %v", err, ErrNoSession)
		}
	}()

	select {
	case <-readers:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatalf("readers blocked while the tick waited on the map service")
	}

	close(release)
	if err := <-tickDone; err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if f := svc.Snapshot(); f.Area != game.ColdPlains {
		t.Fatalf("frame after game change = %+v", f)
	}
}
