// fakemapapi serves deterministic synthetic area layouts over the map
// service's HTTP interface, for running mapassist without a real map server.
//
// Every layout is derived from (difficulty, map seed, area), so the same game
// always sees the same maps. Neighbouring area ids are linked to each other,
// the Canyon of the Magi links to all seven tombs and exactly one tomb holds
// the Horadric orifice.
//
// Usage:
//
//	go run ./tools/fakemapapi [flags]
//
// Flags:
//
//	--addr   listen address (default: "127.0.0.1:8080")
//	--debug  log every request
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/AkatukiSora/mapassist/internal/applog"
	"github.com/AkatukiSora/mapassist/internal/game"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type adjacentLevel struct {
	Exits  []point `json:"exits"`
	Origin point   `json:"origin"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

type areaBody struct {
	LevelOrigin    point                    `json:"levelOrigin"`
	AdjacentLevels map[string]adjacentLevel `json:"adjacentLevels"`
	MapRows        [][]int                  `json:"mapRows"`
	NPCs           map[string][]point       `json:"npcs"`
	Objects        map[string][]point       `json:"objects"`
}

type session struct {
	Difficulty game.Difficulty
	MapSeed    uint32
}

// waypointObject is one of the waypoint object ids the client recognises.
const waypointObject game.ObjectID = 119

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	debug := flag.Bool("debug", false, "log every request")
	flag.Parse()

	applog.Init(*debug)
	slog.Info("fake map service listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, newServer().routes()); err != nil {
		fmt.Fprintf(os.Stderr, "fakemapapi: %v\n", err)
		os.Exit(1)
	}
}

type server struct {
	mu       sync.Mutex
	next     int
	sessions map[string]session
}

func newServer() *server {
	return &server{sessions: make(map[string]session)}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/sessions/", s.createSession)
	r.Get("/sessions/{id}/areas/{area}", s.getArea)
	r.Delete("/sessions/{id}", s.deleteSession)
	return gzhttp.GzipHandler(r)
}

func (s *server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Difficulty uint   `json:"difficulty"`
		MapID      uint32 `json:"mapid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.next++
	id := "s" + strconv.Itoa(s.next)
	s.sessions[id] = session{Difficulty: game.Difficulty(req.Difficulty), MapSeed: req.MapID}
	s.mu.Unlock()

	slog.Info("session created", "session", id, "difficulty", req.Difficulty, "seed", req.MapID)
	writeJSON(w, map[string]string{"id": id})
}

func (s *server) getArea(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess, ok := s.sessions[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "area"), 10, 32)
	area := game.Area(id)
	if err != nil || !area.Known() {
		http.Error(w, "unknown area", http.StatusNotFound)
		return
	}
	slog.Debug("area served", "area", area, "seed", sess.MapSeed)
	writeJSON(w, generateArea(sess, area))
}

func (s *server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	slog.Info("session destroyed", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func areaRNG(sess session, area game.Area) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(sess.MapSeed), uint64(sess.Difficulty)<<32|uint64(area)))
}

// neighbours links every area to the ids on either side of it, except the
// Canyon of the Magi and its tombs, which link to each other.
func neighbours(area game.Area) []game.Area {
	tombs := game.TalRashasTombs()
	switch {
	case area == game.CanyonOfTheMagi:
		return append([]game.Area{area - 1}, tombs...)
	case area >= tombs[0] && area <= tombs[len(tombs)-1]:
		return []game.Area{game.CanyonOfTheMagi}
	}
	var out []game.Area
	for _, a := range []game.Area{area - 1, area + 1} {
		if a.Known() {
			out = append(out, a)
		}
	}
	return out
}

// realTomb picks the tomb holding the orifice for a game.
func realTomb(sess session) game.Area {
	tombs := game.TalRashasTombs()
	return tombs[int(sess.MapSeed%uint32(len(tombs)))]
}

func generateArea(sess session, area game.Area) areaBody {
	rng := areaRNG(sess, area)
	width, height := 40+rng.IntN(80), 40+rng.IntN(80)
	origin := point{X: rng.IntN(20000), Y: rng.IntN(20000)}

	rows := make([][]int, height)
	for y := range rows {
		rows[y] = make([]int, width)
		for x := range rows[y] {
			// 1 marks a wall; the border is always solid.
			if x == 0 || y == 0 || x == width-1 || y == height-1 || rng.IntN(100) < 15 {
				rows[y][x] = 1
			}
		}
	}

	inside := func() point {
		return point{X: origin.X + 1 + rng.IntN(width-2), Y: origin.Y + 1 + rng.IntN(height-2)}
	}

	body := areaBody{
		LevelOrigin:    origin,
		AdjacentLevels: make(map[string]adjacentLevel),
		MapRows:        rows,
		NPCs:           make(map[string][]point),
		Objects:        make(map[string][]point),
	}
	for _, adj := range neighbours(area) {
		adjRNG := areaRNG(sess, adj)
		body.AdjacentLevels[strconv.Itoa(int(adj))] = adjacentLevel{
			Exits:  []point{inside()},
			Origin: point{X: adjRNG.IntN(20000), Y: adjRNG.IntN(20000)},
			Width:  40 + adjRNG.IntN(80),
			Height: 40 + adjRNG.IntN(80),
		}
	}
	if rng.IntN(3) == 0 {
		body.Objects[strconv.Itoa(int(waypointObject))] = []point{inside()}
	}
	if area == realTomb(sess) {
		body.Objects[strconv.Itoa(int(game.ObjectHoradricOrifice))] = []point{inside()}
	}
	for i, n := 0, rng.IntN(4); i < n; i++ {
		id := strconv.Itoa(rng.IntN(700))
		body.NPCs[id] = append(body.NPCs[id], inside())
	}
	return body
}
