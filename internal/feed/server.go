// Package feed exposes the poll loop's frames and the current game's area
// layouts to local clients over HTTP and WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/AkatukiSora/mapassist/internal/application"
	"github.com/AkatukiSora/mapassist/internal/game"
)

const writeTimeout = 5 * time.Second

// Source is what the feed reads from. application.Service satisfies it.
type Source interface {
	Snapshot() application.Frame
	Subscribe() (<-chan application.Frame, func())
	Area(ctx context.Context, area game.Area) (*game.AreaData, error)
	SetVisible(v bool)
}

// Server serves a Source to clients on the same host.
type Server struct {
	src      Source
	upgrader websocket.Upgrader
}

func NewServer(src Source) *Server {
	return &Server{
		src: src,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			// Only loopback peers get this far; browsers on the same host
			// may use any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the feed's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(loopbackOnly)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/state", s.getState)
		r.Get("/areas/{id}", s.getArea)
		r.Post("/visibility", s.setVisibility)
	})
	r.Get("/ws", s.serveWS)
	return r
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *Server) getArea(w http.ResponseWriter, r *http.Request) {
	area, ok := parseArea(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown area")
		return
	}

	data, err := s.src.Area(r.Context(), area)
	switch {
	case errors.Is(err, application.ErrNoSession):
		respondError(w, http.StatusServiceUnavailable, "no game in progress")
	case err != nil:
		slog.Warn("area request failed", "area", area, "error", err)
		respondError(w, http.StatusBadGateway, "map service unavailable")
	default:
		respondJSON(w, http.StatusOK, data)
	}
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.src.SetVisible(req.Visible)
	respondJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	frames, cancel := s.src.Subscribe()
	defer cancel()

	// The reader only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFrame(conn, s.src.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case f := <-frames:
			if err := writeFrame(conn, f); err != nil {
				slog.Debug("feed client dropped", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f application.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}

// parseArea accepts a numeric id or an area name.
func parseArea(s string) (game.Area, bool) {
	if id, err := strconv.ParseUint(s, 10, 32); err == nil {
		a := game.Area(id)
		return a, a.Known()
	}
	return game.LookupArea(s)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("feed request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

// loopbackOnly rejects peers on other hosts, whatever address the feed
// listens on.
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
