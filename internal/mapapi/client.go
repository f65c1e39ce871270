// Package mapapi talks to the map generation service, which turns a
// (difficulty, map seed) pair into per-area layouts.
package mapapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/AkatukiSora/mapassist/internal/game"
)

var (
	// ErrSessionCreate is returned when the service does not hand out a session.
	ErrSessionCreate = errors.New("create map session")

	// ErrAreaFetch is returned for failed requests and unusable area bodies.
	ErrAreaFetch = errors.New("fetch area")
)

// maxBody bounds how much of a response is read. Collision grids of the
// largest areas are a few megabytes uncompressed.
const maxBody = 64 << 20

// Client is a map service client bound to one endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClient returns an HTTP client that negotiates gzip and zstd
// responses and decodes them transparently.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: gzhttp.Transport(http.DefaultTransport, gzhttp.TransportEnableZstd(true)),
		Timeout:   30 * time.Second,
	}
}

// NewClient returns a client for endpoint. A nil httpClient means
// NewHTTPClient().
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Endpoint returns the base URL requests are issued against.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// CreateSession opens a server-side session for one game.
func (c *Client) CreateSession(ctx context.Context, difficulty game.Difficulty, mapSeed uint32) (string, error) {
	body, err := json.Marshal(sessionRequest{Difficulty: uint(difficulty), MapID: mapSeed})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrSessionCreate, err)
	}

	raw, err := c.do(ctx, http.MethodPost, "sessions/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSessionCreate, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrSessionCreate)
	}

	slog.Info("map session created", "session", resp.ID, "difficulty", difficulty, "seed", mapSeed)
	return resp.ID, nil
}

// FetchArea downloads and converts the layout of one area.
func (c *Client) FetchArea(ctx context.Context, sessionID string, area game.Area) (*game.AreaData, error) {
	path := "sessions/" + url.PathEscape(sessionID) + "/areas/" + strconv.FormatUint(uint64(area), 10)
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrAreaFetch, area, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: decode: %v", ErrAreaFetch, area, err)
	}
	if err := areaSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrAreaFetch, area, err)
	}

	var wire rawAreaData
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w %s: decode: %v", ErrAreaFetch, area, err)
	}
	return wire.toAreaData(area), nil
}

// DestroySession releases a session. Callers treat failures as advisory: the
// service may already be gone.
func (c *Client) DestroySession(ctx context.Context, sessionID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "sessions/"+url.PathEscape(sessionID), nil); err != nil {
		return fmt.Errorf("destroy map session %s: %w", sessionID, err)
	}
	slog.Info("map session destroyed", "session", sessionID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return raw, nil
}
