// Package persistence archives fetched area layouts so a restarted overlay
// can serve the current game without asking the map service again.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/AkatukiSora/mapassist/internal/game"
)

// AreaKey identifies one area layout. Layouts are deterministic per
// (difficulty, seed, area), so the key never goes stale within a game.
type AreaKey struct {
	Difficulty game.Difficulty
	MapSeed    uint32
	Area       game.Area
}

func (k AreaKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Difficulty, k.MapSeed, k.Area)
}

type AreaRepository interface {
	// GetArea returns nil, nil if the key is not archived.
	GetArea(ctx context.Context, key AreaKey) (*game.AreaData, error)
	// SaveArea stores data under key, replacing any previous entry.
	SaveArea(ctx context.Context, key AreaKey, data *game.AreaData) error
	// PurgeBefore removes entries saved before t and reports how many went.
	PurgeBefore(ctx context.Context, t time.Time) (int, error)
}

var (
	payloadEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	payloadDecoder, _ = zstd.NewReader(nil)
)

// encodeArea serializes data as zstd-compressed JSON. Collision grids are
// long runs of a few values and shrink by an order of magnitude.
func encodeArea(data *game.AreaData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode area: %w", err)
	}
	return payloadEncoder.EncodeAll(raw, nil), nil
}

func decodeArea(payload []byte) (*game.AreaData, error) {
	raw, err := payloadDecoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress area: %w", err)
	}
	var data game.AreaData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode area: %w", err)
	}
	return &data, nil
}
