// Package gamestate reconstructs the player's live state from the client's
// memory by following a fixed chain of pointers from the unit table.
package gamestate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AkatukiSora/mapassist/internal/config"
	"github.com/AkatukiSora/mapassist/internal/game"
	"github.com/AkatukiSora/mapassist/internal/procmem"
)

var (
	// ErrPointerInvalid is returned when a hop in the pointer chain is null.
	ErrPointerInvalid = errors.New("invalid pointer")

	// ErrPlayerNotFound is returned when no unit table slot holds the player.
	ErrPlayerNotFound = errors.New("player unit not found")
)

// Extractor reads game.State snapshots from the target process. It is safe
// for concurrent use, though polls are normally issued from a single loop.
type Extractor struct {
	opener procmem.Opener
	name   string

	mu      sync.Mutex
	offsets config.Offsets
	slot    slotCache
}

// slotCache remembers which unit table slot holds the player. It is only
// valid for the process instance it was found in.
type slotCache struct {
	pid  int
	base uint64
	addr uint64
}

func (c slotCache) matches(p procmem.Process) bool {
	return c.addr != 0 && c.pid == p.PID() && c.base == p.BaseAddress()
}

// New returns an extractor for the process called name.
func New(opener procmem.Opener, name string, offsets config.Offsets) *Extractor {
	return &Extractor{
		opener:  opener,
		name:    name,
		offsets: offsets,
	}
}

// SetOffsets swaps the offset table and drops the cached slot.
func (e *Extractor) SetOffsets(o config.Offsets) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offsets = o
	e.slot = slotCache{}
}

// Reset forgets the cached player slot so the next read rescans the table.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slot = slotCache{}
}

// Poll returns the current state, or false when it cannot be read for any
// reason: process missing, player not in game, or a broken pointer chain.
func (e *Extractor) Poll() (game.State, bool) {
	s, err := e.Read()
	if err != nil {
		slog.Debug("game state unavailable", "error", err)
		return game.State{}, false
	}
	return s, true
}

// Read is Poll with the failure cause kept.
func (e *Extractor) Read() (game.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var state game.State
	err := procmem.With(e.opener, e.name, func(p procmem.Process) error {
		var err error
		state, err = e.read(p)
		return err
	})
	if err != nil {
		return game.State{}, err
	}
	return state, nil
}

func (e *Extractor) read(p procmem.Process) (game.State, error) {
	o := e.offsets
	base := p.BaseAddress()

	if !e.slot.matches(p) {
		if e.slot.addr != 0 {
			slog.Info("target process changed, rescanning unit table",
				"pid", p.PID(), "base", fmt.Sprintf("%#x", base))
		}
		addr, err := findPlayerSlot(p, o)
		if err != nil {
			e.slot = slotCache{}
			return game.State{}, err
		}
		e.slot = slotCache{pid: p.PID(), base: base, addr: addr}
		slog.Debug("player slot found", "slot", fmt.Sprintf("%#x", addr))
	}

	unit, err := procmem.ReadPointer(p, e.slot.addr)
	if err != nil {
		return game.State{}, fmt.Errorf("player unit: %w", err)
	}
	if unit == 0 {
		// The player left the game; find the new unit next time.
		e.slot = slotCache{}
		return game.State{}, fmt.Errorf("%w: player unit", ErrPointerInvalid)
	}

	state := game.State{WindowHandle: p.WindowHandle()}
	for _, f := range fieldsFor(o) {
		v, err := f.read(p, unit)
		if err != nil {
			return game.State{}, err
		}
		if f.set != nil {
			f.set(&state, v)
		}
	}

	shown, err := procmem.ReadUint8(p, base+o.InGameMap)
	if err != nil {
		return game.State{}, fmt.Errorf("map shown flag: %w", err)
	}
	state.MapShown = shown != 0
	return state, nil
}

// findPlayerSlot scans the unit table for the first unit carrying the player
// marker and returns the address of its slot.
func findPlayerSlot(p procmem.Process, o config.Offsets) (uint64, error) {
	table := p.BaseAddress() + o.UnitTable
	for i := 0; i < o.UnitSlots; i++ {
		slot := table + uint64(i)*8
		unit, err := procmem.ReadPointer(p, slot)
		if err != nil {
			return 0, fmt.Errorf("unit table slot %d: %w", i, err)
		}
		if unit == 0 {
			continue
		}
		marker, err := procmem.ReadUint64(p, unit+o.PlayerMarkerOffset)
		if err != nil {
			// Stale entries may point into freed memory.
			continue
		}
		if marker == o.PlayerMarker {
			return slot, nil
		}
	}
	return 0, ErrPlayerNotFound
}
