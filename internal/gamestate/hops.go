package gamestate

import (
	"fmt"

	"github.com/AkatukiSora/mapassist/internal/config"
	"github.com/AkatukiSora/mapassist/internal/game"
	"github.com/AkatukiSora/mapassist/internal/procmem"
)

// hop dereferences the pointer stored at offset from the current structure.
type hop struct {
	name   string
	offset uint64
}

// field is a value read at offset from the structure reached by following
// path from the player unit. A zero width only verifies the path.
type field struct {
	name   string
	path   []hop
	offset uint64
	width  int
	set    func(*game.State, uint64)
}

func fieldsFor(o config.Offsets) []field {
	act := hop{"act", o.Unit.Act}
	path := hop{"path", o.Unit.Path}
	return []field{
		{name: "player", path: []hop{{"player", o.Unit.Player}}},
		{
			name: "map seed", path: []hop{act}, offset: o.Act.MapSeed, width: 4,
			set: func(s *game.State, v uint64) { s.MapSeed = uint32(v) },
		},
		{
			name: "difficulty", path: []hop{act, {"act misc", o.Act.Misc}}, offset: o.Act.Difficulty, width: 1,
			set: func(s *game.State, v uint64) { s.Difficulty = game.Difficulty(v) },
		},
		{
			name: "position x", path: []hop{path}, offset: o.Path.X, width: 2,
			set: func(s *game.State, v uint64) { s.PlayerPosition.X = int(v) },
		},
		{
			name: "position y", path: []hop{path}, offset: o.Path.Y, width: 2,
			set: func(s *game.State, v uint64) { s.PlayerPosition.Y = int(v) },
		},
		{
			name: "area",
			path: []hop{
				path,
				{"room1", o.Path.Room1},
				{"room2", o.Room1.Room2},
				{"level", o.Room2.Level},
			},
			offset: o.Level.AreaID, width: 4,
			set: func(s *game.State, v uint64) { s.Area = game.Area(v) },
		},
	}
}

// chase follows hops from addr and stops at the first null pointer.
func chase(p procmem.Process, addr uint64, hops []hop) (uint64, error) {
	for _, h := range hops {
		next, err := procmem.ReadPointer(p, addr+h.offset)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", h.name, err)
		}
		if next == 0 {
			return 0, fmt.Errorf("%w: %s", ErrPointerInvalid, h.name)
		}
		addr = next
	}
	return addr, nil
}

func (f field) read(p procmem.Process, unit uint64) (uint64, error) {
	addr, err := chase(p, unit, f.path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.name, err)
	}
	addr += f.offset

	var v uint64
	switch f.width {
	case 0:
		return 0, nil
	case 1:
		var b uint8
		b, err = procmem.ReadUint8(p, addr)
		v = uint64(b)
	case 2:
		var w uint16
		w, err = procmem.ReadUint16(p, addr)
		v = uint64(w)
	case 4:
		var d uint32
		d, err = procmem.ReadUint32(p, addr)
		v = uint64(d)
	default:
		v, err = procmem.ReadUint64(p, addr)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.name, err)
	}
	return v, nil
}
