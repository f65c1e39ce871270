package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Offsets is the memory layout table of the target client. Top-level offsets
// are relative to the main module; the nested groups are relative to the
// structure they are named after.
type Offsets struct {
	UnitTable          uint64 `yaml:"unit_table"`
	InGameMap          uint64 `yaml:"in_game_map"`
	UnitSlots          int    `yaml:"unit_slots"`
	PlayerMarkerOffset uint64 `yaml:"player_marker_offset"`
	PlayerMarker       uint64 `yaml:"player_marker"`

	Unit  UnitOffsets  `yaml:"unit"`
	Act   ActOffsets   `yaml:"act"`
	Path  PathOffsets  `yaml:"path"`
	Room1 Room1Offsets `yaml:"room1"`
	Room2 Room2Offsets `yaml:"room2"`
	Level LevelOffsets `yaml:"level"`
}

type UnitOffsets struct {
	Player uint64 `yaml:"player"`
	Act    uint64 `yaml:"act"`
	Path   uint64 `yaml:"path"`
}

type ActOffsets struct {
	MapSeed    uint64 `yaml:"map_seed"`
	Misc       uint64 `yaml:"misc"`
	Difficulty uint64 `yaml:"difficulty"` // relative to the misc structure
}

type PathOffsets struct {
	X     uint64 `yaml:"x"`
	Y     uint64 `yaml:"y"`
	Room1 uint64 `yaml:"room1"`
}

type Room1Offsets struct {
	Room2 uint64 `yaml:"room2"`
}

type Room2Offsets struct {
	Level uint64 `yaml:"level"`
}

type LevelOffsets struct {
	AreaID uint64 `yaml:"area_id"`
}

// DefaultOffsets returns the built-in layout for the 64-bit client.
func DefaultOffsets() Offsets {
	return Offsets{
		UnitTable:          0x20AF660,
		InGameMap:          0x20BF322,
		UnitSlots:          128,
		PlayerMarkerOffset: 0xB8,
		PlayerMarker:       0x100,
		Unit:               UnitOffsets{Player: 0x10, Act: 0x20, Path: 0x38},
		Act:                ActOffsets{MapSeed: 0x14, Misc: 0x70, Difficulty: 0x830},
		Path:               PathOffsets{X: 0x02, Y: 0x06, Room1: 0x20},
		Room1:              Room1Offsets{Room2: 0x18},
		Room2:              Room2Offsets{Level: 0x90},
		Level:              LevelOffsets{AreaID: 0x1F8},
	}
}

// LoadOffsets reads a YAML offsets file. Keys missing from the file keep
// their default values.
func LoadOffsets(path string) (Offsets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Offsets{}, fmt.Errorf("read offsets: %w", err)
	}
	return ParseOffsets(raw)
}

// ParseOffsets decodes a YAML offsets document on top of DefaultOffsets.
func ParseOffsets(raw []byte) (Offsets, error) {
	o := DefaultOffsets()
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return Offsets{}, fmt.Errorf("offsets.yaml: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Offsets{}, err
	}
	return o, nil
}

// Validate rejects tables that cannot address the unit table or map flag.
func (o Offsets) Validate() error {
	var errs []error
	if o.UnitTable == 0 {
		errs = append(errs, errors.New("unit_table must be non-zero"))
	}
	if o.InGameMap == 0 {
		errs = append(errs, errors.New("in_game_map must be non-zero"))
	}
	if o.UnitSlots <= 0 {
		errs = append(errs, fmt.Errorf("unit_slots must be positive, got %d", o.UnitSlots))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid offsets: %w", errors.Join(errs...))
	}
	return nil
}
