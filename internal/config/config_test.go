package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/AkatukiSora/mapassist/internal/game"
)

func TestParseSettingsDefaults(t *testing.T) {
	t.Parallel()

	s, err := parseSettings(map[string]string{})
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	if s.APIEndpoint != "http://localhost:8080/" {
		t.Fatalf("endpoint = %q", s.APIEndpoint)
	}
	if s.ProcessName != "D2R.exe" {
		t.Fatalf("process name = %q", s.ProcessName)
	}
	if s.UpdateInterval != 100*time.Millisecond {
		t.Fatalf("update interval = %s", s.UpdateInterval)
	}
	if !s.ToggleViaInGameMap || s.ClearPrefetchedOnAreaChange {
		t.Fatalf("unexpected policy defaults: %+v", s)
	}
	if len(s.Prefetch()) != 0 {
		t.Fatalf("prefetch = %v, want none", s.Prefetch())
	}
	if s.ArchiveRetention != 168*time.Hour {
		t.Fatalf("archive retention = %s, want 168h", s.ArchiveRetention)
	}
}

func TestParseSettingsFromEnvironment(t *testing.T) {
	t.Parallel()

	s, err := parseSettings(map[string]string{
		"MAPASSIST_API_ENDPOINT":                    "http://maps.local:9000",
		"MAPASSIST_UPDATE_INTERVAL":                 "250ms",
		"MAPASSIST_PREFETCH_AREAS":                  "Rogue Encampment, Blood Moor, Atlantis",
		"MAPASSIST_HIDDEN_AREAS":                    "Harrogath",
		"MAPASSIST_CLEAR_PREFETCHED_ON_AREA_CHANGE": "true",
	})
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	if s.APIEndpoint != "http://maps.local:9000/" {
		t.Fatalf("endpoint = %q, want trailing slash", s.APIEndpoint)
	}
	if s.UpdateInterval != 250*time.Millisecond {
		t.Fatalf("update interval = %s", s.UpdateInterval)
	}
	if !s.ClearPrefetchedOnAreaChange {
		t.Fatalf("clear policy not read")
	}
	if got, want := s.Prefetch(), []game.Area{game.RogueEncampment, game.BloodMoor}; !slices.Equal(got, want) {
		t.Fatalf("prefetch = %v, want %v", got, want)
	}
	if got, want := s.Hidden(), []game.Area{game.Harrogath}; !slices.Equal(got, want) {
		t.Fatalf("hidden = %v, want %v", got, want)
	}
}

func TestParseSettingsRejectsBadInterval(t *testing.T) {
	t.Parallel()

	if _, err := parseSettings(map[string]string{"MAPASSIST_UPDATE_INTERVAL": "0s"}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := parseSettings(map[string]string{"MAPASSIST_UPDATE_INTERVAL": "soon"}); err == nil {
		t.Fatalf("expected error for unparseable interval")
	}
	if _, err := parseSettings(map[string]string{"MAPASSIST_ARCHIVE_RETENTION": "-1h"}); err == nil {
		t.Fatalf("expected error for negative retention")
	}
}

func TestParseOffsetsOverlaysDefaults(t *testing.T) {
	t.Parallel()

	o, err := ParseOffsets([]byte("unit_table: 0x1234\nlevel:\n  area_id: 0x200\n"))
	if err != nil {
		t.Fatalf("parse offsets: %v", err)
	}
	def := DefaultOffsets()
	if o.UnitTable != 0x1234 {
		t.Fatalf("unit table = %#x", o.UnitTable)
	}
	if o.Level.AreaID != 0x200 {
		t.Fatalf("area id offset = %#x", o.Level.AreaID)
	}
	if o.InGameMap != def.InGameMap || o.Path != def.Path || o.UnitSlots != def.UnitSlots {
		t.Fatalf("unspecified offsets must keep defaults: %+v", o)
	}
}

func TestParseOffsetsValidation(t *testing.T) {
	t.Parallel()

	if _, err := ParseOffsets([]byte("unit_table: 0\n")); err == nil {
		t.Fatalf("expected error for zero unit table")
	}
	if _, err := ParseOffsets([]byte("unit_slots: [1, 2]\n")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadOffsetsFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offsets.yaml")
	if err := os.WriteFile(path, []byte("in_game_map: 0x99\n"), 0o600); err != nil {
		t.Fatalf("write offsets: %v", err)
	}
	o, err := LoadOffsets(path)
	if err != nil {
		t.Fatalf("load offsets: %v", err)
	}
	if o.InGameMap != 0x99 {
		t.Fatalf("in game map = %#x", o.InGameMap)
	}
	if _, err := LoadOffsets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
