package game

import (
	"slices"
	"testing"
)

func TestLookupAreaIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	got, ok := LookupArea("  canyon of the magi ")
	if !ok {
		t.Fatalf("lookup failed")
	}
	if got != CanyonOfTheMagi {
		t.Fatalf("area = %d, want %d", got, CanyonOfTheMagi)
	}
	if _, ok := LookupArea("None"); ok {
		t.Fatalf("None must not resolve")
	}
}

func TestParseAreaListDropsUnknownNames(t *testing.T) {
	t.Parallel()

	got := ParseAreaList("Rogue Encampment, Nowhere,,Harrogath")
	want := []Area{RogueEncampment, Harrogath}
	if !slices.Equal(got, want) {
		t.Fatalf("areas = %v, want %v", got, want)
	}
}

func TestAreaNameOutOfRange(t *testing.T) {
	t.Parallel()

	if got := Area(9000).Name(); got != "Area 9000" {
		t.Fatalf("name = %q", got)
	}
	if Area(9000).Known() || AreaNone.Known() {
		t.Fatalf("unexpected known area")
	}
	if TalRashasTomb7.Name() != "Tal Rasha's Tomb 7" {
		t.Fatalf("tomb name = %q", TalRashasTomb7.Name())
	}
}

func TestStateChangeDetection(t *testing.T) {
	t.Parallel()

	base := State{MapSeed: 12345, Difficulty: Nightmare, Area: BloodMoor}

	if !base.HasGameChanged(nil) {
		t.Fatalf("nil previous state must count as a game change")
	}

	sameGameOtherArea := base
	sameGameOtherArea.Area = ColdPlains
	if sameGameOtherArea.HasGameChanged(&base) {
		t.Fatalf("area change must not count as game change")
	}
	if !sameGameOtherArea.HasMapChanged(&base) {
		t.Fatalf("area change must count as map change")
	}

	moved := base
	moved.PlayerPosition = Point{X: 10, Y: 20}
	if moved.HasMapChanged(&base) {
		t.Fatalf("movement must not count as map change")
	}

	otherSeed := base
	otherSeed.MapSeed = 1
	if !otherSeed.HasGameChanged(&base) {
		t.Fatalf("seed change must count as game change")
	}
}

func TestAdjacentAreasSorted(t *testing.T) {
	t.Parallel()

	data := &AreaData{AdjacentLevels: map[Area]AdjacentLevel{
		ColdPlains:      {Area: ColdPlains},
		RogueEncampment: {Area: RogueEncampment},
		DenOfEvil:       {Area: DenOfEvil},
	}}
	got := data.AdjacentAreas()
	want := []Area{RogueEncampment, ColdPlains, DenOfEvil}
	if !slices.Equal(got, want) {
		t.Fatalf("adjacent = %v, want %v", got, want)
	}

	var empty *AreaData
	if empty.AdjacentAreas() != nil {
		t.Fatalf("nil area data must have no neighbours")
	}
}

func TestObjectClassification(t *testing.T) {
	t.Parallel()

	if !ObjectID(119).IsWaypoint() {
		t.Fatalf("119 should be a waypoint")
	}
	if !ObjectHoradricOrifice.IsQuest() || ObjectHoradricOrifice.Label() != "Horadric Orifice" {
		t.Fatalf("orifice classification wrong")
	}
	if !ObjectSparklyChest.IsSuperChest() {
		t.Fatalf("sparkly chest should be a super chest")
	}
	if ObjectID(1).Label() != "Object" {
		t.Fatalf("unexpected label for unknown object")
	}
}
