package game

import "fmt"

// State is one poll's snapshot of the running client. A zero State is never
// handed out as a valid snapshot; extraction either fills every field or
// reports the snapshot unavailable.
type State struct {
	PlayerPosition Point      `json:"playerPosition"`
	MapSeed        uint32     `json:"mapSeed"`
	Difficulty     Difficulty `json:"difficulty"`
	Area           Area       `json:"area"`
	MapShown       bool       `json:"mapShown"`
	WindowHandle   uintptr    `json:"windowHandle"`
}

// HasGameChanged reports whether s belongs to a different game than prev.
// A nil prev always counts as a change.
func (s State) HasGameChanged(prev *State) bool {
	if prev == nil {
		return true
	}
	return s.MapSeed != prev.MapSeed || s.Difficulty != prev.Difficulty
}

// HasMapChanged reports whether the game or the current area differ from prev.
func (s State) HasMapChanged(prev *State) bool {
	return s.HasGameChanged(prev) || s.Area != prev.Area
}

func (s State) String() string {
	return fmt.Sprintf("position=%s seed=%d difficulty=%s area=%s mapShown=%t",
		s.PlayerPosition, s.MapSeed, s.Difficulty, s.Area, s.MapShown)
}
