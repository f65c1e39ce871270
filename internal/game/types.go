package game

import "fmt"

// Point is a position in world coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sub returns p relative to origin.
func (p Point) Sub(origin Point) Point {
	return Point{X: p.X - origin.X, Y: p.Y - origin.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Difficulty is the game difficulty byte as stored by the client.
type Difficulty uint8

const (
	Normal Difficulty = iota
	Nightmare
	Hell
)

func (d Difficulty) String() string {
	switch d {
	case Normal:
		return "Normal"
	case Nightmare:
		return "Nightmare"
	case Hell:
		return "Hell"
	default:
		return fmt.Sprintf("Difficulty(%d)", uint8(d))
	}
}

// NpcID identifies a monster/NPC class as reported by the map service.
type NpcID int

// NpcInvalid is the map service's id for an unrecognised NPC.
const NpcInvalid NpcID = -1

// ObjectID identifies a world object class as reported by the map service.
type ObjectID int

// ObjectNotApplicable is the map service's id for an unrecognised object.
const ObjectNotApplicable ObjectID = -1

// AdjacentLevel describes one neighbouring area as seen from the current one.
type AdjacentLevel struct {
	Area   Area    `json:"area"`
	Origin Point   `json:"origin"`
	Exits  []Point `json:"exits"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// AreaData is the static metadata of one area for a given map seed and
// difficulty. Entries held by the cache are shared and must not be mutated.
type AreaData struct {
	Area           Area                   `json:"area"`
	Origin         Point                  `json:"origin"`
	AdjacentLevels map[Area]AdjacentLevel `json:"adjacentLevels"`
	NPCs           map[NpcID][]Point      `json:"npcs"`
	Objects        map[ObjectID][]Point   `json:"objects"`
	CollisionGrid  [][]int                `json:"collisionGrid"`
}

// AdjacentAreas returns the ids of all adjacent areas in ascending order.
func (a *AreaData) AdjacentAreas() []Area {
	if a == nil || len(a.AdjacentLevels) == 0 {
		return nil
	}
	out := make([]Area, 0, len(a.AdjacentLevels))
	for id := range a.AdjacentLevels {
		out = append(out, id)
	}
	sortAreas(out)
	return out
}
