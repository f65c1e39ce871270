package mapapi

import (
	"strconv"

	"github.com/AkatukiSora/mapassist/internal/game"
)

type rawPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p rawPoint) point() game.Point {
	return game.Point{X: p.X, Y: p.Y}
}

type rawAdjacentLevel struct {
	Exits  []rawPoint `json:"exits"`
	Origin rawPoint   `json:"origin"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
}

// rawAreaData is the response body of GET sessions/{id}/areas/{area}. Map
// keys are decimal ids sent as strings.
type rawAreaData struct {
	LevelOrigin    rawPoint                    `json:"levelOrigin"`
	AdjacentLevels map[string]rawAdjacentLevel `json:"adjacentLevels"`
	MapRows        [][]int                     `json:"mapRows"`
	NPCs           map[string][]rawPoint       `json:"npcs"`
	Objects        map[string][]rawPoint       `json:"objects"`
}

type sessionRequest struct {
	Difficulty uint   `json:"difficulty"`
	MapID      uint32 `json:"mapid"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

func points(raw []rawPoint) []game.Point {
	out := make([]game.Point, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.point())
	}
	return out
}

// toAreaData converts the wire shape. Keys that are not integers are dropped,
// as are keys that resolve to the unknown ids game.AreaNone,
// game.NpcInvalid and game.ObjectNotApplicable.
func (r rawAreaData) toAreaData(area game.Area) *game.AreaData {
	data := &game.AreaData{
		Area:           area,
		Origin:         r.LevelOrigin.point(),
		AdjacentLevels: make(map[game.Area]game.AdjacentLevel, len(r.AdjacentLevels)),
		NPCs:           make(map[game.NpcID][]game.Point, len(r.NPCs)),
		Objects:        make(map[game.ObjectID][]game.Point, len(r.Objects)),
		CollisionGrid:  r.MapRows,
	}

	for key, lvl := range r.AdjacentLevels {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil || game.Area(id) == game.AreaNone {
			continue
		}
		adj := game.Area(id)
		data.AdjacentLevels[adj] = game.AdjacentLevel{
			Area:   adj,
			Origin: lvl.Origin.point(),
			Exits:  points(lvl.Exits),
			Width:  lvl.Width,
			Height: lvl.Height,
		}
	}
	for key, pos := range r.NPCs {
		id, err := strconv.Atoi(key)
		if err != nil || game.NpcID(id) == game.NpcInvalid {
			continue
		}
		data.NPCs[game.NpcID(id)] = points(pos)
	}
	for key, pos := range r.Objects {
		id, err := strconv.Atoi(key)
		if err != nil || game.ObjectID(id) == game.ObjectNotApplicable {
			continue
		}
		data.Objects[game.ObjectID(id)] = points(pos)
	}
	return data
}
