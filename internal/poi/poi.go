// Package poi picks the markers worth drawing on an area map: where to go
// next, where the player came from, waypoints, quest objects and chests.
package poi

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AkatukiSora/mapassist/internal/game"
)

// Kind classifies a point of interest.
type Kind string

const (
	KindNextArea     Kind = "next_area"
	KindPreviousArea Kind = "previous_area"
	KindWaypoint     Kind = "waypoint"
	KindQuest        Kind = "quest"
	KindSuperChest   Kind = "super_chest"
)

type PointOfInterest struct {
	Label    string     `json:"label"`
	Position game.Point `json:"position"`
	Kind     Kind       `json:"kind"`
}

// AreaGetter loads the layout of another area of the same game.
type AreaGetter interface {
	Get(ctx context.Context, area game.Area) (*game.AreaData, error)
}

// Get returns the points of interest of data in a stable order: area
// markers first, then objects by id.
func Get(ctx context.Context, areas AreaGetter, data *game.AreaData) ([]PointOfInterest, error) {
	if data == nil {
		return nil, nil
	}

	var pois []PointOfInterest
	if data.Area == game.CanyonOfTheMagi {
		tomb, err := findRealTomb(ctx, areas)
		if err != nil {
			return nil, err
		}
		if lvl, ok := data.AdjacentLevels[tomb]; ok && len(lvl.Exits) > 0 {
			pois = append(pois, PointOfInterest{Label: tomb.Name(), Position: lvl.Exits[0], Kind: KindNextArea})
		}
	} else {
		pois = append(pois, areaMarkers(data)...)
	}
	return append(pois, objectMarkers(data)...), nil
}

// areaMarkers points at the highest numbered neighbour when it lies further
// into the act, and marks every exit of the other neighbours.
func areaMarkers(data *game.AreaData) []PointOfInterest {
	adjacent := data.AdjacentAreas()
	if len(adjacent) == 0 {
		return nil
	}

	var pois []PointOfInterest
	highest := adjacent[len(adjacent)-1]
	if highest > data.Area {
		if exits := data.AdjacentLevels[highest].Exits; len(exits) > 0 {
			pois = append(pois, PointOfInterest{Label: highest.Name(), Position: exits[0], Kind: KindNextArea})
		}
	}
	for _, area := range adjacent {
		if area == highest {
			continue
		}
		for _, exit := range data.AdjacentLevels[area].Exits {
			pois = append(pois, PointOfInterest{Label: area.Name(), Position: exit, Kind: KindPreviousArea})
		}
	}
	return pois
}

func objectMarkers(data *game.AreaData) []PointOfInterest {
	ids := make([]game.ObjectID, 0, len(data.Objects))
	for id := range data.Objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var pois []PointOfInterest
	for _, id := range ids {
		positions := data.Objects[id]
		if len(positions) == 0 {
			continue
		}
		switch {
		case id.IsWaypoint():
			pois = append(pois, PointOfInterest{Label: id.Label(), Position: positions[0], Kind: KindWaypoint})
		case id.IsQuest():
			pois = append(pois, PointOfInterest{Label: id.Label(), Position: positions[0], Kind: KindQuest})
		case id.IsSuperChest():
			for _, p := range positions {
				pois = append(pois, PointOfInterest{Label: id.Label(), Position: p, Kind: KindSuperChest})
			}
		}
	}
	return pois
}

// findRealTomb loads the seven tombs concurrently and returns the one that
// holds the Horadric orifice, or game.AreaNone.
func findRealTomb(ctx context.Context, areas AreaGetter) (game.Area, error) {
	g, ctx := errgroup.WithContext(ctx)

	var (
		mu    sync.Mutex
		found = game.AreaNone
	)
	for _, tomb := range game.TalRashasTombs() {
		tomb := tomb
		g.Go(func() error {
			data, err := areas.Get(ctx, tomb)
			if err != nil {
				return fmt.Errorf("load %s: %w", tomb, err)
			}
			if _, ok := data.Objects[game.ObjectHoradricOrifice]; ok {
				mu.Lock()
				found = tomb
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return game.AreaNone, err
	}
	return found, nil
}
