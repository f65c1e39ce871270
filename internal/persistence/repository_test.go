package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AkatukiSora/mapassist/internal/game"
)

func testArea() *game.AreaData {
	return &game.AreaData{
		Area:   game.ColdPlains,
		Origin: game.Point{X: 5000, Y: 4000},
		AdjacentLevels: map[game.Area]game.AdjacentLevel{
			game.BloodMoor: {
				Area:   game.BloodMoor,
				Origin: game.Point{X: 4900, Y: 3900},
				Exits:  []game.Point{{X: 4950, Y: 3950}},
				Width:  80,
				Height: 80,
			},
		},
		NPCs:          map[game.NpcID][]game.Point{734: {{X: 1, Y: 2}}},
		Objects:       map[game.ObjectID][]game.Point{119: {{X: 7, Y: 8}}},
		CollisionGrid: [][]int{{0, 1, 1}, {1, 0, 0}},
	}
}

func TestAreaRepositoryParity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		newRepo func(t *testing.T) AreaRepository
	}{
		{
			name: "memory",
			newRepo: func(_ *testing.T) AreaRepository {
				return NewMemoryRepository()
			},
		},
		{
			name: "sqlite",
			newRepo: func(t *testing.T) AreaRepository {
				repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "areas.db"))
				if err != nil {
					t.Fatalf("new sqlite repo: %v", err)
				}
				t.Cleanup(func() {
					_ = repo.Close()
				})
				return repo
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := tt.newRepo(t)
			key := AreaKey{Difficulty: game.Nightmare, MapSeed: 12345, Area: game.ColdPlains}

			got, err := repo.GetArea(ctx, key)
			if err != nil || got != nil {
				t.Fatalf("get before save = %v, %v, want nil, nil", got, err)
			}

			if err := repo.SaveArea(ctx, key, testArea()); err != nil {
				t.Fatalf("save area: %v", err)
			}
			got, err = repo.GetArea(ctx, key)
			if err != nil {
				t.Fatalf("get area: %v", err)
			}
			if got == nil || got.Area != game.ColdPlains || got.Origin != (game.Point{X: 5000, Y: 4000}) {
				t.Fatalf("area = %+v", got)
			}
			adj, ok := got.AdjacentLevels[game.BloodMoor]
			if !ok || len(adj.Exits) != 1 || adj.Exits[0] != (game.Point{X: 4950, Y: 3950}) {
				t.Fatalf("adjacent = %+v", got.AdjacentLevels)
			}
			if len(got.NPCs[734]) != 1 || len(got.Objects[119]) != 1 {
				t.Fatalf("npcs/objects = %v / %v", got.NPCs, got.Objects)
			}
			if len(got.CollisionGrid) != 2 || got.CollisionGrid[0][2] != 1 {
				t.Fatalf("collision grid = %v", got.CollisionGrid)
			}

			// Same seed on another difficulty is a different layout.
			other := key
			other.Difficulty = game.Hell
			if got, err := repo.GetArea(ctx, other); err != nil || got != nil {
				t.Fatalf("other difficulty = %v, %v, want nil, nil", got, err)
			}

			// Saving again replaces the entry.
			updated := testArea()
			updated.Origin = game.Point{X: 1, Y: 1}
			if err := repo.SaveArea(ctx, key, updated); err != nil {
				t.Fatalf("resave area: %v", err)
			}
			got, err = repo.GetArea(ctx, key)
			if err != nil || got.Origin != (game.Point{X: 1, Y: 1}) {
				t.Fatalf("after resave = %+v, %v", got, err)
			}

			n, err := repo.PurgeBefore(ctx, time.Now().Add(-time.Hour))
			if err != nil || n != 0 {
				t.Fatalf("purge old = %d, %v, want 0", n, err)
			}
			n, err = repo.PurgeBefore(ctx, time.Now().Add(time.Hour))
			if err != nil || n != 1 {
				t.Fatalf("purge all = %d, %v, want 1", n, err)
			}
			if got, err := repo.GetArea(ctx, key); err != nil || got != nil {
				t.Fatalf("after purge = %v, %v, want nil, nil", got, err)
			}
		})
	}
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository()
	key := AreaKey{Difficulty: game.Normal, MapSeed: 7, Area: game.ColdPlains}
	if err := repo.SaveArea(ctx, key, testArea()); err != nil {
		t.Fatalf("save area: %v", err)
	}

	first, err := repo.GetArea(ctx, key)
	if err != nil {
		t.Fatalf("get area: %v", err)
	}
	first.CollisionGrid[0][0] = 9
	delete(first.AdjacentLevels, game.BloodMoor)

	second, err := repo.GetArea(ctx, key)
	if err != nil {
		t.Fatalf("get area: %v", err)
	}
	if second.CollisionGrid[0][0] != 0 || len(second.AdjacentLevels) != 1 {
		t.Fatalf("archive entry was mutated through a returned value")
	}
}

func TestSQLiteRepositoryReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "areas.db")
	key := AreaKey{Difficulty: game.Hell, MapSeed: 99, Area: game.ColdPlains}

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("new sqlite repo: %v", err)
	}
	if err := repo.SaveArea(ctx, key, testArea()); err != nil {
		t.Fatalf("save area: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen sqlite repo: %v", err)
	}
	defer repo.Close()

	got, err := repo.GetArea(ctx, key)
	if err != nil || got == nil {
		t.Fatalf("get after reopen = %v, %v", got, err)
	}
}
