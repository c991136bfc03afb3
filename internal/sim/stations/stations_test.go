package stations

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tiles"
)

func tp(tx, ty int) tiles.Pos3 {
	return tiles.Pos3{X: tx * tiles.TileSize, Y: ty * tiles.TileSize}
}

func TestAllocate_NamesAndLimits(t *testing.T) {
	r := NewRegistry(Config{MaxStations: 3, TileCap: 80, MaxSpread: 15, SearchRadius: 4, Names: []string{"North", "South"}})
	var names []string
	for i := 0; i < 3; i++ {
		id := r.Allocate(tp(i, 0), 1)
		if id != ID(i) {
			t.Fatalf("allocation %d got id %d", i, id)
		}
		names = append(names, r.Get(id).Name)
	}
	if diff := cmp.Diff([]string{"North", "South", "North 2"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if r.CanAllocate(1) || r.Allocate(tp(9, 9), 1) != Null {
		t.Fatalf("registry should be full")
	}

	r.Deallocate(0)
	if id := r.Allocate(tp(5, 5), 1); id != 0 || r.Get(id).Name != "North" {
		t.Fatalf("freed id and name should be reused, got %d %q", id, r.Get(id).Name)
	}
}

func TestTiles_CentreLabelAndFlags(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id := r.Allocate(tp(2, 2), company.ID(1))
	st := r.Get(id)
	if st.Flags&FlagJustBuilt == 0 || st.Label != "Ashford Halt" {
		t.Fatalf("fresh station: %+v", st)
	}
	for x := 2; x < 10; x++ {
		r.AddTile(id, tp(x, 2), 0)
	}
	r.ResetFlags(id)
	r.RecalculateCentre(id)
	r.UpdateLabel(id)
	if st.Flags != FlagCargoRecalc {
		t.Fatalf("flags: %v", st.Flags)
	}
	if st.Centre != (tiles.Pos2{X: 5*32 + 16, Y: 2*32 + 16}) {
		t.Fatalf("centre: %+v", st.Centre)
	}
	if st.Label != "Ashford Central" {
		t.Fatalf("label: %q", st.Label)
	}
}

func TestTileCapAndSpread(t *testing.T) {
	r := NewRegistry(Config{TileCap: 2, MaxSpread: 3})
	id := r.Allocate(tp(0, 0), 1)
	r.AddTile(id, tp(0, 0), 0)
	r.AddTile(id, tp(1, 0), 0)
	if r.OverTileCap(id) {
		t.Fatalf("two tiles is at the cap, not over it")
	}
	r.AddTile(id, tp(2, 0), 0)
	if !r.OverTileCap(id) {
		t.Fatalf("three tiles is over a cap of two")
	}
	if r.TooSpreadOut(id, tp(2, 2)) {
		t.Fatalf("3x3 box is within spread 3")
	}
	if !r.TooSpreadOut(id, tp(3, 0)) {
		t.Fatalf("4 wide box exceeds spread 3")
	}
}

func TestClone_Independent(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id := r.Allocate(tp(0, 0), 1)
	r.AddTile(id, tp(0, 0), 0)
	c := r.Clone()
	r.AddTile(id, tp(1, 0), 0)
	if c.Get(id).TileCount() != 1 {
		t.Fatalf("clone shares tiles with the original")
	}
}

func addPlatform(t *testing.T, g *tiles.Grid, tx, ty int, id ID, owner company.ID, mutate func(*tiles.StationElement)) {
	t.Helper()
	p := tiles.Pos2{X: tx * tiles.TileSize, Y: ty * tiles.TileSize}
	tr := &tiles.TrackElement{ElementHeader: tiles.ElementHeader{ClearZ: 8, Quarter: 0xF, Owner: owner}, HasStation: true}
	if err := g.AddElement(p, tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	st := g.InsertStationAfter(tr, p, 0, 0xF)
	st.StationID = uint16(id)
	st.Owner = owner
	if mutate != nil {
		mutate(st)
	}
}

func TestNearby(t *testing.T) {
	g := tiles.NewGrid(tiles.GridConfig{SizeX: 32, SizeY: 32})
	r := NewRegistry(DefaultConfig())
	far := r.Allocate(tp(2, 2), 1)
	near := r.Allocate(tp(8, 5), 1)
	rival := r.Allocate(tp(10, 6), 2)
	addPlatform(t, g, 2, 2, far, 1, nil)
	addPlatform(t, g, 11, 5, near, 1, nil)
	addPlatform(t, g, 10, 6, rival, 2, nil)
	addPlatform(t, g, 10, 4, near, 1, func(st *tiles.StationElement) { st.Ghost = true })

	got := r.Nearby(g, tp(11, 7), 0, 0, 1, SearchBuilt)
	if got.ID != near || got.PhysicallyAttached {
		t.Fatalf("expected detached near station, got %+v", got)
	}

	got = r.Nearby(g, tp(12, 5), 0, 0, 1, SearchBuilt)
	if got.ID != near || !got.PhysicallyAttached {
		t.Fatalf("expected attached along the rotation axis, got %+v", got)
	}
	// Rotation 1 runs along y, so the platform at x-1 is beside, not behind.
	got = r.Nearby(g, tp(12, 5), 1, 0, 1, SearchBuilt)
	if got.ID != near || got.PhysicallyAttached {
		t.Fatalf("rotation 1 should not attach sideways, got %+v", got)
	}

	if got := r.Nearby(g, tp(25, 25), 0, 0, 1, SearchBuilt); got.ID != Null {
		t.Fatalf("nothing within radius, got %+v", got)
	}
	if got := r.Nearby(g, tp(2, 2), 0, 1, 1, SearchBuilt); got.ID != Null {
		t.Fatalf("different track object must not match, got %+v", got)
	}
}

func TestNearby_AIReserved(t *testing.T) {
	g := tiles.NewGrid(tiles.GridConfig{SizeX: 16, SizeY: 16})
	r := NewRegistry(DefaultConfig())
	id := r.Allocate(tp(3, 3), 1)
	addPlatform(t, g, 3, 3, id, 1, func(st *tiles.StationElement) { st.AIAllocated = true })

	if got := r.Nearby(g, tp(4, 3), 0, 0, 1, SearchBuilt); got.ID != Null {
		t.Fatalf("reserved tiles are hidden from normal searches, got %+v", got)
	}
	if got := r.Nearby(g, tp(4, 3), 0, 0, 1, SearchAIReserved); got.ID != id || !got.PhysicallyAttached {
		t.Fatalf("ai search should see the reservation, got %+v", got)
	}
}
