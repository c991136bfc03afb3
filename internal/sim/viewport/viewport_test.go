package viewport

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"stationworks.ai/internal/sim/tiles"
)

func TestDirty_MergesPerTile(t *testing.T) {
	var d Dirty
	if !d.Empty() {
		t.Fatalf("zero value should be empty")
	}
	d.Invalidate(tiles.Pos2{X: 40, Y: 70}, 16, 32)
	d.Invalidate(tiles.Pos2{X: 32, Y: 64}, 0, 24)
	d.Invalidate(tiles.Pos2{X: 64, Y: 64}, 8, 8)
	d.InvalidateStation(3)
	d.InvalidateStation(3)

	want := Dirty{
		Regions: []Region{
			{Pos: tiles.Pos2{X: 32, Y: 64}, BaseHeight: 0, ClearHeight: 32},
			{Pos: tiles.Pos2{X: 64, Y: 64}, BaseHeight: 8, ClearHeight: 8},
		},
		Stations: []uint16{3},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("dirty (-want +got):\n%s", diff)
	}
}

func TestDirty_NilSafe(t *testing.T) {
	var d *Dirty
	d.Invalidate(tiles.Pos2{}, 0, 1)
	d.InvalidateStation(1)
	if !d.Empty() {
		t.Fatalf("nil dirty should report empty")
	}
}
