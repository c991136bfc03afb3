// Package viewport records which parts of the map need redrawing after a
// command ran. Nothing here draws; clients read the regions back.
package viewport

import "stationworks.ai/internal/sim/tiles"

type Region struct {
	Pos         tiles.Pos2 `json:"pos"`
	BaseHeight  int        `json:"base_height"`
	ClearHeight int        `json:"clear_height"`
}

type Dirty struct {
	Regions  []Region `json:"regions,omitempty"`
	Stations []uint16 `json:"stations,omitempty"`
}

// Invalidate marks the tile at pos between the two world heights.
func (d *Dirty) Invalidate(pos tiles.Pos2, baseHeight, clearHeight int) {
	if d == nil {
		return
	}
	r := Region{Pos: pos.TileOrigin(), BaseHeight: baseHeight, ClearHeight: clearHeight}
	for i, have := range d.Regions {
		if have.Pos != r.Pos {
			continue
		}
		if r.BaseHeight < have.BaseHeight {
			d.Regions[i].BaseHeight = r.BaseHeight
		}
		if r.ClearHeight > have.ClearHeight {
			d.Regions[i].ClearHeight = r.ClearHeight
		}
		return
	}
	d.Regions = append(d.Regions, r)
}

// InvalidateStation marks a station's label and surroundings.
func (d *Dirty) InvalidateStation(id uint16) {
	if d == nil {
		return
	}
	for _, s := range d.Stations {
		if s == id {
			return
		}
	}
	d.Stations = append(d.Stations, id)
}

func (d *Dirty) Empty() bool {
	return d == nil || (len(d.Regions) == 0 && len(d.Stations) == 0)
}
