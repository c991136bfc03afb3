package stations

import (
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tiles"
)

type SearchMode uint8

const (
	// SearchBuilt only sees real, built station tiles.
	SearchBuilt SearchMode = iota
	// SearchAIReserved also sees tiles an AI company has reserved.
	SearchAIReserved
)

type NearbyStation struct {
	ID                 ID
	PhysicallyAttached bool
}

// Nearby finds the closest train station owned by owner within the search
// radius of pos whose platforms sit on track of trackObjectID. tad is the
// track-and-direction word (trackID<<3 | rotation) of the piece being placed.
func (r *Registry) Nearby(g *tiles.Grid, pos tiles.Pos3, tad uint16, trackObjectID uint8, owner company.ID, mode SearchMode) NearbyStation {
	res := NearbyStation{ID: Null}
	bestDist := -1
	origin := pos.XY().TileOrigin()

	g.TilesInRadius(origin, r.cfg.SearchRadius, func(t *tiles.Tile) {
		for _, el := range t.Elements() {
			st, ok := el.(*tiles.StationElement)
			if !ok || !r.visible(t, st, trackObjectID, owner, mode) {
				continue
			}
			d := chebyshev(origin, t.Pos())
			if bestDist >= 0 && d >= bestDist {
				continue
			}
			bestDist = d
			res.ID = ID(st.StationID)
		}
	})
	if res.ID == Null {
		return res
	}

	rotation := uint8(tad & 3)
	fwd := tiles.Forward(rotation)
	for _, p := range []tiles.Pos2{origin, origin.Add(fwd), origin.Sub(fwd)} {
		if r.hasStationTile(g, p, pos.Z/tiles.SmallZStep, res.ID, trackObjectID, owner, mode) {
			res.PhysicallyAttached = true
			break
		}
	}
	return res
}

func (r *Registry) visible(t *tiles.Tile, st *tiles.StationElement, trackObjectID uint8, owner company.ID, mode SearchMode) bool {
	if st.Type != tiles.TrainStation || st.Ghost || st.Owner != owner {
		return false
	}
	if st.AIAllocated && mode != SearchAIReserved {
		return false
	}
	if _, ok := r.byID[ID(st.StationID)]; !ok {
		return false
	}
	tr, ok := t.Prev(st).(*tiles.TrackElement)
	return ok && tr.HasStation && tr.ObjectID == trackObjectID
}

func (r *Registry) hasStationTile(g *tiles.Grid, p tiles.Pos2, baseZ int, id ID, trackObjectID uint8, owner company.ID, mode SearchMode) bool {
	t := g.TileAt(p)
	if t == nil {
		return false
	}
	for _, el := range t.Elements() {
		st, ok := el.(*tiles.StationElement)
		if !ok || ID(st.StationID) != id || st.BaseZ != baseZ {
			continue
		}
		if r.visible(t, st, trackObjectID, owner, mode) {
			return true
		}
	}
	return false
}

func chebyshev(a, b tiles.Pos2) int {
	dx := (a.X - b.X) / tiles.TileSize
	dy := (a.Y - b.Y) / tiles.TileSize
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
