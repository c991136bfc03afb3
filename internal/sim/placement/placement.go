// Package placement implements the train station construction command:
// attaching station platforms to every tile of an already laid track piece.
//
// A call runs in two passes. The first validates every segment and prices
// the job without touching the world; the second, only in apply mode and
// only when the first passed, commits the changes. A failing call
// therefore never leaves a partial station behind.
package placement

import (
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/economy"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/viewport"
)

// Vertical offset, in small z units, between a track's base and the
// volume a platform has to keep clear.
const platformClearOffset = 8

type Request struct {
	Pos             tiles.Pos3 `json:"pos"`
	Rotation        uint8      `json:"rotation"`
	TrackObjectID   uint8      `json:"track_object_id"`
	TrackID         uint8      `json:"track_id"`
	Index           uint8      `json:"index"`
	StationObjectID uint8      `json:"station_object_id"`
}

// Adjoining is the ghost preview's report of which station the real
// placement would join. Station is stations.Null when none.
type Adjoining struct {
	Station stations.ID `json:"station"`
	Centre  tiles.Pos2  `json:"centre"`
	Valid   bool        `json:"valid"`
}

type Outcome struct {
	Cost economy.Currency `json:"cost"`
	// Station is the station joined (or, in query mode, that would be
	// joined). Null when a new one is created, would be created, or for ghosts.
	Station stations.ID `json:"station"`
	// NewStation: a station record was allocated (apply) or would be (query).
	NewStation     bool           `json:"new_station"`
	NewStationTile bool           `json:"new_station_tile"`
	Adjoining      Adjoining      `json:"adjoining"`
	Dirty          viewport.Dirty `json:"dirty"`
}

type Placer struct {
	grid      *tiles.Grid
	catalogs  *catalogs.Catalogs
	stations  *stations.Registry
	costs     *economy.CostModel
	companies *company.Registry
}

func New(grid *tiles.Grid, cats *catalogs.Catalogs, reg *stations.Registry, costs *economy.CostModel, companies *company.Registry) *Placer {
	return &Placer{grid: grid, catalogs: cats, stations: reg, costs: costs, companies: companies}
}

type nearbyDecision uint8

const (
	joinExisting nearbyDecision = iota
	requireNewStation
)

// segmentPlan is what the commit pass does on one tile.
type segmentPlan struct {
	loc      tiles.Pos3
	track    *tiles.TrackElement
	existing *tiles.StationElement
}

// PlaceTrainStation validates, prices and (with commands.Apply) builds a
// train station over the track piece that has segment req.Index at req.Pos.
func (p *Placer) PlaceTrainStation(ctx *commands.Context, req Request, flags commands.Flags) (Outcome, error) {
	ctx.SetExpenditureType(company.Construction)
	ctx.SetPosition(req.Pos.Add(tiles.Pos3{X: tiles.TileSize / 2, Y: tiles.TileSize / 2}))

	out := Outcome{Station: stations.Null, Adjoining: Adjoining{Station: stations.Null, Centre: tiles.Pos2{X: -1, Y: -1}}}
	apply := flags.Has(commands.Apply)
	ghost := flags.Has(commands.Ghost)
	ai := flags.Has(commands.AIAllocated)

	trackObj, ok := p.catalogs.TrackObject(req.TrackObjectID)
	if !ok {
		return out, p.fail(ctx, ErrUnknownObject)
	}
	stationObj, ok := p.catalogs.StationObject(req.StationObjectID)
	if !ok {
		return out, p.fail(ctx, ErrUnknownObject)
	}
	piece, ok := p.catalogs.TrackPiece(req.TrackID)
	if !ok {
		return out, p.fail(ctx, ErrUnknownObject)
	}

	required := piece.CompatibleFlags
	if trackObj.StationTrackPieces&stationObj.TrackPieces&required != required {
		return out, p.fail(ctx, ErrIncompatiblePiece)
	}
	if !p.grid.CheckFreeElementsAndReorganise() {
		return out, p.fail(ctx, ErrOutOfSpace)
	}

	index := req.Index
	anchor := p.findTrack(req.Pos, req.Rotation, req.TrackObjectID, req.TrackID, req.Index)
	if anchor == nil {
		if apply || !ai {
			return out, p.fail(ctx, ErrNoTrackPresent)
		}
		// AI estimates for track that is not laid yet always measure
		// from the first segment.
		index = 0
	} else {
		if anchor.HasStation {
			return out, p.fail(ctx, ErrStationInTheWay)
		}
		if !p.companies.CanModify(anchor.Owner, ctx.Company) {
			return out, p.fail(ctx, ErrPermission)
		}
	}

	argSeg, ok := piece.Segment(index)
	if !ok {
		return out, p.fail(ctx, ErrNoTrackPresent)
	}
	trackStart := req.Pos.Sub(segmentOffset(argSeg, req.Rotation))
	tad := uint16(req.TrackID)<<3 | uint16(req.Rotation&3)

	if ghost && apply {
		nb := p.stations.Nearby(p.grid, trackStart, tad, req.TrackObjectID, ctx.Company, stations.SearchBuilt)
		out.Adjoining = Adjoining{Station: nb.ID, Centre: trackStart.XY(), Valid: true}
	}

	target := stations.Null
	needNew := false
	if !ghost {
		decision, id, err := p.validateNearby(ctx, trackStart, tad, req.TrackObjectID, ai)
		if err != nil {
			return out, err
		}
		switch decision {
		case joinExisting:
			target = id
			out.Station = id
		case requireNewStation:
			if !p.stations.CanAllocate(ctx.Company) {
				return out, p.fail(ctx, ErrTooManyStations)
			}
			needNew = true
			out.NewStation = true
		}
	}

	var cost economy.Currency
	plan := make([]segmentPlan, 0, len(piece.Segments))
	for _, seg := range piece.Segments {
		loc := trackStart.Add(segmentOffset(seg, req.Rotation))
		track := p.findTrack(loc, req.Rotation, req.TrackObjectID, req.TrackID, seg.Index)
		if track == nil {
			// Reached only by AI queries over unbuilt track. The quarter
			// mask deliberately stays the requested segment's.
			if seg.Index == 0 {
				cost += p.buildCost(stationObj, piece)
			}
			baseZ := loc.Z/tiles.SmallZStep + platformClearOffset
			clearZ := baseZ + stationObj.Height/tiles.SmallZStep
			qt := tiles.NewQuarterTile(argSeg.Quarter, 0)
			if err := p.grid.ApplyClearAtStandardHeight(loc.XY(), baseZ, clearZ, qt, tiles.NotSurface()); err != nil {
				return out, p.clearanceFailure(ctx, err)
			}
			continue
		}

		if track.HasSignal {
			return out, p.fail(ctx, ErrSignalInTheWay)
		}
		if track.HasLevelCrossing {
			return out, p.fail(ctx, ErrLevelCrossingInTheWay)
		}
		tile := p.grid.TileAt(loc.XY())
		if p.onJunction(tile, track, seg) {
			return out, p.fail(ctx, ErrJunction)
		}

		existing := tile.StationAfter(track)
		if track.HasStation && existing == nil {
			return out, p.fail(ctx, ErrStationInTheWay)
		}
		if seg.Index == 0 {
			switch {
			case existing == nil:
				cost += p.buildCost(stationObj, piece)
			case existing.ObjectID != req.StationObjectID:
				if old, ok := p.catalogs.StationObject(existing.ObjectID); ok {
					cost += p.sellCost(old, piece)
				}
				cost += p.buildCost(stationObj, piece)
			}
		}

		baseZ := track.BaseZ + platformClearOffset
		clearZ := baseZ + stationObj.Height/tiles.SmallZStep
		qt := tiles.NewQuarterTile(track.Quarter, 0)
		if !ai {
			if err := p.grid.ApplyClearAtStandardHeight(loc.XY(), baseZ, clearZ, qt, tiles.TrainStationOrTrack(track)); err != nil {
				return out, p.clearanceFailure(ctx, err)
			}
		}
		if err := p.grid.ApplyClearAtStandardHeight(loc.XY(), baseZ, clearZ, qt, tiles.NotSurface()); err != nil {
			return out, p.clearanceFailure(ctx, err)
		}

		if ghost && existing != nil {
			return out, p.fail(ctx, ErrGhostConflict)
		}
		plan = append(plan, segmentPlan{loc: loc, track: track, existing: existing})
	}
	out.Cost = cost

	if !apply {
		return out, nil
	}

	inserts := 0
	for _, sp := range plan {
		if sp.existing == nil {
			inserts++
		}
	}
	if p.grid.FreeElements() < inserts {
		return out, p.fail(ctx, ErrOutOfSpace)
	}

	if needNew {
		target = p.stations.Allocate(trackStart, ctx.Company)
		if target == stations.Null {
			return out, p.fail(ctx, ErrTooManyStations)
		}
		out.Station = target
	}

	newTile := true
	for _, sp := range plan {
		if !p.commitSegment(ctx, sp, req, stationObj, target, flags, &out.Dirty) {
			newTile = false
		}
	}

	if !ghost {
		if newTile {
			p.stations.AddTile(target, trackStart, req.Rotation)
			out.NewStationTile = true
		}
		out.Dirty.InvalidateStation(uint16(target))
		p.stations.ResetFlags(target)
		p.stations.RecalculateCentre(target)
		p.stations.UpdateLabel(target)
	}
	return out, nil
}

// commitSegment builds or replaces the platform over one track element and
// reports whether a fresh station element was inserted.
func (p *Placer) commitSegment(ctx *commands.Context, sp segmentPlan, req Request, obj catalogs.StationObject, target stations.ID, flags commands.Flags, dirty *viewport.Dirty) bool {
	ghost := flags.Has(commands.Ghost)
	inserted := false

	st := sp.existing
	if st != nil {
		dirty.Invalidate(sp.loc.XY(), st.BaseHeight(), st.ClearHeight())
		// The new platform's height replaces the old one rather than
		// stacking on it. The track's clearance follows the station below.
		st.MultiTileIndex = 0
		st.ClearZ = st.BaseZ
	} else {
		st = p.grid.InsertStationAfter(sp.track, sp.loc.XY(), sp.track.BaseZ, sp.track.Quarter)
		st.Rotation = sp.track.Rotation
		st.Type = tiles.TrainStation
		st.Ghost = ghost
		st.AIAllocated = flags.Has(commands.AIAllocated)
		st.MultiTileIndex = 0
		if !ghost {
			st.StationID = uint16(target)
		}
		sp.track.HasStation = true
		inserted = true
	}

	st.ObjectID = req.StationObjectID
	st.Owner = ctx.Company
	st.ClearZ += obj.Height / tiles.SmallZStep
	sp.track.ClearZ = st.ClearZ
	dirty.Invalidate(sp.loc.XY(), st.BaseHeight(), st.ClearHeight())
	return inserted
}

func (p *Placer) validateNearby(ctx *commands.Context, pos tiles.Pos3, tad uint16, trackObjectID uint8, ai bool) (nearbyDecision, stations.ID, error) {
	mode := stations.SearchBuilt
	if ai {
		mode = stations.SearchAIReserved
	}
	nb := p.stations.Nearby(p.grid, pos, tad, trackObjectID, ctx.Company, mode)
	if nb.ID == stations.Null {
		return requireNewStation, stations.Null, nil
	}
	if p.stations.OverTileCap(nb.ID) {
		if nb.PhysicallyAttached {
			return requireNewStation, stations.Null, p.fail(ctx, ErrStationTooLarge)
		}
		return requireNewStation, stations.Null, nil
	}
	if !ai && p.stations.TooSpreadOut(nb.ID, pos) {
		if nb.PhysicallyAttached {
			return requireNewStation, stations.Null, p.fail(ctx, ErrStationTooSpreadOut)
		}
		return requireNewStation, stations.Null, nil
	}
	return joinExisting, nb.ID, nil
}

// findTrack returns the track element at loc matching the piece, or nil.
func (p *Placer) findTrack(loc tiles.Pos3, rotation, trackObjectID, trackID, index uint8) *tiles.TrackElement {
	t := p.grid.TileAt(loc.XY())
	if t == nil {
		return nil
	}
	for _, el := range t.Elements() {
		tr, ok := el.(*tiles.TrackElement)
		if !ok {
			continue
		}
		if tr.BaseHeight() != loc.Z || tr.Rotation != rotation&3 || tr.SequenceIndex != index {
			continue
		}
		if tr.ObjectID != trackObjectID || tr.TrackID != trackID {
			continue
		}
		return tr
	}
	return nil
}

// onJunction reports whether another real track at the same height shares
// a connection edge with this segment.
func (p *Placer) onJunction(t *tiles.Tile, track *tiles.TrackElement, seg catalogs.Segment) bool {
	connect := seg.ConnectFlags[track.Rotation&3]
	for _, el := range t.Elements() {
		other, ok := el.(*tiles.TrackElement)
		if !ok || other == track || other.Ghost || other.BaseZ != track.BaseZ {
			continue
		}
		piece, ok := p.catalogs.TrackPiece(other.TrackID)
		if !ok {
			continue
		}
		otherSeg, ok := piece.Segment(other.SequenceIndex)
		if !ok {
			continue
		}
		if connect&otherSeg.ConnectFlags[other.Rotation&3] != 0 {
			return true
		}
	}
	return false
}

func (p *Placer) buildCost(obj catalogs.StationObject, piece catalogs.TrackPiece) economy.Currency {
	base := p.costs.InflationAdjusted(obj.BuildCostFactor, obj.CostIndex, 8)
	return base * piece.CostFactor / 256
}

func (p *Placer) sellCost(obj catalogs.StationObject, piece catalogs.TrackPiece) economy.Currency {
	base := p.costs.InflationAdjusted(obj.SellCostFactor, obj.CostIndex, 8)
	return base * piece.CostFactor / 256
}

func (p *Placer) fail(ctx *commands.Context, base *Error) error {
	e := &Error{Code: base.Code, Message: base.Message}
	ctx.SetErrorText(e.Message)
	return e
}

func (p *Placer) clearanceFailure(ctx *commands.Context, err error) error {
	e := &Error{Code: CodeClearance, Message: ErrClearance.Message, Err: err}
	if ce, ok := err.(*tiles.ClearanceError); ok {
		e.Message = ce.Message
	}
	ctx.SetErrorText(e.Message)
	return e
}

func segmentOffset(seg catalogs.Segment, rotation uint8) tiles.Pos3 {
	return tiles.WithZ(tiles.Rotate(tiles.Pos2{X: seg.X, Y: seg.Y}, rotation), seg.Z)
}
