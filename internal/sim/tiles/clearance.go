package tiles

import (
	"fmt"

	"stationworks.ai/internal/sim/stringids"
)

// QuarterTile is an occupied-quarter mask plus its z quarter rotation.
type QuarterTile struct {
	Base uint8
	Z    uint8
}

func NewQuarterTile(base, z uint8) QuarterTile {
	return QuarterTile{Base: base & 0xF, Z: z & 0xF}
}

type ClearResult uint8

const (
	NoCollision ClearResult = iota
	Collision
)

type PredicateKind uint8

const (
	// CollideWithNotSurface: anything except bare terrain is in the way.
	CollideWithNotSurface PredicateKind = iota
	// AllowTrainStationOrTrack: only train station elements and the
	// reference track element are allowed to share the space.
	AllowTrainStationOrTrack
)

// ClearPredicate decides which overlapping elements count as collisions.
type ClearPredicate struct {
	Kind      PredicateKind
	Reference *TrackElement
}

func NotSurface() ClearPredicate {
	return ClearPredicate{Kind: CollideWithNotSurface}
}

func TrainStationOrTrack(ref *TrackElement) ClearPredicate {
	return ClearPredicate{Kind: AllowTrainStationOrTrack, Reference: ref}
}

func (p ClearPredicate) Check(el Element) ClearResult {
	switch p.Kind {
	case CollideWithNotSurface:
		if el.Kind() == KindSurface {
			return NoCollision
		}
		return Collision
	case AllowTrainStationOrTrack:
		switch e := el.(type) {
		case *StationElement:
			if e.Type == TrainStation {
				return NoCollision
			}
		case *TrackElement:
			if p.Reference != nil && e == p.Reference {
				return NoCollision
			}
		}
		return Collision
	}
	return Collision
}

// ClearanceError reports why a volume is not free.
type ClearanceError struct {
	Message  stringids.ID
	Obstacle Kind
	Pos      Pos2
}

func (e *ClearanceError) Error() string {
	if e.Obstacle == 0 {
		return fmt.Sprintf("clearance at (%d,%d): %s", e.Pos.X, e.Pos.Y, e.Message)
	}
	return fmt.Sprintf("clearance at (%d,%d): %s (%s)", e.Pos.X, e.Pos.Y, e.Message, e.Obstacle)
}

// ApplyClearAtStandardHeight checks the volume [baseZ, clearZ) over the
// quarters in qt on the tile at pos. Nothing is removed.
func (g *Grid) ApplyClearAtStandardHeight(pos Pos2, baseZ, clearZ int, qt QuarterTile, pred ClearPredicate) error {
	t := g.TileAt(pos)
	if t == nil {
		return &ClearanceError{Message: stringids.OffEdgeOfMap, Pos: pos}
	}
	if clearZ > g.cfg.MaxClearZ {
		return &ClearanceError{Message: stringids.TooHigh, Pos: pos}
	}
	for _, el := range t.elements {
		h := el.Header()
		if h.Quarter&qt.Base == 0 {
			continue
		}
		if h.BaseZ >= clearZ || h.ClearZ <= baseZ {
			continue
		}
		if pred.Check(el) == Collision {
			return &ClearanceError{Message: collisionMessage(el), Obstacle: el.Kind(), Pos: pos}
		}
	}
	return nil
}

func collisionMessage(el Element) stringids.ID {
	switch el.Kind() {
	case KindSurface:
		return stringids.RaiseOrLowerLand
	case KindTrack:
		return stringids.TrackInTheWay
	case KindStation:
		return stringids.StationInTheWay
	case KindBuilding:
		return stringids.BuildingInTheWay
	default:
		return stringids.ObjectInTheWay
	}
}
