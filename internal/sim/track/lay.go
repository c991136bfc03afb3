// Package track lays track pieces onto the tile grid. Placement commands
// need track to already exist; scenario seeding and tests use this to put
// it there.
package track

import (
	"fmt"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tiles"
)

type Piece struct {
	Pos      tiles.Pos3 `yaml:"pos" json:"pos"`
	Rotation uint8      `yaml:"rotation" json:"rotation"`
	ObjectID uint8      `yaml:"object" json:"object"`
	TrackID  uint8      `yaml:"track" json:"track"`
	Owner    company.ID `yaml:"owner" json:"owner"`
	Ghost    bool       `yaml:"ghost" json:"ghost"`
}

// Lay adds one track element per segment of the piece whose first segment
// sits at p.Pos. Every tile is checked before anything is added.
func Lay(g *tiles.Grid, cats *catalogs.Catalogs, p Piece) ([]*tiles.TrackElement, error) {
	if _, ok := cats.TrackObject(p.ObjectID); !ok {
		return nil, fmt.Errorf("unknown track object %d", p.ObjectID)
	}
	piece, ok := cats.TrackPiece(p.TrackID)
	if !ok {
		return nil, fmt.Errorf("unknown track piece %d", p.TrackID)
	}
	if g.FreeElements() < len(piece.Segments) {
		return nil, tiles.ErrNoCapacity
	}

	type placed struct {
		at tiles.Pos2
		el *tiles.TrackElement
	}
	els := make([]placed, 0, len(piece.Segments))
	for _, seg := range piece.Segments {
		off := tiles.WithZ(tiles.Rotate(tiles.Pos2{X: seg.X, Y: seg.Y}, p.Rotation), seg.Z)
		loc := p.Pos.Add(off)
		if !g.InBounds(loc.XY()) {
			return nil, fmt.Errorf("segment %d at (%d,%d): %w", seg.Index, loc.X, loc.Y, tiles.ErrOutOfBounds)
		}
		baseZ := loc.Z / tiles.SmallZStep
		els = append(els, placed{at: loc.XY(), el: &tiles.TrackElement{
			ElementHeader: tiles.ElementHeader{
				BaseZ:   baseZ,
				ClearZ:  baseZ + seg.ClearZ,
				Quarter: RotateQuarter(seg.Quarter, p.Rotation),
				Ghost:   p.Ghost,
				Owner:   p.Owner,
			},
			Rotation:      p.Rotation & 3,
			ObjectID:      p.ObjectID,
			TrackID:       p.TrackID,
			SequenceIndex: seg.Index,
		}})
	}

	out := make([]*tiles.TrackElement, 0, len(els))
	for _, pl := range els {
		if err := g.AddElement(pl.at, pl.el); err != nil {
			return out, err
		}
		out = append(out, pl.el)
	}
	return out, nil
}

// RotateQuarter turns a four-bit quarter mask by rotation quarter turns.
func RotateQuarter(q, rotation uint8) uint8 {
	r := rotation & 3
	q &= 0xF
	return ((q << r) | (q >> (4 - r))) & 0xF
}
