package tiles

import "stationworks.ai/internal/sim/company"

type Kind uint8

const (
	KindSurface Kind = iota + 1
	KindTrack
	KindStation
	KindBuilding
)

func (k Kind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindTrack:
		return "track"
	case KindStation:
		return "station"
	case KindBuilding:
		return "building"
	default:
		return "unknown"
	}
}

// Element is one entry of a tile's element list.
type Element interface {
	Kind() Kind
	Header() *ElementHeader
	clone() Element
}

// ElementHeader is shared by every element. Heights are in small z steps.
type ElementHeader struct {
	BaseZ   int
	ClearZ  int
	Quarter uint8 // occupied quarter mask, low nibble
	Ghost   bool
	Owner   company.ID
}

func (h *ElementHeader) BaseHeight() int  { return h.BaseZ * SmallZStep }
func (h *ElementHeader) ClearHeight() int { return h.ClearZ * SmallZStep }

type SurfaceElement struct {
	ElementHeader
}

func (e *SurfaceElement) Kind() Kind             { return KindSurface }
func (e *SurfaceElement) Header() *ElementHeader { return &e.ElementHeader }

func (e *SurfaceElement) clone() Element {
	c := *e
	return &c
}

type TrackElement struct {
	ElementHeader
	Rotation         uint8
	ObjectID         uint8
	TrackID          uint8
	SequenceIndex    uint8
	HasStation       bool
	HasSignal        bool
	HasLevelCrossing bool
}

func (e *TrackElement) Kind() Kind             { return KindTrack }
func (e *TrackElement) Header() *ElementHeader { return &e.ElementHeader }

func (e *TrackElement) clone() Element {
	c := *e
	return &c
}

type StationType uint8

const (
	TrainStation StationType = iota
	RoadStation
	Airport
	Dock
)

type StationElement struct {
	ElementHeader
	Rotation       uint8
	ObjectID       uint8
	Type           StationType
	StationID      uint16
	AIAllocated    bool
	MultiTileIndex uint8
}

func (e *StationElement) Kind() Kind             { return KindStation }
func (e *StationElement) Header() *ElementHeader { return &e.ElementHeader }

func (e *StationElement) clone() Element {
	c := *e
	return &c
}

// BuildingElement is any structure that is not part of the rail network.
type BuildingElement struct {
	ElementHeader
	ObjectID uint8
}

func (e *BuildingElement) Kind() Kind             { return KindBuilding }
func (e *BuildingElement) Header() *ElementHeader { return &e.ElementHeader }

func (e *BuildingElement) clone() Element {
	c := *e
	return &c
}

// Tile is the ordered element list at one map position.
type Tile struct {
	pos      Pos2
	elements []Element
}

func (t *Tile) Pos() Pos2 { return t.pos }

// Elements returns the live list; callers must not append to it.
func (t *Tile) Elements() []Element {
	if t == nil {
		return nil
	}
	return t.elements
}

// Next returns the element stored directly after el, or nil.
func (t *Tile) Next(el Element) Element {
	for i, e := range t.elements {
		if e == el {
			if i+1 < len(t.elements) {
				return t.elements[i+1]
			}
			return nil
		}
	}
	return nil
}

// Prev returns the element stored directly before el, or nil.
func (t *Tile) Prev(el Element) Element {
	for i, e := range t.elements {
		if e == el {
			if i > 0 {
				return t.elements[i-1]
			}
			return nil
		}
	}
	return nil
}

// StationAfter returns the station element linked to a track element.
func (t *Tile) StationAfter(el *TrackElement) *StationElement {
	if !el.HasStation {
		return nil
	}
	st, _ := t.Next(el).(*StationElement)
	return st
}

func (t *Tile) indexOf(el Element) int {
	for i, e := range t.elements {
		if e == el {
			return i
		}
	}
	return -1
}
