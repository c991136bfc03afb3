package stations

import (
	"fmt"
	"sort"

	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tiles"
)

type ID uint16

const Null ID = 0xFFFF

type Flags uint16

const (
	FlagCargoRecalc Flags = 1 << iota
	FlagJustBuilt
	FlagHasTransfers
)

type TilePos struct {
	Pos      tiles.Pos3 `json:"pos"`
	Rotation uint8      `json:"rotation"`
}

type Station struct {
	ID     ID
	Owner  company.ID
	Name   string
	Label  string
	Tiles  []TilePos
	Centre tiles.Pos2
	Flags  Flags
}

// TileCount is the station's footprint.
func (s *Station) TileCount() int { return len(s.Tiles) }

type Config struct {
	MaxStations int
	// TileCap: stations holding more tiles than this cannot grow further.
	TileCap int
	// MaxSpread: widest tile bounding box a station may cover.
	MaxSpread int
	// SearchRadius: how far (in tiles) to look for a station to join.
	SearchRadius int
	Names        []string
}

func DefaultConfig() Config {
	return Config{
		MaxStations:  1024,
		TileCap:      80,
		MaxSpread:    15,
		SearchRadius: 4,
		Names:        []string{"Ashford", "Brookside", "Carrow", "Dunmere", "Elmstead", "Fallowfield", "Greyhaven", "Hollins"},
	}
}

type Registry struct {
	cfg  Config
	byID map[ID]*Station
}

func NewRegistry(cfg Config) *Registry {
	if cfg.MaxStations <= 0 {
		cfg.MaxStations = DefaultConfig().MaxStations
	}
	if len(cfg.Names) == 0 {
		cfg.Names = DefaultConfig().Names
	}
	return &Registry{cfg: cfg, byID: map[ID]*Station{}}
}

func (r *Registry) Config() Config { return r.cfg }
func (r *Registry) Count() int     { return len(r.byID) }

func (r *Registry) Get(id ID) *Station { return r.byID[id] }

// CanAllocate reports whether Allocate would succeed, without allocating.
func (r *Registry) CanAllocate(owner company.ID) bool {
	return len(r.byID) < r.cfg.MaxStations
}

// Allocate creates an empty station record centred on pos. Null when full.
func (r *Registry) Allocate(pos tiles.Pos3, owner company.ID) ID {
	if !r.CanAllocate(owner) {
		return Null
	}
	id := ID(0)
	for ; id < Null; id++ {
		if _, used := r.byID[id]; !used {
			break
		}
	}
	if id == Null {
		return Null
	}
	st := &Station{
		ID:     id,
		Owner:  owner,
		Name:   r.pickName(),
		Centre: pos.XY(),
		Flags:  FlagJustBuilt,
	}
	r.byID[id] = st
	r.UpdateLabel(id)
	return id
}

func (r *Registry) Deallocate(id ID) {
	delete(r.byID, id)
}

// pickName returns the first configured name not used by a live station,
// numbering repeats once every name is taken.
func (r *Registry) pickName() string {
	used := make(map[string]bool, len(r.byID))
	for _, st := range r.byID {
		used[st.Name] = true
	}
	for round := 1; ; round++ {
		for _, n := range r.cfg.Names {
			name := n
			if round > 1 {
				name = fmt.Sprintf("%s %d", n, round)
			}
			if !used[name] {
				return name
			}
		}
	}
}

// AddTile registers a newly attached station tile.
func (r *Registry) AddTile(id ID, pos tiles.Pos3, rotation uint8) {
	st := r.byID[id]
	if st == nil {
		return
	}
	st.Tiles = append(st.Tiles, TilePos{Pos: pos, Rotation: rotation & 3})
	st.Flags |= FlagCargoRecalc
}

// ResetFlags clears the transient flags left over from construction.
func (r *Registry) ResetFlags(id ID) {
	st := r.byID[id]
	if st == nil {
		return
	}
	st.Flags &^= FlagJustBuilt | FlagHasTransfers
}

// RecalculateCentre moves the station centre to the middle of its tiles.
func (r *Registry) RecalculateCentre(id ID) {
	st := r.byID[id]
	if st == nil || len(st.Tiles) == 0 {
		return
	}
	minX, minY, maxX, maxY := bounds(st.Tiles)
	c := tiles.Pos2{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	st.Centre = c.TileOrigin().Add(tiles.Pos2{X: tiles.TileSize / 2, Y: tiles.TileSize / 2})
}

// UpdateLabel refreshes the display label from the name and footprint.
func (r *Registry) UpdateLabel(id ID) {
	st := r.byID[id]
	if st == nil {
		return
	}
	switch n := st.TileCount(); {
	case n <= 1:
		st.Label = st.Name + " Halt"
	case n >= 8:
		st.Label = st.Name + " Central"
	default:
		st.Label = st.Name
	}
}

// OverTileCap reports whether the station already exceeds the tile cap.
func (r *Registry) OverTileCap(id ID) bool {
	st := r.byID[id]
	return st != nil && st.TileCount() > r.cfg.TileCap
}

// TooSpreadOut reports whether adding pos would stretch the station past MaxSpread.
func (r *Registry) TooSpreadOut(id ID, pos tiles.Pos3) bool {
	st := r.byID[id]
	if st == nil || len(st.Tiles) == 0 || r.cfg.MaxSpread <= 0 {
		return false
	}
	all := append(append([]TilePos(nil), st.Tiles...), TilePos{Pos: pos})
	minX, minY, maxX, maxY := bounds(all)
	spanX := (maxX-minX)/tiles.TileSize + 1
	spanY := (maxY-minY)/tiles.TileSize + 1
	return spanX > r.cfg.MaxSpread || spanY > r.cfg.MaxSpread
}

func (r *Registry) List() []*Station {
	out := make([]*Station, 0, len(r.byID))
	for _, st := range r.byID {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone deep-copies the registry.
func (r *Registry) Clone() *Registry {
	out := &Registry{cfg: r.cfg, byID: make(map[ID]*Station, len(r.byID))}
	for id, st := range r.byID {
		c := *st
		c.Tiles = append([]TilePos(nil), st.Tiles...)
		out.byID[id] = &c
	}
	return out
}

func bounds(ts []TilePos) (minX, minY, maxX, maxY int) {
	minX, minY = ts[0].Pos.X, ts[0].Pos.Y
	maxX, maxY = minX, minY
	for _, t := range ts[1:] {
		if t.Pos.X < minX {
			minX = t.Pos.X
		}
		if t.Pos.Y < minY {
			minY = t.Pos.Y
		}
		if t.Pos.X > maxX {
			maxX = t.Pos.X
		}
		if t.Pos.Y > maxY {
			maxY = t.Pos.Y
		}
	}
	return minX, minY, maxX, maxY
}
