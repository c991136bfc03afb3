package tiles

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds = errors.New("tiles: position off the map")
	ErrNoCapacity  = errors.New("tiles: element pool exhausted")
)

type GridConfig struct {
	SizeX int // tiles
	SizeY int // tiles

	// Element pool. Removed elements keep their slot until Reorganise.
	Capacity int
	MinFree  int

	MaxClearZ int // small z steps
}

// Grid is the tile map: one ordered element list per tile.
type Grid struct {
	cfg   GridConfig
	tiles []Tile

	used  int
	stale int
}

func NewGrid(cfg GridConfig) *Grid {
	if cfg.SizeX <= 0 {
		cfg.SizeX = 1
	}
	if cfg.SizeY <= 0 {
		cfg.SizeY = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = cfg.SizeX * cfg.SizeY * 8
	}
	if cfg.MaxClearZ <= 0 {
		cfg.MaxClearZ = 236
	}
	g := &Grid{cfg: cfg, tiles: make([]Tile, cfg.SizeX*cfg.SizeY)}
	for y := 0; y < cfg.SizeY; y++ {
		for x := 0; x < cfg.SizeX; x++ {
			g.tiles[x+y*cfg.SizeX].pos = Pos2{X: x * TileSize, Y: y * TileSize}
		}
	}
	return g
}

func (g *Grid) Config() GridConfig { return g.cfg }

func (g *Grid) InBounds(p Pos2) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.cfg.SizeX*TileSize && p.Y < g.cfg.SizeY*TileSize
}

// TileAt returns the tile containing p, or nil when p is off the map.
func (g *Grid) TileAt(p Pos2) *Tile {
	if !g.InBounds(p) {
		return nil
	}
	x, y := p.X/TileSize, p.Y/TileSize
	return &g.tiles[x+y*g.cfg.SizeX]
}

func (g *Grid) ElementCount() int  { return g.used }
func (g *Grid) FreeElements() int  { return g.cfg.Capacity - g.used - g.stale }
func (g *Grid) StaleElements() int { return g.stale }

// Reorganise reclaims the slots of removed elements.
func (g *Grid) Reorganise() { g.stale = 0 }

// CheckFreeElementsAndReorganise makes sure at least MinFree slots are
// available, reorganising the pool if needed.
func (g *Grid) CheckFreeElementsAndReorganise() bool {
	if g.FreeElements() >= g.cfg.MinFree {
		return true
	}
	g.Reorganise()
	return g.FreeElements() >= g.cfg.MinFree
}

// AddElement stores el on the tile at p, keeping the list ordered by base height.
func (g *Grid) AddElement(p Pos2, el Element) error {
	t := g.TileAt(p)
	if t == nil {
		return ErrOutOfBounds
	}
	if g.FreeElements() <= 0 {
		return ErrNoCapacity
	}
	at := len(t.elements)
	for i, e := range t.elements {
		if e.Header().BaseZ > el.Header().BaseZ {
			at = i
			break
		}
	}
	t.elements = insertAt(t.elements, at, el)
	g.used++
	return nil
}

// InsertStationAfter allocates a station element directly after anchor.
// It never reorganises the pool; nil means no free slot or anchor is not on the tile.
func (g *Grid) InsertStationAfter(anchor Element, p Pos2, baseZ int, quarter uint8) *StationElement {
	t := g.TileAt(p)
	if t == nil || g.FreeElements() <= 0 {
		return nil
	}
	i := t.indexOf(anchor)
	if i < 0 {
		return nil
	}
	st := &StationElement{ElementHeader: ElementHeader{BaseZ: baseZ, ClearZ: baseZ, Quarter: quarter & 0xF}}
	t.elements = insertAt(t.elements, i+1, st)
	g.used++
	return st
}

// RemoveElement drops el from the tile at p. The slot stays stale until Reorganise.
func (g *Grid) RemoveElement(p Pos2, el Element) bool {
	t := g.TileAt(p)
	if t == nil {
		return false
	}
	i := t.indexOf(el)
	if i < 0 {
		return false
	}
	t.elements = append(t.elements[:i], t.elements[i+1:]...)
	g.used--
	g.stale++
	return true
}

// TilesInRadius calls fn for every tile within radius tiles (Chebyshev) of centre.
func (g *Grid) TilesInRadius(centre Pos2, radius int, fn func(t *Tile)) {
	c := centre.TileOrigin()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			t := g.TileAt(Pos2{X: c.X + dx*TileSize, Y: c.Y + dy*TileSize})
			if t == nil {
				continue
			}
			fn(t)
		}
	}
}

// Clone deep-copies the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{cfg: g.cfg, tiles: make([]Tile, len(g.tiles)), used: g.used, stale: g.stale}
	for i := range g.tiles {
		out.tiles[i].pos = g.tiles[i].pos
		if len(g.tiles[i].elements) == 0 {
			continue
		}
		els := make([]Element, len(g.tiles[i].elements))
		for j, e := range g.tiles[i].elements {
			els[j] = e.clone()
		}
		out.tiles[i].elements = els
	}
	return out
}

// Digest hashes every tile's contents in map order.
func (g *Grid) Digest() string {
	h := sha256.New()
	for i := range g.tiles {
		t := &g.tiles[i]
		if len(t.elements) == 0 {
			continue
		}
		fmt.Fprintf(h, "%d,%d:", t.pos.X, t.pos.Y)
		for _, e := range t.elements {
			fmt.Fprintf(h, "%s%+v;", e.Kind(), e)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func insertAt(els []Element, i int, el Element) []Element {
	els = append(els, nil)
	copy(els[i+1:], els[i:])
	els[i] = el
	return els
}
