// Package worldtest builds small flat worlds for black-box tests of the
// construction commands.
package worldtest

import (
	"fmt"
	"testing"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/economy"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
)

const (
	Player company.ID = 1
	Rival  company.ID = 2

	StartingCash = 1_000_000
)

// Harness is a 32x32 flat world with two companies and the default catalogs.
type Harness struct {
	T         *testing.T
	Cats      *catalogs.Catalogs
	Grid      *tiles.Grid
	Stations  *stations.Registry
	Costs     *economy.CostModel
	Companies *company.Registry
	Placer    *placement.Placer
	Dispatch  *commands.Dispatcher
}

type Options struct {
	Grid     tiles.GridConfig
	Stations stations.Config
}

func DefaultOptions() Options {
	return Options{
		Grid:     tiles.GridConfig{SizeX: 32, SizeY: 32},
		Stations: stations.DefaultConfig(),
	}
}

func New(t *testing.T) *Harness {
	t.Helper()
	return NewWithOptions(t, DefaultOptions())
}

func NewWithOptions(t *testing.T, opts Options) *Harness {
	t.Helper()

	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs.Default: %v", err)
	}
	g := tiles.NewGrid(opts.Grid)
	for y := 0; y < opts.Grid.SizeY; y++ {
		for x := 0; x < opts.Grid.SizeX; x++ {
			surf := &tiles.SurfaceElement{ElementHeader: tiles.ElementHeader{Quarter: 0xF, Owner: company.Neutral}}
			if err := g.AddElement(tiles.Pos2{X: x * tiles.TileSize, Y: y * tiles.TileSize}, surf); err != nil {
				t.Fatalf("seed surface: %v", err)
			}
		}
	}

	companies := company.NewRegistry()
	for _, c := range []struct {
		id   company.ID
		name string
	}{{Player, "Player Rail"}, {Rival, "Rival Lines"}} {
		if _, err := companies.Add(c.id, c.name, StartingCash); err != nil {
			t.Fatalf("add company: %v", err)
		}
	}

	reg := stations.NewRegistry(opts.Stations)
	costs := economy.DefaultCostModel(32)
	return &Harness{
		T:         t,
		Cats:      cats,
		Grid:      g,
		Stations:  reg,
		Costs:     costs,
		Companies: companies,
		Placer:    placement.New(g, cats, reg, costs, companies),
		Dispatch:  commands.NewDispatcher(companies, nil),
	}
}

// Lay puts a track piece down or fails the test.
func (h *Harness) Lay(p track.Piece) []*tiles.TrackElement {
	h.T.Helper()
	els, err := track.Lay(h.Grid, h.Cats, p)
	if err != nil {
		h.T.Fatalf("lay track %+v: %v", p, err)
	}
	return els
}

// LayStraight lays a player-owned standard straight at tile (tx, ty).
func (h *Harness) LayStraight(tx, ty int, rotation uint8) *tiles.TrackElement {
	h.T.Helper()
	return h.Lay(track.Piece{Pos: TilePos(tx, ty, 0), Rotation: rotation, Owner: Player})[0]
}

// AddBuilding blocks the tile at (tx, ty) between the two small-z heights.
func (h *Harness) AddBuilding(tx, ty, baseZ, clearZ int) *tiles.BuildingElement {
	h.T.Helper()
	b := &tiles.BuildingElement{ElementHeader: tiles.ElementHeader{BaseZ: baseZ, ClearZ: clearZ, Quarter: 0xF, Owner: company.Neutral}}
	if err := h.Grid.AddElement(tiles.Pos2{X: tx * tiles.TileSize, Y: ty * tiles.TileSize}, b); err != nil {
		h.T.Fatalf("add building: %v", err)
	}
	return b
}

// Place runs the placement directly, bypassing the dispatcher's cash handling.
func (h *Harness) Place(actor company.ID, req placement.Request, flags commands.Flags) (placement.Outcome, *commands.Context, error) {
	ctx := &commands.Context{Company: actor}
	out, err := h.Placer.PlaceTrainStation(ctx, req, flags)
	return out, ctx, err
}

// MustPlace applies a placement for the player or fails the test.
func (h *Harness) MustPlace(req placement.Request) placement.Outcome {
	h.T.Helper()
	out, _, err := h.Place(Player, req, commands.Apply)
	if err != nil {
		h.T.Fatalf("place %+v: %v", req, err)
	}
	return out
}

// Snapshot fingerprints the grid and the station registry.
func (h *Harness) Snapshot() string {
	s := h.Grid.Digest()
	for _, st := range h.Stations.List() {
		s += fmt.Sprintf("|%d:%s:%s:%v", st.ID, st.Name, st.Label, st.Tiles)
	}
	return s
}

func TilePos(tx, ty, z int) tiles.Pos3 {
	return tiles.Pos3{X: tx * tiles.TileSize, Y: ty * tiles.TileSize, Z: z}
}

// StraightRequest asks for a wooden platform on the straight at (tx, ty).
func StraightRequest(tx, ty int, rotation uint8) placement.Request {
	return placement.Request{Pos: TilePos(tx, ty, 0), Rotation: rotation}
}
