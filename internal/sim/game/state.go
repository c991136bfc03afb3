package game

import (
	"context"
	"sync/atomic"
	"time"

	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
)

type CompanyState struct {
	ID           company.ID `json:"id"`
	Name         string     `json:"name"`
	Cash         int64      `json:"cash"`
	Construction int64      `json:"construction"`
}

type StationState struct {
	ID     stations.ID        `json:"id"`
	Owner  company.ID         `json:"owner"`
	Name   string             `json:"name"`
	Label  string             `json:"label"`
	Centre tiles.Pos2         `json:"centre"`
	Tiles  []stations.TilePos `json:"tiles"`
}

// State is a read-only copy of the world for admin tooling.
type State struct {
	Tick         uint64         `json:"tick"`
	Digest       string         `json:"digest"`
	FreeElements int            `json:"free_elements"`
	ElementCount int            `json:"element_count"`
	Multipliers  []int64        `json:"multipliers"`
	Companies    []CompanyState `json:"companies"`
	Stations     []StationState `json:"stations"`
}

type stateReq struct {
	Resp chan State
}

func (g *Game) snapshotState() State {
	s := State{
		Tick:         g.tick.Load(),
		Digest:       g.grid.Digest(),
		FreeElements: g.grid.FreeElements(),
		ElementCount: g.grid.ElementCount(),
	}
	for i := 0; i < g.costs.Indices(); i++ {
		s.Multipliers = append(s.Multipliers, g.costs.Multiplier(uint8(i)))
	}
	for _, c := range g.companies.List() {
		s.Companies = append(s.Companies, CompanyState{
			ID:           c.ID,
			Name:         c.Name,
			Cash:         c.Cash,
			Construction: c.Expenditures[company.Construction],
		})
	}
	for _, st := range g.stations.List() {
		s.Stations = append(s.Stations, StationState{
			ID:     st.ID,
			Owner:  st.Owner,
			Name:   st.Name,
			Label:  st.Label,
			Centre: st.Centre,
			Tiles:  append([]stations.TilePos(nil), st.Tiles...),
		})
	}
	return s
}

func (g *Game) handleStateReq(req stateReq) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- g.snapshotState():
	default:
	}
}

// RequestState asks the game loop for a State copy.
func (g *Game) RequestState(ctx context.Context) (State, error) {
	if g.stopped.Load() {
		return State{}, ErrStopped
	}
	req := stateReq{Resp: make(chan State, 1)}
	select {
	case g.stateReq <- req:
	case <-g.stop:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-req.Resp:
		return s, nil
	case <-g.stop:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

type metrics struct {
	queries      atomic.Uint64
	applies      atomic.Uint64
	failures     atomic.Uint64
	months       atomic.Uint64
	lastCmdNanos atomic.Int64
}

func (m *metrics) record(flags commands.Flags, res commands.Result, took time.Duration) {
	if flags.Has(commands.Apply) {
		m.applies.Add(1)
	} else {
		m.queries.Add(1)
	}
	if !res.OK() {
		m.failures.Add(1)
	}
	m.lastCmdNanos.Store(took.Nanoseconds())
}

type Metrics struct {
	Tick           uint64
	Queries        uint64
	Applies        uint64
	Failures       uint64
	Months         uint64
	LastCommandDur time.Duration
	QueueDepth     int
}

// Metrics is safe to call from any goroutine.
func (g *Game) Metrics() Metrics {
	return Metrics{
		Tick:           g.tick.Load(),
		Queries:        g.metrics.queries.Load(),
		Applies:        g.metrics.applies.Load(),
		Failures:       g.metrics.failures.Load(),
		Months:         g.metrics.months.Load(),
		LastCommandDur: time.Duration(g.metrics.lastCmdNanos.Load()),
		QueueDepth:     len(g.inbox),
	}
}
