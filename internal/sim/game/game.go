// Package game owns the simulation state. All mutation happens on the
// goroutine running Run; other goroutines talk to it through Submit and
// the request helpers.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/economy"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
	"stationworks.ai/internal/sim/tuning"
)

var ErrStopped = errors.New("game: stopped")

type CommandEnvelope struct {
	ID      string
	Company company.ID
	Request placement.Request
	Flags   commands.Flags
	Resp    chan CommandResponse
}

type CommandResponse struct {
	ID      string
	Tick    uint64
	Result  commands.Result
	Outcome placement.Outcome
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick      uint64            `json:"tick"`
	ID        string            `json:"id,omitempty"`
	Company   company.ID        `json:"company"`
	Command   string            `json:"command"`
	Flags     []string          `json:"flags,omitempty"`
	Request   placement.Request `json:"request"`
	OK        bool              `json:"ok"`
	Cost      int64             `json:"cost"`
	Charged   bool              `json:"charged,omitempty"`
	Station   stations.ID       `json:"station"`
	Error     string            `json:"error,omitempty"`
	ErrorText string            `json:"error_text,omitempty"`
	Digest    string            `json:"digest,omitempty"`
}

type Game struct {
	cfg tuning.Tuning
	log *log.Logger

	cats      *catalogs.Catalogs
	grid      *tiles.Grid
	stations  *stations.Registry
	costs     *economy.CostModel
	companies *company.Registry
	names     map[company.ID]string
	placer    *placement.Placer
	dispatch  *commands.Dispatcher

	inbox    chan CommandEnvelope
	stateReq chan stateReq
	stop     chan struct{}
	stopped  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	tick    atomic.Uint64
	metrics metrics

	auditLogger AuditLogger
}

// New builds a flat world from the tuning and lays the seed scenario.
func New(cfg tuning.Tuning, cats *catalogs.Catalogs, logger *log.Logger) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cats == nil {
		return nil, errors.New("game: nil catalogs")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[game] ", log.LstdFlags|log.Lmicroseconds)
	}
	costs, err := cfg.CostModel()
	if err != nil {
		return nil, err
	}

	companies := company.NewRegistry()
	companies.Editor = cfg.World.EditorMode
	for _, c := range cfg.Companies {
		if _, err := companies.Add(c.ID, c.Name, c.Cash); err != nil {
			return nil, err
		}
	}

	g := &Game{
		cfg:       cfg,
		log:       logger,
		cats:      cats,
		grid:      tiles.NewGrid(cfg.GridConfig()),
		stations:  stations.NewRegistry(cfg.StationConfig()),
		costs:     costs,
		companies: companies,
		names:     map[company.ID]string{},
		inbox:     make(chan CommandEnvelope, 256),
		stateReq:  make(chan stateReq, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, c := range cfg.Companies {
		g.names[c.ID] = c.Name
	}
	g.placer = placement.New(g.grid, cats, g.stations, costs, companies)
	g.dispatch = commands.NewDispatcher(companies, logger)
	if err := g.seed(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) seed() error {
	for y := 0; y < g.cfg.World.SizeY; y++ {
		for x := 0; x < g.cfg.World.SizeX; x++ {
			surf := &tiles.SurfaceElement{ElementHeader: tiles.ElementHeader{Quarter: 0xF, Owner: company.Neutral}}
			if err := g.grid.AddElement(tiles.Pos2{X: x * tiles.TileSize, Y: y * tiles.TileSize}, surf); err != nil {
				return fmt.Errorf("seed surface: %w", err)
			}
		}
	}
	for i, p := range g.cfg.SeedTracks {
		if _, err := track.Lay(g.grid, g.cats, p); err != nil {
			return fmt.Errorf("seed track %d: %w", i, err)
		}
	}
	for i, b := range g.cfg.SeedBuildings {
		el := &tiles.BuildingElement{ElementHeader: tiles.ElementHeader{BaseZ: b.BaseZ, ClearZ: b.ClearZ, Quarter: 0xF, Owner: company.Neutral}}
		if err := g.grid.AddElement(b.Pos, el); err != nil {
			return fmt.Errorf("seed building %d: %w", i, err)
		}
	}
	return nil
}

func (g *Game) SetAuditLogger(l AuditLogger) { g.auditLogger = l }

func (g *Game) Catalogs() *catalogs.Catalogs { return g.cats }
func (g *Game) Tuning() tuning.Tuning        { return g.cfg }
func (g *Game) CurrentTick() uint64          { return g.tick.Load() }

// CompanyName reports whether id may connect. Names never change after New,
// so this is safe off the game goroutine. Neutral is only playable in
// editor mode.
func (g *Game) CompanyName(id company.ID) (string, bool) {
	if id == company.Neutral && g.cfg.World.EditorMode {
		return "Neutral", true
	}
	name, ok := g.names[id]
	return name, ok
}

// Run drives the game until ctx is done or Stop is called. Commands still
// queued when it returns are never executed.
func (g *Game) Run(ctx context.Context) error {
	defer g.doneOnce.Do(func() { close(g.done) })
	interval := time.Second / time.Duration(g.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case env := <-g.inbox:
			resp := g.Execute(env)
			if env.Resp != nil {
				select {
				case env.Resp <- resp:
				default:
					// Caller gave up; never block the loop.
				}
			}
		case req := <-g.stateReq:
			g.handleStateReq(req)
		case <-ticker.C:
			g.Step()
		}
	}
}

func (g *Game) Stop() {
	if g.stopped.CompareAndSwap(false, true) {
		close(g.stop)
	}
}

// Step advances one tick. Cost indices inflate at each month boundary.
func (g *Game) Step() {
	t := g.tick.Add(1)
	if g.cfg.MonthTicks > 0 && t%uint64(g.cfg.MonthTicks) == 0 {
		g.costs.Inflate()
		g.metrics.months.Add(1)
	}
}

// Execute runs one command synchronously. Only the Run goroutine (or a
// test that owns the game outright) may call it.
func (g *Game) Execute(env CommandEnvelope) CommandResponse {
	start := time.Now()
	cmd := g.placer.Command(env.Request)
	res := g.dispatch.Do(cmd, env.Company, env.Flags)
	out := cmd.Outcome()

	g.metrics.record(env.Flags, res, time.Since(start))
	resp := CommandResponse{ID: env.ID, Tick: g.tick.Load(), Result: res, Outcome: out}
	g.audit(env, resp)
	return resp
}

func (g *Game) audit(env CommandEnvelope, resp CommandResponse) {
	if g.auditLogger == nil {
		return
	}
	entry := AuditEntry{
		Tick:      resp.Tick,
		ID:        env.ID,
		Company:   env.Company,
		Command:   placement.CommandName,
		Flags:     env.Flags.Names(),
		Request:   env.Request,
		OK:        resp.Result.OK(),
		Cost:      resp.Result.Cost,
		Charged:   resp.Result.Charged,
		Station:   resp.Outcome.Station,
		ErrorText: string(resp.Result.ErrorText),
	}
	if resp.Result.Err != nil {
		entry.Error = resp.Result.Err.Error()
	}
	if env.Flags.Has(commands.Apply) && resp.Result.OK() {
		entry.Digest = g.grid.Digest()
	}
	if err := g.auditLogger.WriteAudit(entry); err != nil {
		g.log.Printf("audit: %v", err)
	}
}

// Submit hands a command to the game loop and waits for its result.
// ctx only bounds the wait for a slot in the inbox: once the command is
// queued it will run, so Submit waits for the response until the loop exits.
func (g *Game) Submit(ctx context.Context, env CommandEnvelope) (CommandResponse, error) {
	if g.stopped.Load() {
		return CommandResponse{}, ErrStopped
	}
	env.Resp = make(chan CommandResponse, 1)
	select {
	case g.inbox <- env:
	case <-g.stop:
		return CommandResponse{}, ErrStopped
	case <-g.done:
		return CommandResponse{}, ErrStopped
	case <-ctx.Done():
		return CommandResponse{}, ctx.Err()
	}
	// Stop may land while the loop is executing this very command, so only
	// Run returning settles the outcome.
	select {
	case resp := <-env.Resp:
		return resp, nil
	case <-g.done:
		return g.drained(env.Resp)
	}
}

// drained picks up a response the loop sent just before exiting.
func (g *Game) drained(resp chan CommandResponse) (CommandResponse, error) {
	select {
	case r := <-resp:
		return r, nil
	default:
		return CommandResponse{}, ErrStopped
	}
}

// Done is closed once Run has returned.
func (g *Game) Done() <-chan struct{} { return g.done }
