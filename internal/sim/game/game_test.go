package game

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/stringids"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
	"stationworks.ai/internal/sim/tuning"
)

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func testTuning() tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.World.SizeX = 16
	cfg.World.SizeY = 16
	cfg.MonthTicks = 2
	cfg.SeedTracks = []track.Piece{
		{Pos: tiles.Pos3{X: 64, Y: 64}, Owner: 1},
		{Pos: tiles.Pos3{X: 96, Y: 64}, Owner: 1},
	}
	cfg.SeedBuildings = []tuning.Building{{Pos: tiles.Pos2{X: 64, Y: 128}, BaseZ: 0, ClearZ: 16}}
	return cfg
}

func newTestGame(t *testing.T, cfg tuning.Tuning) *Game {
	t.Helper()
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	var buf bytes.Buffer
	g, err := New(cfg, cats, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

func place(tx, ty int) placement.Request {
	return placement.Request{Pos: tiles.Pos3{X: tx * tiles.TileSize, Y: ty * tiles.TileSize}}
}

func TestExecute_QueryThenApply(t *testing.T) {
	g := newTestGame(t, testTuning())
	audit := &memAudit{}
	g.SetAuditLogger(audit)

	q := g.Execute(CommandEnvelope{ID: "q1", Company: 1, Request: place(2, 2)})
	if !q.Result.OK() || q.Result.Cost != 240 || q.Result.Charged {
		t.Fatalf("query: %+v", q.Result)
	}
	before := g.grid.Digest()

	a := g.Execute(CommandEnvelope{ID: "a1", Company: 1, Request: place(2, 2), Flags: commands.Apply})
	if !a.Result.OK() || a.Result.Cost != q.Result.Cost || !a.Result.Charged {
		t.Fatalf("apply: %+v", a.Result)
	}
	if g.grid.Digest() == before {
		t.Fatalf("apply left the grid unchanged")
	}

	s := g.snapshotState()
	if len(s.Stations) != 1 || s.Stations[0].ID != a.Outcome.Station {
		t.Fatalf("stations: %+v", s.Stations)
	}
	if s.Companies[0].Cash != 500_000-240 || s.Companies[0].Construction != 240 {
		t.Fatalf("company: %+v", s.Companies[0])
	}

	if len(audit.entries) != 2 {
		t.Fatalf("audit entries: %d", len(audit.entries))
	}
	want := AuditEntry{
		ID:      "a1",
		Company: 1,
		Command: placement.CommandName,
		Flags:   []string{"apply"},
		Request: place(2, 2),
		OK:      true,
		Cost:    240,
		Charged: true,
		Station: a.Outcome.Station,
		Digest:  g.grid.Digest(),
	}
	if diff := cmp.Diff(want, audit.entries[1]); diff != "" {
		t.Fatalf("audit (-want +got):\n%s", diff)
	}
	if audit.entries[0].Digest != "" {
		t.Fatalf("queries carry no digest: %+v", audit.entries[0])
	}
}

func TestExecute_FailureIsAudited(t *testing.T) {
	g := newTestGame(t, testTuning())
	audit := &memAudit{}
	g.SetAuditLogger(audit)

	res := g.Execute(CommandEnvelope{Company: 1, Request: place(9, 9), Flags: commands.Apply})
	if !errors.Is(res.Result.Err, placement.ErrNoTrackPresent) {
		t.Fatalf("expected no track, got %v", res.Result.Err)
	}
	e := audit.entries[0]
	if e.OK || e.ErrorText != string(stringids.NoTrackPresent) || e.Error == "" {
		t.Fatalf("audit: %+v", e)
	}
	if m := g.Metrics(); m.Applies != 1 || m.Failures != 1 || m.Queries != 0 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestStep_InflatesEachMonth(t *testing.T) {
	g := newTestGame(t, testTuning())
	g.Step()
	if got := g.costs.Multiplier(1); got != 1024 {
		t.Fatalf("inflated mid-month: %d", got)
	}
	g.Step()
	if got := g.costs.Multiplier(1); got != 1028 {
		t.Fatalf("multiplier after one month: %d", got)
	}
	if got := g.costs.Multiplier(0); got != 1024 {
		t.Fatalf("zero rate index moved: %d", got)
	}
	if m := g.Metrics(); m.Tick != 2 || m.Months != 1 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestNew_RejectsBadSeed(t *testing.T) {
	cfg := testTuning()
	cfg.SeedTracks = append(cfg.SeedTracks, track.Piece{Pos: tiles.Pos3{X: 16 * 32, Y: 0}})
	cats, _ := catalogs.Default()
	if _, err := New(cfg, cats, nil); !errors.Is(err, tiles.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}

	cfg = testTuning()
	cfg.TickRateHz = 0
	if _, err := New(cfg, cats, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRun_SubmitAndState(t *testing.T) {
	cfg := testTuning()
	cfg.TickRateHz = 200
	g := newTestGame(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	resp, err := g.Submit(ctx, CommandEnvelope{ID: "r1", Company: 1, Request: place(3, 2), Flags: commands.Apply})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.ID != "r1" || !resp.Result.OK() {
		t.Fatalf("resp: %+v", resp)
	}
	s, err := g.RequestState(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(s.Stations) != 1 || s.Stations[0].Label != "Ashford Halt" {
		t.Fatalf("stations: %+v", s.Stations)
	}

	g.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := g.Submit(ctx, CommandEnvelope{Company: 1}); !errors.Is(err, ErrStopped) {
		t.Fatalf("submit after stop: %v", err)
	}
}

func TestSubmit_QueuedCommandOutlivesCallerDeadline(t *testing.T) {
	g := newTestGame(t, testTuning())
	before := g.grid.Digest()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	type result struct {
		resp CommandResponse
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := g.Submit(ctx, CommandEnvelope{ID: "late", Company: 1, Request: place(3, 2), Flags: commands.Apply})
		got <- result{resp, err}
	}()

	// The loop starts only after the caller's deadline has passed.
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go func() { _ = g.Run(runCtx) }()

	var r result
	select {
	case r = <-got:
	case <-time.After(5 * time.Second):
		t.Fatalf("submit never returned")
	}
	if r.err != nil {
		t.Fatalf("queued command reported %v although it ran", r.err)
	}
	if !r.resp.Result.OK() || !r.resp.Result.Charged || r.resp.ID != "late" {
		t.Fatalf("resp: %+v", r.resp)
	}
	if g.grid.Digest() == before {
		t.Fatalf("apply did not change the grid")
	}
}

func TestSubmit_LoopExitWithQueuedCommand(t *testing.T) {
	g := newTestGame(t, testTuning())
	got := make(chan error, 1)
	go func() {
		_, err := g.Submit(context.Background(), CommandEnvelope{Company: 1, Request: place(3, 2)})
		got <- err
	}()
	for len(g.inbox) == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled loop may or may not pick up the queued command first;
	// either way Submit must return.
	_ = g.Run(ctx)
	<-g.Done()
	select {
	case err := <-got:
		if err != nil && !errors.Is(err, ErrStopped) {
			t.Fatalf("submit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("submit blocked after the loop exited")
	}
}
