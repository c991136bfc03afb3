package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
	"stationworks.ai/internal/sim/tuning"
)

type sinkFunc func(game.AuditEntry) error

func (f sinkFunc) WriteAudit(e game.AuditEntry) error { return f(e) }

func TestMultiAuditLogger_ReportsEverySinkError(t *testing.T) {
	errA := errors.New("zstd: disk full")
	errB := errors.New("index: closed")
	var reachedB bool

	m := multiAuditLogger{
		a: sinkFunc(func(game.AuditEntry) error { return errA }),
		b: sinkFunc(func(game.AuditEntry) error { reachedB = true; return errB }),
	}
	err := m.WriteAudit(game.AuditEntry{ID: "x"})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got %v", err)
	}
	if !reachedB {
		t.Fatalf("second sink skipped after the first failed")
	}

	ok := sinkFunc(func(game.AuditEntry) error { return nil })
	if err := (multiAuditLogger{a: ok, b: ok}).WriteAudit(game.AuditEntry{}); err != nil {
		t.Fatalf("healthy sinks: %v", err)
	}
	if err := (multiAuditLogger{}).WriteAudit(game.AuditEntry{}); err != nil {
		t.Fatalf("no sinks: %v", err)
	}
}

func TestMultiAuditLogger_FailureIsLoggedByGame(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.World.SizeX, cfg.World.SizeY = 8, 8
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	var buf bytes.Buffer
	g, err := game.New(cfg, cats, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	g.SetAuditLogger(multiAuditLogger{a: sinkFunc(func(game.AuditEntry) error { return errors.New("disk full") })})
	g.Execute(game.CommandEnvelope{Company: 1, Request: placement.Request{Pos: tiles.Pos3{X: 32, Y: 32}}})
	if !bytes.Contains(buf.Bytes(), []byte("audit: disk full")) {
		t.Fatalf("audit failure not logged: %q", buf.String())
	}
}

func TestStartGame_StopWaitsForLoop(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.World.SizeX, cfg.World.SizeY = 8, 8
	cfg.SeedTracks = []track.Piece{{Pos: tiles.Pos3{X: 32, Y: 32}, Owner: 1}}
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	g, err := game.New(cfg, cats, nil)
	if err != nil {
		t.Fatalf("game: %v", err)
	}

	var mu sync.Mutex
	closed := false
	var lateWrites int
	g.SetAuditLogger(sinkFunc(func(game.AuditEntry) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			lateWrites++
		}
		return nil
	}))

	stop := startGame(context.Background(), g, nil)
	if _, err := g.Submit(context.Background(), game.CommandEnvelope{Company: 1, Request: placement.Request{Pos: tiles.Pos3{X: 32, Y: 32}}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	stop()

	// Sinks close here, as the deferred closes in main do.
	mu.Lock()
	closed = true
	mu.Unlock()

	select {
	case <-g.Done():
	default:
		t.Fatalf("loop still running after stop")
	}
	if _, err := g.Submit(context.Background(), game.CommandEnvelope{Company: 1}); !errors.Is(err, game.ErrStopped) {
		t.Fatalf("submit after stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if lateWrites != 0 {
		t.Fatalf("%d audit writes after the sinks closed", lateWrites)
	}
}
