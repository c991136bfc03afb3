package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"stationworks.ai/internal/persistence/indexdb"
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
	"stationworks.ai/internal/sim/tuning"
	"stationworks.ai/internal/transport/ws"
)

func testDeps(t *testing.T, admin bool) (muxDeps, *indexdb.SQLiteIndex) {
	t.Helper()
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
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "idx.sqlite"))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	g.SetAuditLogger(multiAuditLogger{b: idx})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = g.Run(ctx) }()

	return muxDeps{game: g, ws: ws.NewServer(g, nil), index: idx, adminHTTP: admin}, idx
}

func get(t *testing.T, mux http.Handler, path, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMux_HealthAndMetrics(t *testing.T) {
	d, _ := testDeps(t, true)
	mux := newMux(d)

	if rec := get(t, mux, "/healthz", "10.0.0.1:1"); rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	_, _ = d.game.Submit(context.Background(), game.CommandEnvelope{Company: 1, Request: placement.Request{Pos: tiles.Pos3{X: 32, Y: 32}}})
	rec := get(t, mux, "/metrics", "10.0.0.1:1")
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE stationworks_tick gauge",
		`stationworks_commands_total{mode="query"} 1`,
		`stationworks_commands_total{mode="apply"} 0`,
		"stationworks_sessions 0",
		"stationworks_index_dropped_total 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestMux_AdminLoopbackOnly(t *testing.T) {
	d, idx := testDeps(t, true)
	mux := newMux(d)

	if rec := get(t, mux, "/admin/v1/state", "10.0.0.1:1"); rec.Code != http.StatusForbidden {
		t.Fatalf("remote admin: %d", rec.Code)
	}

	resp, err := d.game.Submit(context.Background(), game.CommandEnvelope{
		ID:      "a1",
		Company: 1,
		Request: placement.Request{Pos: tiles.Pos3{X: 32, Y: 32}},
		Flags:   commands.Apply,
	})
	if err != nil || !resp.Result.OK() {
		t.Fatalf("apply: %+v %v", resp.Result, err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	rec := get(t, mux, "/admin/v1/state", "127.0.0.1:5000")
	var st game.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || rec.Code != 200 {
		t.Fatalf("state: %d %v", rec.Code, err)
	}
	if len(st.Stations) != 1 || st.Companies[0].Cash != tuning.Defaults().Companies[0].Cash-240 {
		t.Fatalf("state: %+v", st)
	}

	rec = get(t, mux, "/admin/v1/commands?company=1", "[::1]:5000")
	var out struct {
		OK       bool                 `json:"ok"`
		Commands []indexdb.CommandRow `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || !out.OK {
		t.Fatalf("commands: %d %s", rec.Code, rec.Body.String())
	}
	if len(out.Commands) != 1 || out.Commands[0].RequestID != "a1" || !out.Commands[0].Charged {
		t.Fatalf("commands: %+v", out.Commands)
	}

	if rec := get(t, mux, "/admin/v1/commands?limit=0", "127.0.0.1:1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}
}

func TestMux_AdminDisabled(t *testing.T) {
	d, _ := testDeps(t, false)
	if rec := get(t, newMux(d), "/admin/v1/state", "127.0.0.1:1"); rec.Code != http.StatusNotFound {
		t.Fatalf("admin should be unrouted: %d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:8080":     true,
		"10.1.2.3:8080":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v", in, got)
		}
	}
}
