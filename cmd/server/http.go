package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stationworks.ai/internal/persistence/indexdb"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/transport/ws"
)

type muxDeps struct {
	game      *game.Game
	ws        *ws.Server
	index     runtimeIndex
	adminHTTP bool
	log       *log.Logger
}

func newMux(d muxDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})

	if d.adminHTTP {
		mux.HandleFunc("/admin/v1/state", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			st, err := d.game.RequestState(ctx)
			if err != nil {
				writeJSONStatus(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSONStatus(rw, http.StatusOK, st)
		}))
		mux.HandleFunc("/admin/v1/commands", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.index == nil {
				writeJSONStatus(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "index disabled"})
				return
			}
			q, err := parseCommandQuery(r)
			if err != nil {
				writeJSONStatus(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			rows, err := d.index.RecentCommands(r.Context(), q)
			if err != nil {
				writeJSONStatus(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSONStatus(rw, http.StatusOK, map[string]any{"ok": true, "commands": rows})
		}))
	} else if d.log != nil {
		d.log.Printf("admin endpoints disabled")
	}
	mux.HandleFunc("/v1/ws", d.ws.Handler())
	return mux
}

func writeMetrics(rw http.ResponseWriter, d muxDeps) {
	m := d.game.Metrics()

	fmt.Fprintf(rw, "# HELP stationworks_tick Current game tick.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_tick gauge\n")
	fmt.Fprintf(rw, "stationworks_tick %d\n", m.Tick)

	fmt.Fprintf(rw, "# HELP stationworks_commands_total Placement commands executed.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_commands_total counter\n")
	fmt.Fprintf(rw, "stationworks_commands_total{mode=%q} %d\n", "query", m.Queries)
	fmt.Fprintf(rw, "stationworks_commands_total{mode=%q} %d\n", "apply", m.Applies)

	fmt.Fprintf(rw, "# HELP stationworks_command_failures_total Placement commands that failed.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_command_failures_total counter\n")
	fmt.Fprintf(rw, "stationworks_command_failures_total %d\n", m.Failures)

	fmt.Fprintf(rw, "# HELP stationworks_months_total Inflation steps applied.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_months_total counter\n")
	fmt.Fprintf(rw, "stationworks_months_total %d\n", m.Months)

	fmt.Fprintf(rw, "# HELP stationworks_last_command_ms Duration of the last command in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_last_command_ms gauge\n")
	fmt.Fprintf(rw, "stationworks_last_command_ms %.3f\n", float64(m.LastCommandDur.Microseconds())/1000)

	fmt.Fprintf(rw, "# HELP stationworks_queue_depth Game inbox backlog.\n")
	fmt.Fprintf(rw, "# TYPE stationworks_queue_depth gauge\n")
	fmt.Fprintf(rw, "stationworks_queue_depth %d\n", m.QueueDepth)

	if d.ws != nil {
		fmt.Fprintf(rw, "# HELP stationworks_sessions Connected websocket sessions.\n")
		fmt.Fprintf(rw, "# TYPE stationworks_sessions gauge\n")
		fmt.Fprintf(rw, "stationworks_sessions %d\n", d.ws.ActiveSessions())
	}
	if d.index != nil {
		st := d.index.Stats()
		fmt.Fprintf(rw, "# HELP stationworks_index_dropped_total Audit entries the index dropped.\n")
		fmt.Fprintf(rw, "# TYPE stationworks_index_dropped_total counter\n")
		fmt.Fprintf(rw, "stationworks_index_dropped_total %d\n", st.DropTotal)
		fmt.Fprintf(rw, "# HELP stationworks_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE stationworks_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "stationworks_index_queue_depth %d\n", st.QueueDepth)
	}
}

func parseCommandQuery(r *http.Request) (indexdb.Query, error) {
	q := indexdb.Query{AllCompanies: true, Limit: 50}
	v := r.URL.Query()
	if s := v.Get("company"); s != "" {
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return q, fmt.Errorf("bad company %q", s)
		}
		q.Company = company.ID(n)
		q.AllCompanies = false
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			return q, fmt.Errorf("bad limit %q", s)
		}
		q.Limit = n
	}
	q.FailedOnly = v.Get("failed") == "1" || v.Get("failed") == "true"
	return q, nil
}

func adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSONStatus(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
