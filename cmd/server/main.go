package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stationworks.ai/internal/config"
	persistlog "stationworks.ai/internal/persistence/log"
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/tuning"
	"stationworks.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.ParseServer(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	cats, err := loadCatalogs(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	if cfg.TuningPath != "" {
		tune, err = tuning.Load(cfg.TuningPath)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Fatalf("load tuning: %v", err)
			}
			logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
			tune = tuning.Defaults()
		}
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	g, err := game.New(tune, cats, log.New(os.Stdout, "[game] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("game: %v", err)
	}

	idx, err := openRuntimeIndex(cfg.DataDir, cfg.DisableIndex)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(context.Background(), cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	var audit game.AuditLogger
	if !cfg.DisableAudit {
		auditLog := persistlog.NewAuditLogger(cfg.DataDir)
		defer auditLog.Close()
		audit = auditLog
	}
	g.SetAuditLogger(multiAuditLogger{a: audit, b: idx})

	ctx, cancel := signalContext()
	defer cancel()

	// Runs before the deferred closes: nothing may write audit entries
	// once the sinks shut.
	defer startGame(ctx, g, logger)()

	wsSrv := ws.NewServer(g, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	wsSrv.SubmitTimeout = cfg.SubmitTimeout

	mux := newMux(muxDeps{
		game:      g,
		ws:        wsSrv,
		index:     idx,
		adminHTTP: cfg.AdminHTTP,
		log:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownWindow)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (catalogs=%s tuning=%s)", cfg.Addr, catalogSource(cfg.ConfigDir), tune.Digest()[:12])
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
}

// startGame runs the loop in the background. The returned func stops it and
// waits until Run has returned.
func startGame(ctx context.Context, g *game.Game, logger *log.Logger) func() {
	go func() {
		if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("game stopped: %v", err)
		}
	}()
	return func() {
		g.Stop()
		<-g.Done()
	}
}

func loadCatalogs(dir string) (*catalogs.Catalogs, error) {
	if dir == "" {
		return catalogs.Default()
	}
	return catalogs.Load(dir)
}

func catalogSource(dir string) string {
	if dir == "" {
		return "built-in"
	}
	return dir
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiAuditLogger struct {
	a game.AuditLogger
	b game.AuditLogger
}

// WriteAudit writes to every sink; one failing never skips the other.
func (m multiAuditLogger) WriteAudit(entry game.AuditEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		errB = m.b.WriteAudit(entry)
	}
	return errors.Join(errA, errB)
}
