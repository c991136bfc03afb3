package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stationworks.ai/internal/persistence/indexdb"
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	game.AuditLogger
	Close() error
	UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecentCommands(ctx context.Context, q indexdb.Query) ([]indexdb.CommandRow, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("STN_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexdb.DefaultPath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported STN_INDEX_BACKEND: %s", backend)
	}
}
