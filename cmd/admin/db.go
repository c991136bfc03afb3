package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stationworks.ai/internal/persistence/indexdb"
	"stationworks.ai/internal/sim/company"
)

// dbCmd reads the sqlite index directly, so it works while the server is down.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/stations.sqlite)")
	companyID := fs.Int("company", -1, "company filter (commands)")
	failedOnly := fs.Bool("failed", false, "only failed commands (commands)")
	limit := fs.Int("limit", 20, "result limit (commands)")
	_ = fs.Parse(args)

	q := "commands"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexdb.DefaultPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out any
	switch q {
	case "commands":
		cq := indexdb.Query{AllCompanies: true, FailedOnly: *failedOnly, Limit: *limit}
		if *companyID >= 0 {
			cq.Company = company.ID(*companyID)
			cq.AllCompanies = false
		}
		out, err = indexdb.QueryCommands(ctx, db, cq)
	case "catalogs":
		out, err = indexdb.QueryCatalogs(ctx, db)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want commands|catalogs)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printJSONLines(out)
}

func printJSONLines(v any) {
	enc := json.NewEncoder(os.Stdout)
	switch rows := v.(type) {
	case []indexdb.CommandRow:
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case []indexdb.CatalogRow:
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	default:
		_ = enc.Encode(v)
	}
}
