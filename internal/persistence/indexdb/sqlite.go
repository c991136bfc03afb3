package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable copy of the audit stream. The zstd audit log
// stays the source of truth; commands are dropped here when the writer
// falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTotal atomic.Uint64
	failTotal atomic.Uint64
}

type reqKind int

const (
	reqCommand reqKind = iota + 1
	reqSync
)

type req struct {
	kind  reqKind
	entry game.AuditEntry
	done  chan struct{}
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
	FailTotal     uint64
}

func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "stations.sqlite")
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			company INTEGER NOT NULL,
			command TEXT NOT NULL,
			flags TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			charged INTEGER NOT NULL,
			station INTEGER NOT NULL,
			error_text TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_company_tick ON commands(company, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_pos ON commands(x, y);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteAudit(entry game.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCommand, entry: entry}:
	default:
		s.dropTotal.Add(1)
	}
	return nil
}

// Sync waits until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("indexdb: closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropTotal.Load(),
		FailTotal:     s.failTotal.Load(),
	}
}

// UpsertCatalogs stores the catalogs and effective tuning the server runs with.
func (s *SQLiteIndex) UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type row struct {
		name   string
		digest string
		v      any
	}
	rows := []row{
		{"track_objects", cats.TrackObjects.Digest, sortedValues(cats.TrackObjects.ByID)},
		{"station_objects", cats.StationObjects.Digest, sortedValues(cats.StationObjects.ByID)},
		{"track_pieces", cats.TrackPieces.Digest, sortedValues(cats.TrackPieces.ByID)},
		{"tuning", tune.Digest(), tune},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		b, err := json.Marshal(r.v)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		if _, err := stmt.ExecContext(ctx, r.name, r.digest, string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func sortedValues[V any](m map[uint8]V) []V {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	out := make([]V, 0, len(m))
	for _, k := range keys {
		out = append(out, m[uint8(k)])
	}
	return out
}

type CatalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func (s *SQLiteIndex) Catalogs(ctx context.Context) ([]CatalogRow, error) {
	return QueryCatalogs(ctx, s.db)
}

func QueryCatalogs(ctx context.Context, db *sql.DB) ([]CatalogRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogRow
	for rows.Next() {
		var r CatalogRow
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	insert, err := s.db.Prepare(`INSERT INTO commands(tick,request_id,company,command,flags,x,y,z,ok,cost,charged,station,error_text,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		// Keep draining so producers never block.
		for r := range s.ch {
			if r.done != nil {
				close(r.done)
			}
		}
		return
	}
	defer insert.Close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failTotal.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.failTotal.Add(1)
				continue
			}
			tx = txx
		}
		e := r.entry
		raw, _ := json.Marshal(e)
		if _, err := tx.Stmt(insert).Exec(
			int64(e.Tick),
			e.ID,
			int(e.Company),
			e.Command,
			strings.Join(e.Flags, "|"),
			e.Request.Pos.X, e.Request.Pos.Y, e.Request.Pos.Z,
			boolInt(e.OK),
			e.Cost,
			boolInt(e.Charged),
			int(e.Station),
			e.ErrorText,
			string(raw),
		); err != nil {
			s.failTotal.Add(1)
			_ = tx.Rollback()
			tx = nil
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type CommandRow struct {
	Seq       int64           `json:"seq"`
	Tick      uint64          `json:"tick"`
	RequestID string          `json:"request_id"`
	Company   company.ID      `json:"company"`
	Command   string          `json:"command"`
	Flags     string          `json:"flags"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Z         int             `json:"z"`
	OK        bool            `json:"ok"`
	Cost      int64           `json:"cost"`
	Charged   bool            `json:"charged"`
	Station   int             `json:"station"`
	ErrorText string          `json:"error_text,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

type Query struct {
	// Company filters by actor unless AllCompanies is set.
	Company      company.ID
	AllCompanies bool
	FailedOnly   bool
	Limit        int
}

// RecentCommands returns the newest commands first.
func (s *SQLiteIndex) RecentCommands(ctx context.Context, q Query) ([]CommandRow, error) {
	return QueryCommands(ctx, s.db, q)
}

// QueryCommands runs against any handle on the index, so tools can open the
// file read-only without starting a writer.
func QueryCommands(ctx context.Context, db *sql.DB, q Query) ([]CommandRow, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	var (
		where []string
		args  []any
	)
	if !q.AllCompanies {
		where = append(where, "company = ?")
		args = append(args, int(q.Company))
	}
	if q.FailedOnly {
		where = append(where, "ok = 0")
	}
	sqlText := `SELECT seq,tick,request_id,company,command,flags,x,y,z,ok,cost,charged,station,error_text,raw_json FROM commands`
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY seq DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandRow
	for rows.Next() {
		var (
			r           CommandRow
			tick        int64
			comp        int
			ok, charged int
			raw         string
		)
		if err := rows.Scan(&r.Seq, &tick, &r.RequestID, &comp, &r.Command, &r.Flags, &r.X, &r.Y, &r.Z, &ok, &r.Cost, &charged, &r.Station, &r.ErrorText, &raw); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Company = company.ID(comp)
		r.OK = ok != 0
		r.Charged = charged != 0
		r.Raw = json.RawMessage(raw)
		out = append(out, r)
	}
	return out, rows.Err()
}
