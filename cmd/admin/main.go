package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	persistlog "stationworks.ai/internal/persistence/log"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "audit":
		auditCmd(os.Args[2:])
	case "db":
		dbCmd(os.Args[2:])
	case "state":
		stateCmd(os.Args[2:])
	case "commands":
		commandsCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin audit|db|state|commands [flags]")
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dir := fs.String("dir", "", "audit directory (optional; defaults to <data>/audit)")
	companyID := fs.Int("company", -1, "company filter (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	failedOnly := fs.Bool("failed", false, "only failed commands")
	limit := fs.Int("limit", 0, "stop after this many matches (0 = all)")
	summary := fs.Bool("summary", false, "print per-company totals instead of entries")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dir)
	if path == "" {
		path = persistlog.AuditDir(*dataDir)
	}
	f := auditFilter{SinceTick: *sinceTick, ToTick: *toTick, FailedOnly: *failedOnly, Limit: *limit}
	if *companyID >= 0 {
		id := company.ID(*companyID)
		f.Company = &id
	}

	sum := newAuditSummary()
	enc := json.NewEncoder(os.Stdout)
	err := scanAudit(path, f, func(e game.AuditEntry) error {
		if *summary {
			sum.add(e)
			return nil
		}
		return enc.Encode(e)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if *summary {
		sum.print(os.Stdout)
	}
}

type auditFilter struct {
	Company    *company.ID
	SinceTick  uint64
	ToTick     uint64
	FailedOnly bool
	Limit      int
}

func (f auditFilter) match(e game.AuditEntry) bool {
	if f.Company != nil && e.Company != *f.Company {
		return false
	}
	if e.Tick < f.SinceTick || (f.ToTick != 0 && e.Tick > f.ToTick) {
		return false
	}
	return !f.FailedOnly || !e.OK
}

func scanAudit(dir string, f auditFilter, fn func(game.AuditEntry) error) error {
	n := 0
	return persistlog.ReadAudit(dir, func(e game.AuditEntry) error {
		if !f.match(e) {
			return nil
		}
		if err := fn(e); err != nil {
			return err
		}
		n++
		if f.Limit > 0 && n >= f.Limit {
			return persistlog.ErrStop
		}
		return nil
	})
}

type companyTotals struct {
	Commands int
	Applied  int
	Failed   int
	Spent    int64
	Errors   map[string]int
}

type auditSummary struct {
	byCompany map[company.ID]*companyTotals
}

func newAuditSummary() *auditSummary {
	return &auditSummary{byCompany: map[company.ID]*companyTotals{}}
}

func (s *auditSummary) add(e game.AuditEntry) {
	t := s.byCompany[e.Company]
	if t == nil {
		t = &companyTotals{Errors: map[string]int{}}
		s.byCompany[e.Company] = t
	}
	t.Commands++
	if !e.OK {
		t.Failed++
		t.Errors[e.ErrorText]++
		return
	}
	if e.Charged {
		t.Applied++
		t.Spent += e.Cost
	}
}

func (s *auditSummary) print(w io.Writer) {
	ids := make([]company.ID, 0, len(s.byCompany))
	for id := range s.byCompany {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := s.byCompany[id]
		fmt.Fprintf(w, "company=%d commands=%d applied=%d failed=%d spent=%d\n", id, t.Commands, t.Applied, t.Failed, t.Spent)
		codes := make([]string, 0, len(t.Errors))
		for c := range t.Errors {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			fmt.Fprintf(w, "  %s %d\n", c, t.Errors[c])
		}
	}
}
