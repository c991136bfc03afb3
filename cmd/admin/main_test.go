package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	persistlog "stationworks.ai/internal/persistence/log"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
)

func writeAudit(t *testing.T, entries ...game.AuditEntry) string {
	t.Helper()
	dataDir := t.TempDir()
	l := persistlog.NewAuditLogger(dataDir)
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return persistlog.AuditDir(dataDir)
}

func sampleEntries() []game.AuditEntry {
	return []game.AuditEntry{
		{Tick: 1, ID: "a", Company: 1, OK: true, Cost: 240},
		{Tick: 2, ID: "b", Company: 1, OK: true, Cost: 240, Charged: true},
		{Tick: 3, ID: "c", Company: 2, ErrorText: "no_track_present"},
		{Tick: 4, ID: "d", Company: 1, ErrorText: "station_in_the_way"},
		{Tick: 5, ID: "e", Company: 1, ErrorText: "station_in_the_way"},
	}
}

func TestScanAudit_Filters(t *testing.T) {
	dir := writeAudit(t, sampleEntries()...)
	one := company.ID(1)

	cases := []struct {
		name string
		f    auditFilter
		want []string
	}{
		{"all", auditFilter{}, []string{"a", "b", "c", "d", "e"}},
		{"company", auditFilter{Company: &one}, []string{"a", "b", "d", "e"}},
		{"ticks", auditFilter{SinceTick: 2, ToTick: 4}, []string{"b", "c", "d"}},
		{"failed", auditFilter{FailedOnly: true}, []string{"c", "d", "e"}},
		{"limit", auditFilter{Company: &one, Limit: 2}, []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			err := scanAudit(dir, tc.f, func(e game.AuditEntry) error {
				got = append(got, e.ID)
				return nil
			})
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScanAudit_CallbackError(t *testing.T) {
	dir := writeAudit(t, sampleEntries()...)
	boom := errors.New("boom")
	err := scanAudit(dir, auditFilter{}, func(game.AuditEntry) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestAuditSummary(t *testing.T) {
	s := newAuditSummary()
	for _, e := range sampleEntries() {
		s.add(e)
	}
	var b strings.Builder
	s.print(&b)
	want := strings.Join([]string{
		"company=1 commands=4 applied=1 failed=2 spent=240",
		"  station_in_the_way 2",
		"company=2 commands=1 applied=0 failed=1 spent=0",
		"  no_track_present 1",
		"",
	}, "\n")
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}
}
