package config

import (
	"flag"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseServer_Defaults(t *testing.T) {
	cfg, err := ParseServer(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Server{
		Addr:           ":8080",
		DataDir:        "./data",
		AdminHTTP:      true,
		SubmitTimeout:  5 * time.Second,
		ShutdownWindow: 5 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults (-want +got):\n%s", diff)
	}
}

func TestParseServer_EnvThenFlags(t *testing.T) {
	t.Setenv("STN_ADDR", "127.0.0.1:9000")
	t.Setenv("STN_CONFIGS", "/etc/stations")
	t.Setenv("STN_DISABLE_DB", "true")
	t.Setenv("STN_SUBMIT_TIMEOUT", "250ms")

	cfg, err := ParseServer(newFlagSet(), []string{"-addr", ":7000", "-data", "/var/lib/stations"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.DataDir != "/var/lib/stations" {
		t.Fatalf("flags should win: %+v", cfg)
	}
	if !cfg.DisableIndex || cfg.SubmitTimeout != 250*time.Millisecond {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.TuningPath != filepath.Join("/etc/stations", "tuning.yaml") {
		t.Fatalf("tuning path: %q", cfg.TuningPath)
	}
}

func TestParseServer_Errors(t *testing.T) {
	t.Setenv("STN_SUBMIT_TIMEOUT", "soon")
	_, err := ParseServer(newFlagSet(), nil)
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}

	t.Setenv("STN_SUBMIT_TIMEOUT", "1s")
	if _, err := ParseServer(newFlagSet(), []string{"-submit_timeout", "0s"}); err == nil {
		t.Fatalf("expected an error for a zero timeout")
	}
	if _, err := ParseServer(newFlagSet(), []string{"-nope"}); err == nil {
		t.Fatalf("expected an error for an unknown flag")
	}
}
