// Package config reads process settings from the environment first and
// lets command-line flags override them.
package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

type Server struct {
	Addr       string
	ConfigDir  string
	DataDir    string
	TuningPath string

	DisableIndex   bool
	DisableAudit   bool
	AdminHTTP      bool
	SubmitTimeout  time.Duration
	ShutdownWindow time.Duration
}

type serverEnv struct {
	Addr           string        `env:"STN_ADDR" envDefault:":8080"`
	ConfigDir      string        `env:"STN_CONFIGS"`
	DataDir        string        `env:"STN_DATA" envDefault:"./data"`
	TuningPath     string        `env:"STN_TUNING"`
	DisableIndex   bool          `env:"STN_DISABLE_DB"`
	DisableAudit   bool          `env:"STN_DISABLE_AUDIT"`
	AdminHTTP      bool          `env:"STN_ENABLE_ADMIN_HTTP" envDefault:"true"`
	SubmitTimeout  time.Duration `env:"STN_SUBMIT_TIMEOUT" envDefault:"5s"`
	ShutdownWindow time.Duration `env:"STN_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ParseServer builds the server settings. An empty ConfigDir means the
// catalogs compiled into the binary; an empty TuningPath falls back to
// <ConfigDir>/tuning.yaml when ConfigDir is set, else the built-in defaults.
func ParseServer(fs *flag.FlagSet, args []string) (Server, error) {
	var e serverEnv
	if err := ParseEnv(&e); err != nil {
		return Server{}, err
	}
	cfg := Server(e)

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address (default: STN_ADDR or :8080)")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "catalog directory (default: STN_CONFIGS or built-in catalogs)")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory for audit logs and the index")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "tuning yaml (default: STN_TUNING or <configs>/tuning.yaml)")
	fs.BoolVar(&cfg.DisableIndex, "disable_db", cfg.DisableIndex, "disable the sqlite command index")
	fs.BoolVar(&cfg.DisableAudit, "disable_audit", cfg.DisableAudit, "disable the zstd audit log")
	fs.BoolVar(&cfg.AdminHTTP, "admin_http", cfg.AdminHTTP, "serve /admin/v1/* on loopback")
	fs.DurationVar(&cfg.SubmitTimeout, "submit_timeout", cfg.SubmitTimeout, "per-command deadline")
	fs.DurationVar(&cfg.ShutdownWindow, "shutdown_timeout", cfg.ShutdownWindow, "graceful shutdown window")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	if cfg.TuningPath == "" && cfg.ConfigDir != "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	if cfg.DataDir == "" {
		return Server{}, fmt.Errorf("data directory must not be empty")
	}
	if cfg.SubmitTimeout <= 0 {
		return Server{}, fmt.Errorf("submit timeout must be positive, got %s", cfg.SubmitTimeout)
	}
	return cfg, nil
}
