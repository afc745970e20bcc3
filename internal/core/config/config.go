// Package config loads nqlflow configuration from defaults, an optional
// YAML file and NQL_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aevon-lab/nqlflow/internal/queries"
)

// Config is the top-level configuration plus the loaded query definitions.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Queries  QueriesConfig  `koanf:"queries"`
	Engine   EngineConfig   `koanf:"engine"`
	Output   OutputConfig   `koanf:"output"`

	// Repository is populated by Load from Queries.Dir.
	Repository *queries.MemoryRepository `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type QueriesConfig struct {
	Dir     string `koanf:"dir"`
	Require bool   `koanf:"require"`
}

type EngineConfig struct {
	TickInterval         time.Duration `koanf:"tick_interval"`
	BacklogSize          int           `koanf:"backlog_size"`
	CompileCacheSize     int           `koanf:"compile_cache_size"`
	MaxSlidingWindows    int           `koanf:"max_sliding_windows"`
	CorrelationBufferCap int           `koanf:"correlation_buffer_cap"`
	FlushFloor           time.Duration `koanf:"flush_floor"`
	FlushOnClose         bool          `koanf:"flush_on_close"`
	ShutdownGrace        time.Duration `koanf:"shutdown_grace"`
}

type OutputConfig struct {
	// Path of the JSON lines output; "-" or empty writes to stdout.
	Path        string `koanf:"path"`
	Passthrough bool   `koanf:"passthrough"`
}

var defaults = map[string]interface{}{
	"server.port":                   8080,
	"server.host":                   "0.0.0.0",
	"server.max_body_size_mb":       1,
	"server.mode":                   "release",
	"database.enabled":              false,
	"database.dsn":                  "",
	"database.max_open_conns":       10,
	"database.max_idle_conns":       10,
	"database.auto_migrate":         true,
	"queries.dir":                   "./queries",
	"queries.require":               false,
	"engine.tick_interval":          "50ms",
	"engine.backlog_size":           4096,
	"engine.compile_cache_size":     256,
	"engine.max_sliding_windows":    1000,
	"engine.correlation_buffer_cap": 10000,
	"engine.flush_floor":            "100ms",
	"engine.flush_on_close":         true,
	"engine.shutdown_grace":         "30s",
	"output.path":                   "-",
	"output.passthrough":            true,
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required when database.enabled is set")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	}

	if strings.TrimSpace(c.Queries.Dir) == "" {
		return fmt.Errorf("queries.dir is required")
	}

	e := c.Engine
	if e.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be > 0")
	}
	if e.BacklogSize <= 0 {
		return fmt.Errorf("engine.backlog_size must be > 0")
	}
	if e.CompileCacheSize <= 0 {
		return fmt.Errorf("engine.compile_cache_size must be > 0")
	}
	if e.MaxSlidingWindows <= 0 {
		return fmt.Errorf("engine.max_sliding_windows must be > 0")
	}
	if e.CorrelationBufferCap <= 0 {
		return fmt.Errorf("engine.correlation_buffer_cap must be > 0")
	}
	if e.FlushFloor <= 0 {
		return fmt.Errorf("engine.flush_floor must be > 0")
	}
	if e.ShutdownGrace <= 0 {
		return fmt.Errorf("engine.shutdown_grace must be > 0")
	}
	return nil
}

// Load reads defaults, then configPath if set, then NQL_ environment
// variables (NQL_ENGINE__TICK_INTERVAL sets engine.tick_interval). The result
// is validated and the query definitions are loaded from queries.dir.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %q is not accessible: %w", configPath, err)
		}
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("NQL_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "NQL_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := queries.LoadDir(cfg.Queries.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	cfg.Repository = repo
	if cfg.Queries.Require && len(repo.Runnable()) == 0 {
		return nil, fmt.Errorf("no runnable queries found in %q", cfg.Queries.Dir)
	}
	return &cfg, nil
}
