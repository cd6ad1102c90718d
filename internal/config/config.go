package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Persistence PersistenceConfig `toml:"persistence"`
	Filter      FilterConfig      `toml:"filter"`
	Board       BoardConfig       `toml:"board"`
	Export      ExportConfig      `toml:"export"`
	Logging     LoggingConfig     `toml:"logging"`
	Server      ServerConfig      `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type PersistenceConfig struct {
	// Debounce is a Go duration string such as "750ms".
	Debounce string `toml:"debounce"`
}

type FilterConfig struct {
	Mode string `toml:"mode"` // all | any
}

type BoardConfig struct {
	DefaultPhases []string `toml:"default_phases"`
}

type ExportConfig struct {
	Dir           string `toml:"dir"`
	IncludePhases bool   `toml:"include_phases"`
	Format        string `toml:"format"` // json | yaml
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Persistence: PersistenceConfig{
			Debounce: "750ms",
		},
		Filter: FilterConfig{
			Mode: "all",
		},
		Board: BoardConfig{
			DefaultPhases: []string{"Backlog", "MVP", "Next", "Later"},
		},
		Export: ExportConfig{
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".brainboard/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := c.DebounceDuration(); err != nil {
		return err
	}

	switch strings.TrimSpace(strings.ToLower(c.Filter.Mode)) {
	case "", "all", "any":
	default:
		return fmt.Errorf("invalid filter.mode: %q", c.Filter.Mode)
	}

	seenPhase := make([]string, 0, len(c.Board.DefaultPhases))
	for idx, phase := range c.Board.DefaultPhases {
		phase = strings.TrimSpace(phase)
		if phase == "" {
			return fmt.Errorf("board.default_phases[%d] is empty", idx)
		}
		if slices.Contains(seenPhase, phase) {
			return fmt.Errorf("board.default_phases[%d] is duplicated: %s", idx, phase)
		}
		seenPhase = append(seenPhase, phase)
	}

	switch strings.TrimSpace(strings.ToLower(c.Export.Format)) {
	case "", "json", "yaml", "yml":
	default:
		return fmt.Errorf("invalid export.format: %q", c.Export.Format)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	if strings.TrimSpace(c.Server.APIEndpoint) != "" && strings.TrimSpace(c.Server.APIEndpoint) == strings.TrimSpace(c.Server.MCPEndpoint) {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}

	return nil
}

// DebounceDuration parses persistence.debounce. Empty means 750ms.
func (c Config) DebounceDuration() (time.Duration, error) {
	raw := strings.TrimSpace(c.Persistence.Debounce)
	if raw == "" {
		return 750 * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid persistence.debounce %q: %w", c.Persistence.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("persistence.debounce must be >= 0: %q", c.Persistence.Debounce)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
