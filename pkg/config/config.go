// Package config loads gaea-mcp settings from a TOML file and the
// environment.
//
// The file lives at $XDG_CONFIG_HOME/gaea-mcp/config.toml (falling back to
// ~/.config/gaea-mcp/config.toml). A missing file at the default location is
// not an error: every setting has a usable default. Environment variables
// override file values:
//
//	GAEA_SWARM_PATH         path to the Gaea.Swarm executable
//	GAEA_MCP_BUILD_TIMEOUT  build timeout, e.g. "20m"
//	GAEA_MCP_REDIS_ADDR     redis address; selects the redis lock backend
//	GAEA_MCP_ADDR           listen address of the HTTP transport
//
// Example file:
//
//	swarm_path = 'C:\Program Files\QuadSpinner\Gaea 2\Gaea.Swarm.exe'
//	build_timeout = "30m"
//
//	[lock]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "2m"
//
//	[server]
//	addr = ":8765"
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

const appName = "gaea-mcp"

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Environment variables read by [Load].
const (
	EnvSwarmPath    = "GAEA_SWARM_PATH"
	EnvBuildTimeout = "GAEA_MCP_BUILD_TIMEOUT"
	EnvRedisAddr    = "GAEA_MCP_REDIS_ADDR"
	EnvAddr         = "GAEA_MCP_ADDR"
)

// Duration is a time.Duration written as a string ("90s", "5m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all settings.
type Config struct {
	// SwarmPath is the renderer executable. Empty means auto-detect.
	SwarmPath string `toml:"swarm_path"`
	// BuildTimeout bounds one renderer run.
	BuildTimeout Duration `toml:"build_timeout"`

	Lock   LockConfig   `toml:"lock"`
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
}

// LockConfig selects how edits to one project file are serialized.
type LockConfig struct {
	Backend   string   `toml:"backend"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	Prefix    string   `toml:"prefix"`
	TTL       Duration `toml:"ttl"`
	Wait      Duration `toml:"wait"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// CacheConfig configures the rendered graph cache.
type CacheConfig struct {
	Disabled bool     `toml:"disabled"`
	Dir      string   `toml:"dir"`
	TTL      Duration `toml:"ttl"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BuildTimeout: Duration{30 * time.Minute},
		Lock: LockConfig{
			Backend: LockMemory,
			Prefix:  "gaea-mcp:lock:",
			TTL:     Duration{2 * time.Minute},
			Wait:    Duration{30 * time.Second},
		},
		Server: ServerConfig{Addr: "127.0.0.1:8765"},
		Cache:  CacheConfig{TTL: Duration{7 * 24 * time.Hour}},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty, and applies environment overrides. An explicitly named file must
// exist.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			p = ""
		}
		path = p
	}

	cfg := Default()
	if path != "" {
		err := cfg.readFile(path)
		if err != nil && (explicit || !gerrors.Is(err, gerrors.ErrCodeFileNotFound)) {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gerrors.Wrap(gerrors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "read config %s", path)
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return gerrors.New(gerrors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSwarmPath); ok && v != "" {
		c.SwarmPath = v
	}
	if v, ok := lookup(EnvBuildTimeout); ok && v != "" {
		if err := c.BuildTimeout.UnmarshalText([]byte(v)); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "%s", EnvBuildTimeout)
		}
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Lock.Backend = LockRedis
		c.Lock.RedisAddr = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case LockMemory:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "lock backend %q needs redis_addr", LockRedis)
		}
	default:
		return gerrors.New(gerrors.ErrCodeInvalidInput, "unknown lock backend %q", c.Lock.Backend)
	}
	if c.BuildTimeout.Duration < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "build_timeout cannot be negative")
	}
	if c.Lock.TTL.Duration <= 0 {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "lock ttl must be positive")
	}
	return nil
}
