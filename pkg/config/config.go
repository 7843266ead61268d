// Package config loads treesearch settings from a TOML file.
//
// A missing file is not an error: every setting has a default. Command-line
// flags override file values in the CLI.
//
// # Example
//
//	[search]
//	criterion = "concordance"
//	moves = "spr"
//	max_trees = 200
//	timeout = "10m"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "24h"
//
//	[store]
//	backend = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/score"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is the full configuration file.
type Config struct {
	Search SearchConfig `toml:"search"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	Criterion     string          `toml:"criterion"`
	Direction     score.Direction `toml:"direction"`
	Moves         string          `toml:"moves"`
	MaxTrees      int             `toml:"max_trees"`
	Rooted        bool            `toml:"rooted"`
	Timeout       Duration        `toml:"timeout"`
	ProgressEvery int64           `toml:"progress_every"`
}

// CacheConfig selects the score cache backend.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       Duration `toml:"ttl"`
}

// StoreConfig selects the run archive backend.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration that decodes from strings such as "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Criterion:     "concordance",
			Moves:         "spr",
			MaxTrees:      100,
			ProgressEvery: 1000,
		},
		Cache: CacheConfig{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			TTL:       Duration{7 * 24 * time.Hour},
		},
		Store: StoreConfig{
			Backend:       BackendFile,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "treesearch",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/treesearch/config.toml, or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "treesearch", "config.toml")
}

// Load reads path over the defaults. An empty path means [DefaultPath]; a
// missing default file yields the defaults, a missing explicit file fails.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := errors.ValidateMaxTrees(c.Search.MaxTrees); err != nil {
		return err
	}
	if c.Search.Timeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "search timeout must not be negative")
	}
	if c.Search.ProgressEvery < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "progress_every must not be negative")
	}
	switch c.Cache.Backend {
	case BackendNone, BackendFile:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache backend redis needs redis_addr")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid cache backend %q (must be none, file or redis)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendNone, BackendFile:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "store backend mongo needs mongo_uri")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid store backend %q (must be none, file or mongo)", c.Store.Backend)
	}
	return nil
}
