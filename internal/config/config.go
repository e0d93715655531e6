// Package config loads the server configuration from YAML or TOML, applies
// .env and ARENA_* environment overrides, and validates the result against
// the schema reflected from Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/observability"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/world"
	"fightarena/server/logging"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ARENA_"

// ErrUnsupportedFormat is returned for config files that are neither YAML nor
// TOML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" toml:"addr"`
	Codec        string        `json:"codec" yaml:"codec" toml:"codec" jsonschema:"enum=json,enum=msgpack"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"write_timeout" toml:"write_timeout" jsonschema:"minimum=0"`
}

type LoggingConfig struct {
	Sinks       []string `json:"sinks" yaml:"sinks" toml:"sinks"`
	Level       string   `json:"level" yaml:"level" toml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	BufferSize  int      `json:"bufferSize" yaml:"buffer_size" toml:"buffer_size" jsonschema:"minimum=1"`
	Development bool     `json:"development" yaml:"development" toml:"development"`
	JSONLDir    string   `json:"jsonlDir" yaml:"jsonl_dir" toml:"jsonl_dir"`
	JSONLPrefix string   `json:"jsonlPrefix" yaml:"jsonl_prefix" toml:"jsonl_prefix"`
	SQLitePath  string   `json:"sqlitePath" yaml:"sqlite_path" toml:"sqlite_path"`
}

// Router converts the section into the event router's configuration.
func (c LoggingConfig) Router() logging.Config {
	cfg := logging.DefaultConfig()
	if len(c.Sinks) > 0 {
		cfg.EnabledSinks = append([]string(nil), c.Sinks...)
	}
	if sev, ok := logging.ParseSeverity(c.Level); ok {
		cfg.MinimumSeverity = sev
	}
	if c.BufferSize > 0 {
		cfg.BufferSize = c.BufferSize
	}
	cfg.Console.Development = c.Development
	if c.JSONLDir != "" {
		cfg.JSONL.Dir = c.JSONLDir
	}
	if c.JSONLPrefix != "" {
		cfg.JSONL.Prefix = c.JSONLPrefix
	}
	if c.SQLitePath != "" {
		cfg.SQLite.Path = c.SQLitePath
	}
	return cfg
}

// Config is the whole process configuration.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server" toml:"server"`
	Loop          sim.LoopConfig       `json:"loop" yaml:"loop" toml:"loop"`
	World         world.Config         `json:"world" yaml:"world" toml:"world"`
	Logging       LoggingConfig        `json:"logging" yaml:"logging" toml:"logging"`
	Observability observability.Config `json:"observability" yaml:"observability" toml:"observability"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Codec:        proto.CodecJSON,
			WriteTimeout: 5 * time.Second,
		},
		Loop:  sim.DefaultLoopConfig(),
		World: world.DefaultConfig(),
		Logging: LoggingConfig{
			Sinks:      []string{logging.SinkConsole},
			Level:      "info",
			BufferSize: 512,
		},
	}
}

// Load reads path on top of the defaults, then applies the environment. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

// ApplyEnv overrides fields from ARENA_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	parseInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err))
				return
			}
			*dst = n
		}
	}
	parseBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := get("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("CODEC"); ok {
		c.Server.Codec = v
	}
	parseInt("TICK_RATE", &c.Loop.TickRate)
	parseInt("PER_ACTOR_LIMIT", &c.Loop.PerActorLimit)
	if v, ok := get("SPAWNER_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSPAWNER_SEED=%q: %w", EnvPrefix, v, err))
		} else {
			c.World.Spawner.Seed = seed
		}
	}
	parseBool("SPAWNER_AUTOSTART", &c.World.Spawner.AutoStart)
	parseBool("START_WITH_CHARGES", &c.World.Player.StartWithCharges)
	if v, ok := get("LOG_SINKS"); ok {
		var sinks []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sinks = append(sinks, s)
			}
		}
		c.Logging.Sinks = sinks
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	parseBool("LOG_DEVELOPMENT", &c.Logging.Development)
	if v, ok := get("SQLITE_PATH"); ok {
		c.Logging.SQLitePath = v
	}
	if v, ok := get("JSONL_DIR"); ok {
		c.Logging.JSONLDir = v
	}
	parseBool("ENABLE_PPROF_TRACE", &c.Observability.EnablePprofTrace)
	return errors.Join(errs...)
}
