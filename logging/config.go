package logging

import "time"

// Sink names accepted in Config.EnabledSinks.
const (
	SinkConsole = "console"
	SinkJSONL   = "jsonl"
	SinkSQLite  = "sqlite"
	SinkMemory  = "memory"
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSONL            JSONLConfig
	SQLite           SQLiteConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// JSONLConfig controls the compressed event journal.
type JSONLConfig struct {
	Dir    string
	Prefix string
}

// SQLiteConfig controls the audit index.
type SQLiteConfig struct {
	Path string
}

type ConsoleConfig struct {
	Development bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSONL: JSONLConfig{
			Dir:    "data/events",
			Prefix: "events",
		},
		SQLite: SQLiteConfig{
			Path: "data/audit.db",
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
