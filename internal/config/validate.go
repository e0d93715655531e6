package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"fightarena/server/internal/net/proto"
	"fightarena/server/logging"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := SchemaJSON()
		if err != nil {
			compileErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(SchemaID, bytes.NewReader(raw)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(SchemaID)
	})
	return compiled, compileErr
}

// Validate checks the configuration against the reflected schema, then the
// cross-field rules the schema cannot express.
func (c Config) Validate() error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := schema.Validate(dropNulls(doc)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := proto.CodecFor(c.Server.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case logging.SinkConsole, logging.SinkJSONL, logging.SinkSQLite, logging.SinkMemory:
		default:
			return fmt.Errorf("%w: unknown sink %q", ErrInvalid, sink)
		}
	}
	if c.World.Player.FireRate < 0 {
		return fmt.Errorf("%w: negative fire rate", ErrInvalid)
	}
	for _, p := range c.World.Spawner.Points {
		if p.Radius < 0 {
			return fmt.Errorf("%w: spawn point %q has negative radius", ErrInvalid, p.Name)
		}
	}
	return nil
}

// dropNulls removes nil values so unset slices and maps do not trip type
// checks.
func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = dropNulls(val)
		}
		return t
	default:
		return v
	}
}
