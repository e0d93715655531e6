package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the resource name the schema is compiled under.
const SchemaID = "arena-config.schema.json"

// Schema reflects the JSON schema of Config. Fields are optional; the
// constraints come from jsonschema struct tags.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(new(Config))
	schema.Title = "Arena Server Configuration"
	schema.Description = "Validates the effective configuration after file and environment overrides."
	return schema
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
