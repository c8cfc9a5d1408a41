package config

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

var durationType = reflect.TypeOf(time.Duration(0))

// durationPattern matches Go duration strings such as "1500ms" or "1h30m".
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// JSONSchema returns the JSON Schema of the config file, for editor
// completion and `folio config schema`.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag:   "yaml",
			DoNotReference: true,
			Mapper: func(t reflect.Type) *jsonschema.Schema {
				if t == durationType {
					return &jsonschema.Schema{
						Type:        "string",
						Pattern:     durationPattern,
						Description: "Go duration, e.g. 1500ms or 24h",
					}
				}
				return nil
			},
		}
		schema := r.Reflect(&Config{})
		schema.Title = "folio configuration"
		schema.Description = "Configuration for the folio chat, rating and indexing services."
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}
