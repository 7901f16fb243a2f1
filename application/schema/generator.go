// Package schema generates JSON schemas describing plugin arguments.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// GenerateSchema creates a JSON schema (Draft 2020-12) for an arguments
// struct. Property names follow the same rules config.Bind uses: the `arg`
// tag, else the lower-cased field name. Only fields tagged
// `jsonschema:"required"` are required, since every plugin argument can
// be omitted on the QEMU command line.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		FieldNameTag:               "arg",
		KeyNamer:                   strings.ToLower,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
