package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema creates a JSON schema from a Go type using struct tags.
//
// Supported tags:
//   - json:"name" - Parameter name
//   - json:",omitempty" - Optional parameter
//   - jsonschema:"required" - Explicitly mark as required
//   - jsonschema:"description=..." - Parameter description
//   - jsonschema:"enum=val1|val2" - Allowed values
//
// Example:
//
//	type Args struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	}
func GenerateSchema[T any]() (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		// Use jsonschema tags to determine required fields
		RequiredFromJSONSchemaTags: true,

		// Inline everything instead of emitting $ref definitions
		ExpandedStruct: true,

		// Don't add $schema and $id
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	return schemaMap, nil
}

// MustGenerateSchema is GenerateSchema for statically known types where
// reflection cannot fail at runtime.
func MustGenerateSchema[T any]() map[string]interface{} {
	schema, err := GenerateSchema[T]()
	if err != nil {
		panic(fmt.Sprintf("schema generation failed: %v", err))
	}
	return schema
}

// schemaToMap converts a jsonschema.Schema to map[string]interface{}.
func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result, nil
}
