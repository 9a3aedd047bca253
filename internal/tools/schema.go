package tools

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateParams checks params against schema.
func ValidateParams(schema *openapi3.Schema, params map[string]interface{}) error {
	if err := schema.VisitJSON(params); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// schemaToJSONSchema renders an OpenAPI schema as the plain JSON schema map
// tool specs expose.
func schemaToJSONSchema(schema *openapi3.Schema) map[string]interface{} {
	if schema == nil {
		return nil
	}

	result := map[string]interface{}{}
	if schema.Type != nil {
		types := schema.Type.Slice()
		if len(types) == 1 {
			result["type"] = types[0]
		} else if len(types) > 1 {
			result["type"] = types
		}
	}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	if schema.Default != nil {
		result["default"] = schema.Default
	}
	if schema.MinLength > 0 {
		result["minLength"] = schema.MinLength
	}
	if len(schema.Required) > 0 {
		required := append([]string(nil), schema.Required...)
		sort.Strings(required)
		result["required"] = required
	}
	if schema.Items != nil {
		result["items"] = schemaToJSONSchema(schema.Items.Value)
	}
	if schema.Properties != nil {
		props := make(map[string]interface{}, len(schema.Properties))
		for key, propRef := range schema.Properties {
			if propRef != nil {
				props[key] = schemaToJSONSchema(propRef.Value)
			}
		}
		result["properties"] = props
	}
	if schema.AdditionalProperties.Has != nil {
		result["additionalProperties"] = *schema.AdditionalProperties.Has
	}
	return result
}
