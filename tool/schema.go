package tool

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var argsReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Schema reflects the JSON schema of the argument type T.
func Schema[T any]() *jsonschema.Schema {
	var v T
	schema := argsReflector.Reflect(v)
	schema.Version = ""
	return schema
}

// Property describes a single top-level argument of an object schema.
type Property struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Object builds an object schema with the given properties, in order.
func Object(props ...Property) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	for _, p := range props {
		schema.Properties.Set(p.Name, &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		})
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}
