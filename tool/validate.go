package tool

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Issue is a single schema violation found in tool arguments.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in one set of arguments.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	b, err := json.Marshal(e.Issues)
	if err != nil {
		return "Function parameter validation failed."
	}
	return "Function parameter validation failed. " + string(b)
}

// Validate checks args against schema. Violations are reported as a
// *ValidationError, a schema that cannot be compiled as a plain error.
func Validate(schema *jsonschema.Schema, args gjson.Result) error {
	if schema == nil {
		return nil
	}

	doc := args.Raw
	if doc == "" {
		doc = "null"
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode parameter schema: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(b), gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate arguments: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		issues = append(issues, Issue{Path: issuePath(re), Message: re.Description()})
	}
	return &ValidationError{Issues: issues}
}

// issuePath is the dotted path of the offending value, empty for the root.
// Missing required properties point at the property itself.
func issuePath(re gojsonschema.ResultError) string {
	var path string
	if ctx := re.Context(); ctx != nil {
		path = strings.TrimPrefix(strings.TrimPrefix(ctx.String(), "(root)"), ".")
	}
	if re.Type() != "required" {
		return path
	}
	prop, ok := re.Details()["property"].(string)
	if !ok {
		return path
	}
	if path == "" {
		return prop
	}
	return path + "." + prop
}
