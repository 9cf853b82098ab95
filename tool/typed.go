package tool

import (
	"context"
	"fmt"

	"github.com/casualjim/conductor/pkg/stdx"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// TypedFunc is an executor that receives its arguments decoded into T.
type TypedFunc[T, R any] func(ctx context.Context, args T, call Call) (R, error)

// Typed creates a tool whose arguments are decoded into T before fn runs.
// The parameter schema is reflected from T unless the Parameters option is given.
func Typed[T, R any](fn TypedFunc[T, R], options ...Option) (Tool, error) {
	def, err := New(typedExecute(fn), options...)
	if err != nil {
		return Tool{}, err
	}
	if def.Parameters == nil {
		def.Parameters = Schema[T]()
	}
	return def, nil
}

// MustTyped is like Typed but panics when the definition is invalid.
func MustTyped[T, R any](fn TypedFunc[T, R], options ...Option) Tool {
	return stdx.Must1(Typed(fn, options...))
}

func typedExecute[T, R any](fn TypedFunc[T, R]) ExecuteFunc {
	return func(ctx context.Context, args gjson.Result, call Call) (any, error) {
		in := stdx.Zero[T]()
		if args.Exists() && args.Raw != "" {
			if err := json.Unmarshal([]byte(args.Raw), &in); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", call.ToolName, err)
			}
		}
		return fn(ctx, in, call)
	}
}
