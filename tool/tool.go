package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/conductor/pkg/stdx"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// ErrHumanInputUnsupported is returned by Call.AskHuman when the runtime
// executing the tool cannot suspend for human input.
var ErrHumanInputUnsupported = errors.New("tool human input is not supported in this context")

// HumanFunc suspends the calling executor until a human answers the request
// carrying payload. It returns the human's response payload.
type HumanFunc func(ctx context.Context, payload any) (any, error)

// Call identifies the tool call an executor is running for.
type Call struct {
	ToolCallID string
	ToolName   string
	Human      HumanFunc
}

// AskHuman requests human input for this call and blocks until it is provided,
// superseded or aborted.
func (c Call) AskHuman(ctx context.Context, payload any) (any, error) {
	if c.Human == nil {
		return nil, ErrHumanInputUnsupported
	}
	return c.Human(ctx, payload)
}

// ExecuteFunc runs a tool with its complete, parsed arguments.
// The returned value becomes the result of the tool call; returning a Response
// controls the error flag and artifact as well. The context is cancelled when
// the coordinator aborts, executors are expected to observe it.
type ExecuteFunc func(ctx context.Context, args gjson.Result, call Call) (any, error)

// StreamFunc observes a tool call while its arguments are still streaming in.
// It is started when the call is first seen and must return once it is done
// with the reader.
type StreamFunc func(ctx context.Context, reader ArgsReader, call Call)

// ArgsReader gives streaming tools access to a tool call as it progresses.
type ArgsReader interface {
	// Next blocks until the next argument text delta is available.
	// It returns io.EOF once the argument stream is closed.
	Next(ctx context.Context) (string, error)
	// Args blocks until the argument stream is closed and returns the parsed arguments.
	Args(ctx context.Context) (gjson.Result, error)
	// Response blocks until the call has a response.
	Response(ctx context.Context) (Response, error)
}

// Tool is an action the host can perform on behalf of the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments. When set, arguments are
	// validated before Execute is invoked.
	Parameters *jsonschema.Schema
	// Execute runs the tool. A tool without an executor is resolved by the host.
	Execute ExecuteFunc
	// StreamCall, when set, is started as soon as a call to this tool appears.
	StreamCall StreamFunc
	// OnValidationError replaces Execute when the arguments fail validation.
	OnValidationError ExecuteFunc
}

// Option modifies a tool definition.
type Option = opts.Option[Tool]

// Name sets the name the model uses to call the tool.
var Name = opts.ForName[Tool, string]("Name")

// Description sets the human-readable description of the tool.
var Description = opts.ForName[Tool, string]("Description")

// Parameters sets the argument schema of the tool.
func Parameters(schema *jsonschema.Schema) Option {
	return opts.Type[Tool](func(t *Tool) error {
		t.Parameters = schema
		return nil
	})
}

// Streaming registers a function that observes the call while arguments stream in.
func Streaming(fn StreamFunc) Option {
	return opts.Type[Tool](func(t *Tool) error {
		t.StreamCall = fn
		return nil
	})
}

// OnValidationError sets the executor used when arguments do not match the schema.
func OnValidationError(fn ExecuteFunc) Option {
	return opts.Type[Tool](func(t *Tool) error {
		t.OnValidationError = fn
		return nil
	})
}

// New creates a tool backed by execute. A name is required.
// A nil execute is allowed and yields a tool the host resolves manually.
func New(execute ExecuteFunc, options ...Option) (Tool, error) {
	var def Tool
	if err := opts.Apply(&def, options); err != nil {
		return Tool{}, err
	}
	if def.Name == "" {
		return Tool{}, fmt.Errorf("tool name is required")
	}
	def.Execute = execute
	return def, nil
}

// Must is like New but panics when the definition is invalid.
func Must(execute ExecuteFunc, options ...Option) Tool {
	return stdx.Must1(New(execute, options...))
}
