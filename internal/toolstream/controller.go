package toolstream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/casualjim/conductor/tool"
	"github.com/tidwall/gjson"
)

var (
	// ErrSinkClosed is returned when argument text is appended to a call whose
	// argument stream is already closed.
	ErrSinkClosed = errors.New("tool call argument stream is closed")
	// ErrEmptyDelta is returned when an empty argument text delta is appended.
	ErrEmptyDelta = errors.New("tool call argument delta is empty")
	// ErrIncompleteArgs is returned by readers when a call was closed before its
	// argument text became complete.
	ErrIncompleteArgs = errors.New("tool call arguments are incomplete")
)

// Controller is the sink of a single tool call.
type Controller struct {
	toolCallID     string
	toolName       string
	onArgsComplete func(*Controller)

	mu           sync.Mutex
	changed      chan struct{}
	argsText     string
	argsComplete bool
	hasResult    bool
	closed       bool
	response     tool.Response
}

func newController(toolCallID, toolName string, onArgsComplete func(*Controller)) *Controller {
	return &Controller{
		toolCallID:     toolCallID,
		toolName:       toolName,
		onArgsComplete: onArgsComplete,
		changed:        make(chan struct{}),
	}
}

func (c *Controller) ToolCallID() string { return c.toolCallID }
func (c *Controller) ToolName() string   { return c.toolName }

// ArgsText returns the argument text received so far.
func (c *Controller) ArgsText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.argsText
}

// ArgsComplete reports whether the argument stream is closed.
func (c *Controller) ArgsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.argsComplete
}

// HasResult reports whether a response has been attached.
func (c *Controller) HasResult() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasResult
}

// Closed reports whether the call has been finalized.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Response returns the attached response, if any.
func (c *Controller) Response() (tool.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response, c.hasResult
}

// Args parses the argument text. The result does not exist when the text is
// not valid JSON.
func (c *Controller) Args() gjson.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return parseArgs(c.argsText)
}

// AppendArgsText appends delta to the argument text.
func (c *Controller) AppendArgsText(delta string) error {
	if delta == "" {
		return fmt.Errorf("tool call %s: %w", c.toolCallID, ErrEmptyDelta)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.argsComplete || c.closed {
		return fmt.Errorf("tool call %s: %w", c.toolCallID, ErrSinkClosed)
	}
	c.argsText += delta
	c.broadcast()
	return nil
}

// CloseArgsText marks the argument stream complete and notifies the store
// callback. Repeated calls are no-ops.
func (c *Controller) CloseArgsText() {
	if !c.completeArgs() {
		return
	}
	if c.onArgsComplete != nil {
		c.onArgsComplete(c)
	}
}

// SetResponse attaches the final response. It closes the argument stream
// without notifying the store callback when the arguments were still open.
// It reports false, leaving the record untouched, when a response was already
// attached or the call is closed.
func (c *Controller) SetResponse(resp tool.Response) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasResult || c.closed {
		return false
	}
	c.response = resp
	c.hasResult = true
	c.argsComplete = true
	c.broadcast()
	return true
}

// Close finalizes the call.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.argsComplete = true
	c.broadcast()
}

func (c *Controller) completeArgs() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.argsComplete || c.closed {
		return false
	}
	c.argsComplete = true
	c.broadcast()
	return true
}

// broadcast wakes every reader waiting on a change. Callers hold c.mu.
func (c *Controller) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func parseArgs(text string) gjson.Result {
	if !gjson.Valid(text) {
		return gjson.Result{}
	}
	return gjson.Parse(text)
}
