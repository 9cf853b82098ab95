package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/conductor/internal/toolstream"
	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/tool"
	"github.com/tidwall/gjson"
)

func (c *Coordinator) lookup(name string) (tool.Tool, bool) {
	if c.tools == nil {
		return tool.Tool{}, false
	}
	return c.tools.Lookup(name)
}

// dispatch starts the executor of a call whose arguments just completed.
// Calls without an executor stay pending until the host supplies a result.
// Invoked by the store while a walk holds c.mu.
func (c *Coordinator) dispatch(rec *toolstream.Controller) {
	t, ok := c.lookup(rec.ToolName())
	if !ok || t.Execute == nil {
		c.log.Debug("no executor for tool call", slogx.ToolCall(rec.ToolCallID(), rec.ToolName()))
		return
	}

	gen := c.gen
	c.executing++
	c.running[rec.ToolCallID()] = gen
	c.setStatus(rec.ToolCallID(), rec.ToolName(), messages.Executing{})

	c.tasks.Add(1)
	go c.execute(gen, rec, t)
}

// stream starts the streaming observer of a newly created call.
// Invoked with c.mu held.
func (c *Coordinator) stream(rec *toolstream.Controller) {
	t, ok := c.lookup(rec.ToolName())
	if !ok || t.StreamCall == nil {
		return
	}

	ctx := c.gen.ctx
	call := c.call(rec)
	reader := rec.Reader()
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Warn("streaming tool panicked", slogx.ToolCall(call.ToolCallID, call.ToolName), slog.Any("panic", r))
			}
		}()
		t.StreamCall(ctx, reader, call)
	}()
}

func (c *Coordinator) call(rec *toolstream.Controller) tool.Call {
	return tool.Call{
		ToolCallID: rec.ToolCallID(),
		ToolName:   rec.ToolName(),
		Human:      c.human(rec.ToolCallID(), rec.ToolName()),
	}
}

func (c *Coordinator) execute(gen *generation, rec *toolstream.Controller, t tool.Tool) {
	defer c.tasks.Done()

	resp := c.run(gen.ctx, rec, t)
	c.emit(rec, resp)

	c.mu.Lock()
	c.settle(gen, rec.ToolCallID(), rec.ToolName())
	c.mu.Unlock()
	c.flush()
}

// run executes the tool and races it against cancellation of the generation.
// An executor that has not returned within the grace period after cancellation
// is abandoned and the call settles as cancelled.
func (c *Coordinator) run(ctx context.Context, rec *toolstream.Controller, t tool.Tool) tool.Response {
	if ctx.Err() != nil {
		return tool.Cancelled()
	}

	args := rec.Args()
	exec := t.Execute
	if err := tool.Validate(t.Parameters, args); err != nil {
		if t.OnValidationError == nil {
			return tool.ErrorResponse(err)
		}
		exec = t.OnValidationError
	}

	call := c.call(rec)
	done := make(chan tool.Response, 1)
	go func() {
		done <- c.invoke(ctx, exec, args, call)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
	}

	grace := time.NewTimer(c.grace)
	defer grace.Stop()
	select {
	case resp := <-done:
		return resp
	case <-grace.C:
		c.log.Debug("tool executor did not return after abort", slogx.ToolCall(call.ToolCallID, call.ToolName))
		return tool.Cancelled()
	}
}

func (c *Coordinator) invoke(ctx context.Context, exec tool.ExecuteFunc, args gjson.Result, call tool.Call) (resp tool.Response) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tool %s panicked: %v", call.ToolName, r)
			c.log.Warn("tool executor failed", slogx.ToolCall(call.ToolCallID, call.ToolName), slogx.Error(err))
			resp = tool.ErrorResponse(err)
		}
	}()

	v, err := exec(ctx, args, call)
	if err != nil {
		c.log.Warn("tool executor failed", slogx.ToolCall(call.ToolCallID, call.ToolName), slogx.Error(err))
		return tool.ErrorResponse(err)
	}
	return tool.ToResponse(v)
}
