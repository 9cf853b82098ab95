package conductor

import (
	"github.com/casualjim/conductor/internal/toolstream"
	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/pubsub"
	"github.com/casualjim/conductor/tool"
)

// emit hands the response of an executed call to the result handler, unless
// the conversation already carries a result for it. The response is attached
// to the record before c.mu is released, so a later snapshot result is never
// adopted for a call whose result was already handed out.
func (c *Coordinator) emit(rec *toolstream.Controller, resp tool.Response) {
	c.mu.Lock()
	if rec.HasResult() {
		c.mu.Unlock()
		c.log.Debug("dropping result of tool call that already has one", slogx.ToolCall(rec.ToolCallID(), rec.ToolName()))
		return
	}
	rec.SetResponse(resp)
	res := messages.AddToolResult{
		ToolCallID: rec.ToolCallID(),
		ToolName:   rec.ToolName(),
		Result:     resp.Result,
		IsError:    resp.IsError,
		Artifact:   resp.Artifact,
	}
	c.queue(pubsub.ResultAdded{Coordinator: c.id, Result: res, Timestamp: now()})
	c.mu.Unlock()

	if c.onResult != nil {
		c.onResult(c.base, res)
	}
}
