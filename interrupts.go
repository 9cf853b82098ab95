package conductor

import (
	"context"
	"fmt"

	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/tool"
)

// humanRequest is the continuation of an executor waiting for human input.
// It is settled exactly once, by whoever removes it from the pending map.
type humanRequest struct {
	toolName string
	reply    chan humanReply
}

type humanReply struct {
	payload any
	err     error
}

func newHumanRequest(toolName string) *humanRequest {
	return &humanRequest{toolName: toolName, reply: make(chan humanReply, 1)}
}

func (r *humanRequest) resolve(payload any) { r.reply <- humanReply{payload: payload} }
func (r *humanRequest) reject(err error)    { r.reply <- humanReply{err: err} }

func (c *Coordinator) human(toolCallID, toolName string) tool.HumanFunc {
	return func(ctx context.Context, payload any) (any, error) {
		return c.requestHuman(ctx, toolCallID, toolName, payload)
	}
}

// requestHuman suspends the caller until Resume, a newer request for the same
// call, an abort or ctx ends the wait. Only running calls of the current
// generation may ask.
func (c *Coordinator) requestHuman(ctx context.Context, toolCallID, toolName string, payload any) (any, error) {
	req := newHumanRequest(toolName)

	c.mu.Lock()
	gen, ok := c.running[toolCallID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("tool call %s: %w", toolCallID, ErrNotExecuting)
	}
	if err := gen.ctx.Err(); err != nil {
		c.mu.Unlock()
		return nil, context.Cause(gen.ctx)
	}
	if prev, ok := c.pending[toolCallID]; ok {
		prev.reject(ErrSuperseded)
		c.log.Debug("human input request superseded", slogx.ToolCall(toolCallID, toolName))
	}
	c.pending[toolCallID] = req
	c.setStatus(toolCallID, toolName, messages.Interrupted{Payload: payload})
	c.mu.Unlock()
	c.flush()

	select {
	case reply := <-req.reply:
		return reply.payload, reply.err
	case <-ctx.Done():
	}

	// an abort rejects before it cancels, prefer its reply
	select {
	case reply := <-req.reply:
		return reply.payload, reply.err
	default:
	}

	c.mu.Lock()
	if c.pending[toolCallID] == req {
		delete(c.pending, toolCallID)
	}
	c.mu.Unlock()
	return nil, context.Cause(ctx)
}

// Resume answers the pending human input request of a call and marks the call
// as executing again.
func (c *Coordinator) Resume(toolCallID string, payload any) error {
	c.mu.Lock()
	req, ok := c.pending[toolCallID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("tool call %s: %w", toolCallID, ErrNotWaitingForHumanInput)
	}
	delete(c.pending, toolCallID)
	c.setStatus(toolCallID, req.toolName, messages.Executing{})
	req.resolve(payload)
	c.mu.Unlock()

	c.flush()
	return nil
}

// rejectPending fails every pending human input request. Called with c.mu held.
func (c *Coordinator) rejectPending(err error) {
	for _, req := range c.pending {
		req.reject(err)
	}
	clear(c.pending)
}
