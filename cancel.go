package conductor

import (
	"context"
	"log/slog"

	"github.com/casualjim/conductor/pkg/uuidx"
	"github.com/casualjim/conductor/pubsub"
	"github.com/google/uuid"
)

// generation is a cancellation epoch. Executors started in a generation keep
// its context after it was replaced.
type generation struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newGeneration(parent context.Context) *generation {
	ctx, cancel := context.WithCancelCause(parent)
	return &generation{id: uuidx.New(), ctx: ctx, cancel: cancel}
}

// Settled is a barrier that is released once no tool execution is in flight.
type Settled struct {
	done <-chan struct{}
}

// Done is closed when the barrier is released.
func (s Settled) Done() <-chan struct{} {
	if s.done == nil {
		return closedChan
	}
	return s.done
}

// Wait blocks until the barrier is released or ctx is done.
func (s Settled) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Abort rejects all pending human input requests and cancels the context of
// every running executor with cause ErrAborted. Cancellation is cooperative:
// executors observe their context, and whichever has not returned shortly
// after settles with a cancelled result. The returned barrier is released
// when no execution is in flight.
func (c *Coordinator) Abort() Settled {
	c.mu.Lock()
	c.rejectPending(ErrAborted)

	old := c.gen
	c.gen = newGeneration(c.base)

	done := make(chan struct{})
	if c.executing == 0 {
		close(done)
	} else {
		c.waiters = append(c.waiters, done)
	}
	executing := c.executing
	c.queue(pubsub.Aborted{Coordinator: c.id, Generation: old.id, Executing: executing, Timestamp: now()})
	c.mu.Unlock()

	old.cancel(ErrAborted)
	c.log.Info("aborted tool executions", slog.String("generation", old.id.String()), slog.Int("executing", executing))
	c.flush()
	return Settled{done: done}
}

// Reset aborts like Abort and treats the next snapshots as initial load again,
// so calls they contain are never executed. Use it when the coordinator
// switches to another conversation.
func (c *Coordinator) Reset() {
	c.Abort()

	c.mu.Lock()
	c.initial = true
	c.mu.Unlock()
}

// settle ends an execution started in gen. A human input request the
// execution left behind is rejected. Called with c.mu held.
func (c *Coordinator) settle(gen *generation, toolCallID, toolName string) {
	c.executing--
	if c.running[toolCallID] == gen {
		delete(c.running, toolCallID)
		if req, ok := c.pending[toolCallID]; ok {
			delete(c.pending, toolCallID)
			req.reject(ErrNotExecuting)
		}
		c.clearStatus(toolCallID, toolName)
	}
	if c.executing > 0 {
		return
	}
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}
