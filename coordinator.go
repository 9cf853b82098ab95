package conductor

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/casualjim/conductor/internal/toolstream"
	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/pkg/uuidx"
	"github.com/casualjim/conductor/pubsub"
	"github.com/casualjim/conductor/tool"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Coordinator drives the tool calls of one conversation.
//
// The host feeds it snapshots of the conversation with Sync. The coordinator
// executes every tool call whose arguments completed after the initial load,
// reports results through the result handler, suspends executors that ask for
// human input until Resume is called, and cancels running executors on Abort.
// All methods are safe for concurrent use.
type Coordinator struct {
	id       uuid.UUID
	log      *slog.Logger
	tools    tool.Source
	onResult ResultHandler
	topic    pubsub.Topic
	grace    time.Duration
	base     context.Context

	mu        sync.Mutex
	store     *toolstream.Store
	ignored   map[string]struct{}
	initial   bool
	statuses  map[string]messages.ExecutionStatus
	pending   map[string]*humanRequest
	gen       *generation
	running   map[string]*generation
	executing int
	waiters   []chan struct{}
	outbox    []pubsub.Event
	closed    bool

	publishMu sync.Mutex
	tasks     sync.WaitGroup
}

// New creates a coordinator for a conversation.
func New(options ...Option) (*Coordinator, error) {
	c := &Coordinator{
		id:       uuidx.New(),
		log:      slog.Default(),
		grace:    DefaultCancelGrace,
		base:     context.Background(),
		ignored:  make(map[string]struct{}),
		initial:  true,
		statuses: make(map[string]messages.ExecutionStatus),
		pending:  make(map[string]*humanRequest),
		running:  make(map[string]*generation),
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	c.log = c.log.With(slogx.LoggerName("conductor"), slog.String("coordinator", c.id.String()))
	c.store = toolstream.NewStore(c.dispatch)
	c.gen = newGeneration(c.base)
	return c, nil
}

// ID identifies the coordinator in published events.
func (c *Coordinator) ID() uuid.UUID {
	return c.id
}

// Sync reconciles the coordinator with a snapshot of the conversation.
//
// Calls seen before the first snapshot that is not loading are treated as
// history and never executed. An *ArgsTextError is returned when the argument
// text of a streaming call was rewritten instead of extended; the snapshot is
// processed up to the offending part.
func (c *Coordinator) Sync(ctx context.Context, snapshot messages.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	err := c.walk(snapshot.Messages)
	if err != nil {
		ev := pubsub.Error{Coordinator: c.id, Err: err, Timestamp: now()}
		var argsErr *ArgsTextError
		if errors.As(err, &argsErr) {
			ev.ToolCallID = argsErr.ToolCallID
		}
		c.queue(ev)
	} else if c.initial && !snapshot.IsLoading {
		c.initial = false
	}
	c.mu.Unlock()

	c.flush()
	return err
}

// Statuses returns a copy of the statuses of all calls currently executing.
func (c *Coordinator) Statuses() map[string]messages.ExecutionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.statuses)
}

// Status returns the status of a single call. Idle calls have no status.
func (c *Coordinator) Status(toolCallID string) (messages.ExecutionStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[toolCallID]
	return st, ok
}

// Close aborts all executions and waits until they and every streaming tool
// returned, or ctx is done. A closed coordinator rejects further snapshots.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	settled := c.Abort()

	c.mu.Lock()
	c.gen.cancel(ErrClosed)
	for rec := range c.store.All() {
		rec.Close()
	}
	c.mu.Unlock()

	if err := settled.Wait(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setStatus and clearStatus are called with c.mu held.
func (c *Coordinator) setStatus(toolCallID, toolName string, status messages.ExecutionStatus) {
	c.statuses[toolCallID] = status
	c.queue(pubsub.StatusChanged{
		Coordinator: c.id,
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Status:      status,
		Timestamp:   now(),
	})
}

func (c *Coordinator) clearStatus(toolCallID, toolName string) {
	delete(c.statuses, toolCallID)
	c.queue(pubsub.StatusCleared{
		Coordinator: c.id,
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Timestamp:   now(),
	})
}

// queue records an event for the next flush. Called with c.mu held.
func (c *Coordinator) queue(ev pubsub.Event) {
	if c.topic == nil {
		return
	}
	c.outbox = append(c.outbox, ev)
}

// flush publishes queued events in the order they were queued.
// It must be called without c.mu held.
func (c *Coordinator) flush() {
	if c.topic == nil {
		return
	}
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	events := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, ev := range events {
		if err := c.topic.Publish(c.base, ev); err != nil {
			c.log.Error("failed to publish event", slogx.Error(err))
		}
	}
}

func now() strfmt.DateTime {
	return strfmt.DateTime(time.Now().UTC())
}
