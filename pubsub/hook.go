package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/casualjim/conductor/pkg/slogx"
	json "github.com/goccy/go-json"
)

// Hook receives coordinator events from a subscription.
// Every method must be implemented, so that adding an event type forces
// consumers to decide how to handle it.
type Hook interface {
	OnStatusChanged(context.Context, StatusChanged)

	OnStatusCleared(context.Context, StatusCleared)

	OnResult(context.Context, ResultAdded)

	OnAborted(context.Context, Aborted)

	OnError(context.Context, Error)
}

// LoggingHook logs every event through slog.
func LoggingHook() Hook {
	return &loggingHook{}
}

type loggingHook struct{}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func (loggingHook) OnStatusChanged(ctx context.Context, ev StatusChanged) {
	slog.InfoContext(ctx, "tool status changed", slogx.ToolCall(ev.ToolCallID, ev.ToolName), "status", mustJSON(ev.Status))
}

func (loggingHook) OnStatusCleared(ctx context.Context, ev StatusCleared) {
	slog.InfoContext(ctx, "tool status cleared", slogx.ToolCall(ev.ToolCallID, ev.ToolName))
}

func (loggingHook) OnResult(ctx context.Context, ev ResultAdded) {
	slog.InfoContext(ctx, "tool result", slogx.ToolCall(ev.Result.ToolCallID, ev.Result.ToolName), "result", mustJSON(ev.Result))
}

func (loggingHook) OnAborted(ctx context.Context, ev Aborted) {
	slog.InfoContext(ctx, "tool execution aborted", slog.String("generation", ev.Generation.String()), slog.Int("executing", ev.Executing))
}

func (loggingHook) OnError(ctx context.Context, ev Error) {
	slog.ErrorContext(ctx, "coordinator error", slog.String("tool_call_id", ev.ToolCallID), slogx.Error(ev.Err))
}

func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

// CompositeHook fans every event out to each of its hooks in order.
type CompositeHook []Hook

func (c CompositeHook) OnStatusChanged(ctx context.Context, ev StatusChanged) {
	for h := range slices.Values(c) {
		h.OnStatusChanged(ctx, ev)
	}
}

func (c CompositeHook) OnStatusCleared(ctx context.Context, ev StatusCleared) {
	for h := range slices.Values(c) {
		h.OnStatusCleared(ctx, ev)
	}
}

func (c CompositeHook) OnResult(ctx context.Context, ev ResultAdded) {
	for h := range slices.Values(c) {
		h.OnResult(ctx, ev)
	}
}

func (c CompositeHook) OnAborted(ctx context.Context, ev Aborted) {
	for h := range slices.Values(c) {
		h.OnAborted(ctx, ev)
	}
}

func (c CompositeHook) OnError(ctx context.Context, ev Error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, ev)
	}
}

// dispatch routes an event to the matching hook method.
func dispatch(ctx context.Context, hook Hook, event Event) {
	switch event := event.(type) {
	case StatusChanged:
		hook.OnStatusChanged(ctx, event)
	case StatusCleared:
		hook.OnStatusCleared(ctx, event)
	case ResultAdded:
		hook.OnResult(ctx, event)
	case Aborted:
		hook.OnAborted(ctx, event)
	case Error:
		hook.OnError(ctx, event)
	default:
		slog.WarnContext(ctx, "dropping unknown event", slog.String("type", fmt.Sprintf("%T", event)))
	}
}
