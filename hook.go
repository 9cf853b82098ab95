package conductor

import (
	"context"

	"github.com/casualjim/conductor/messages"
)

// ResultHandler receives the result of every tool call the coordinator executed.
// It is invoked at most once per tool call and never for calls whose result
// already arrived through a snapshot. The host is expected to merge the result
// into its message store, typically with messages.AddToolResult.Apply, and sync
// the coordinator again.
//
// The handler runs on the executor's goroutine; it may call back into the
// coordinator.
type ResultHandler func(context.Context, messages.AddToolResult)

// Collect returns a handler that sends every result to the channel.
// When the channel is full, sends block until there is room or ctx is done.
func Collect(results chan<- messages.AddToolResult) ResultHandler {
	return func(ctx context.Context, res messages.AddToolResult) {
		select {
		case results <- res:
			return
		default:
		}
		select {
		case results <- res:
		case <-ctx.Done():
		}
	}
}
