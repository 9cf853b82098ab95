/*
Package conductor coordinates the tool calls a model makes while its response
streams in.

A Coordinator is created once per conversation. The host hands it every new
snapshot of the conversation through Sync; the coordinator diffs the snapshot
against what it has seen, feeds the growing argument text of each tool call
into a per-call record, and runs the tool's executor once the arguments parse
as complete JSON. Results are handed back to the host through a ResultHandler,
formatted as an add-tool-result command the host merges into its messages.

	coord, err := conductor.New(
		conductor.WithToolSet(search, confirm),
		conductor.WithResultHandler(func(ctx context.Context, res messages.AddToolResult) {
			thread.Apply(res)
		}),
	)

	for snapshot := range thread.Updates() {
		if err := coord.Sync(ctx, snapshot); err != nil {
			return err
		}
	}

# History

Tool calls present while the conversation is still loading are history. The
coordinator remembers their ids and never executes them, even if their
arguments or results change later. The window closes with the first snapshot
that is not loading; Reset opens it again. Calls that first show up with a
result and complete arguments are history as well.

# Human input

Executors may suspend with Call.AskHuman. The call's status becomes
Interrupted with the executor's payload until the host calls Resume. A second
request for the same call rejects the first one with ErrSuperseded. Requests
from calls that are no longer executing, such as executors abandoned after an
abort, fail with ErrNotExecuting and leave the statuses alone.

# Cancellation

Abort rejects pending human input, cancels the context of every running
executor with cause ErrAborted and returns a Settled barrier that is released
once nothing is executing any more. Cancellation is cooperative; executors that
ignore their context are abandoned after a short grace period and their calls
settle with a cancelled error result.

# Events

With WithTopic, every status change, result and abort is published on a
pubsub topic, which lets other processes observe the coordinator.
*/
package conductor
