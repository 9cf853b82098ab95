/*
Package executor runs tool calls durably on Temporal workers.

A worker registers the tool workflow and activity next to the tools it can
execute:

	w := worker.New(cl, "tools", worker.Options{})
	executor.Register(w, &executor.Activities{Tools: registry})

The process running the coordinator wraps the same definitions with Remote,
so their executors start a workflow per tool call instead of running locally:

	coord, err := conductor.New(conductor.WithToolSet(
		executor.Remote(cl, search, "tools"),
	))

The workflow id is derived from the tool call id and may not be reused, so a
tool call runs at most once. Human input is not available to
remotely executed tools.
*/
package executor
