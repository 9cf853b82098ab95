// Package messages defines the conversation state exchanged between a host
// application and the tool-invocation coordinator.
//
// A host hands the coordinator a Snapshot of its conversation on every state
// change. A Snapshot is a list of messages, each made of parts; the coordinator
// only looks at ToolCallPart values and ignores everything else. A ToolCallPart
// may carry nested messages when a tool delegates to a sub-agent, which makes the
// conversation a tree rather than a list.
//
// The coordinator reports back through two types defined here:
//
//   - AddToolResult: the command a host merges into its store once a tool finished
//   - ExecutionStatus: the per-call status (Executing or Interrupted) a UI renders
//
// All types marshal to the JSON shapes used on the wire:
//
//	{"type":"tool-call","toolCallId":"a","toolName":"search","argsText":"{\"q\":\"x\"}"}
//	{"type":"add-tool-result","toolCallId":"a","toolName":"search","result":[],"isError":false}
//	{"type":"interrupt","payload":{"type":"human","payload":{"question":"ok?"}}}
//
// Optional JSON values (a part's result and artifact) are held as gjson.Result so
// that "absent" and "null" stay distinguishable.
package messages
