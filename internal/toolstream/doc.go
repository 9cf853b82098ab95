// Package toolstream holds the per-call state of streamed tool calls.
//
// A Store maps tool call ids to Controllers. A Controller accumulates the
// argument text of one call, records when it is complete, and attaches the final
// response. Store and Controller writers are expected to be serialized by the
// caller; readers handed out to streaming tools may run on other goroutines.
package toolstream
