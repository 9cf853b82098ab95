package conductor

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is the cancellation cause of an aborted generation and the
	// rejection of human input requests pending at the time of the abort.
	ErrAborted = errors.New("tool execution aborted")
	// ErrSuperseded rejects a human input request replaced by a newer one for the same call.
	ErrSuperseded = errors.New("human input request was superseded by a new request")
	// ErrNotExecuting rejects human input requested for a call that is not running,
	// such as one whose executor was abandoned after an abort.
	ErrNotExecuting = errors.New("tool call is not executing")
	// ErrNotWaitingForHumanInput is returned by Resume for calls without a pending request.
	ErrNotWaitingForHumanInput = errors.New("not waiting for human input")
	// ErrClosed is returned when a closed coordinator is used.
	ErrClosed = errors.New("coordinator is closed")
)

// ArgsTextError reports argument text that rewrote, rather than extended, the
// text already received for a call whose arguments are still streaming.
type ArgsTextError struct {
	ToolCallID string
	Expected   string
	Received   string
}

func (e *ArgsTextError) Error() string {
	return fmt.Sprintf(
		"tool call argsText can only be appended, not updated.\ntool call id: %s\nexpected prefix: %s\nreceived: %s",
		e.ToolCallID, e.Expected, e.Received,
	)
}
