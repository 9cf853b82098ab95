package openai

import (
	"slices"
	"strings"

	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/uuidx"
	"github.com/openai/openai-go"
)

// Accumulator folds streamed chat completion chunks into a single assistant
// message. Tool calls are keyed by their delta index, so argument fragments
// of parallel calls end up on the right call.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	id      string
	text    strings.Builder
	calls   []*pendingCall
	byIndex map[int64]*pendingCall
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byIndex: make(map[int64]*pendingCall)}
}

// AddChunk merges chunk into the message. Only the first choice is used.
func (a *Accumulator) AddChunk(chunk openai.ChatCompletionChunk) {
	if a.id == "" && chunk.ID != "" {
		a.id = chunk.ID
	}
	if len(chunk.Choices) == 0 {
		return
	}

	delta := chunk.Choices[0].Delta
	a.text.WriteString(delta.Content)

	for _, tc := range delta.ToolCalls {
		call, ok := a.byIndex[tc.Index]
		if !ok {
			call = &pendingCall{}
			a.byIndex[tc.Index] = call
			a.calls = append(a.calls, call)
		}
		if tc.ID != "" {
			call.id = tc.ID
		}
		if tc.Function.Name != "" {
			call.name = tc.Function.Name
		}
		call.args.WriteString(tc.Function.Arguments)
	}
}

// Message returns the assistant message accumulated so far: the text first,
// followed by one tool-call part per call that already has an id.
func (a *Accumulator) Message() messages.Message {
	if a.id == "" {
		a.id = uuidx.NewString()
	}

	msg := messages.Message{ID: a.id, Role: messages.RoleAssistant}
	if a.text.Len() > 0 {
		msg.Content = append(msg.Content, messages.Text(a.text.String()))
	}
	for _, call := range a.calls {
		if call.id == "" {
			continue
		}
		msg.Content = append(msg.Content, messages.ToolCallPart{
			ToolCallID: call.id,
			ToolName:   call.name,
			ArgsText:   call.args.String(),
		})
	}
	return msg
}

// Snapshot returns history followed by the accumulated message.
func (a *Accumulator) Snapshot(history []messages.Message) messages.Snapshot {
	msgs := slices.Grow(slices.Clone(history), 1)
	return messages.Snapshot{Messages: append(msgs, a.Message())}
}
