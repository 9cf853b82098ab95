package messages

import (
	"fmt"
	"iter"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of a conversation.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// ToolCalls returns the tool-call parts of this message in document order.
// Nested sub-agent messages are not included.
func (m Message) ToolCalls() iter.Seq[ToolCallPart] {
	return func(yield func(ToolCallPart) bool) {
		for _, p := range m.Content {
			if tc, ok := p.(ToolCallPart); ok {
				if !yield(tc) {
					return
				}
			}
		}
	}
}

func (m Message) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	if m.ID != "" {
		result, err = sjson.SetBytes(result, "id", m.ID)
		if err != nil {
			return nil, err
		}
	}
	result, err = sjson.SetBytes(result, "role", m.Role)
	if err != nil {
		return nil, err
	}

	content := m.Content
	if content == nil {
		content = []Part{}
	}
	cb, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}
	return sjson.SetRawBytes(result, "content", cb)
}

func (m *Message) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	msg, err := parseMessage(gjson.ParseBytes(input))
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

func parseMessage(v gjson.Result) (Message, error) {
	msg := Message{
		ID:   v.Get("id").String(),
		Role: v.Get("role").String(),
	}

	// hosts built on the newer message format call the content "parts"
	content := v.Get("content")
	if !content.Exists() {
		content = v.Get("parts")
	}
	if !content.Exists() {
		return msg, nil
	}
	if content.Type == gjson.String {
		msg.Content = []Part{Text(content.String())}
		return msg, nil
	}
	if !content.IsArray() {
		return Message{}, fmt.Errorf("message %q: content must be an array or a string", msg.ID)
	}

	items := content.Array()
	msg.Content = make([]Part, len(items))
	for idx, item := range items {
		part, err := parsePart(item)
		if err != nil {
			return Message{}, fmt.Errorf("message %q: invalid part at %d: %w", msg.ID, idx, err)
		}
		msg.Content[idx] = part
	}
	return msg, nil
}

func parseMessages(v gjson.Result) ([]Message, error) {
	items := v.Array()
	msgs := make([]Message, len(items))
	for idx, item := range items {
		msg, err := parseMessage(item)
		if err != nil {
			return nil, fmt.Errorf("invalid message at %d: %w", idx, err)
		}
		msgs[idx] = msg
	}
	return msgs, nil
}

// Snapshot is the full conversation state of the host at one point in time.
type Snapshot struct {
	Messages []Message `json:"messages"`
	// IsLoading is true while the host is still loading the thread history.
	IsLoading bool `json:"isLoading"`
}

// ParseSnapshot decodes a snapshot from its JSON representation.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := s.UnmarshalJSON(data); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (s *Snapshot) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	v := gjson.ParseBytes(input)

	msgs := v.Get("messages")
	if msgs.Exists() && !msgs.IsArray() {
		return fmt.Errorf("snapshot messages must be an array")
	}
	parsed, err := parseMessages(msgs)
	if err != nil {
		return err
	}
	s.Messages = parsed
	s.IsLoading = v.Get("isLoading").Bool()
	return nil
}

// ToolCalls walks every tool-call part of the snapshot in document order,
// visiting a part before the parts of its nested messages.
func (s Snapshot) ToolCalls() iter.Seq[ToolCallPart] {
	return func(yield func(ToolCallPart) bool) {
		walkToolCalls(s.Messages, yield)
	}
}

func walkToolCalls(msgs []Message, yield func(ToolCallPart) bool) bool {
	for _, m := range msgs {
		for tc := range m.ToolCalls() {
			if !yield(tc) {
				return false
			}
			if !walkToolCalls(tc.Messages, yield) {
				return false
			}
		}
	}
	return true
}
