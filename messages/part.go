package messages

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	PartTypeText     = "text"
	PartTypeToolCall = "tool-call"
)

var (
	textPartJSON     = []byte(`{"type":"text"}`)
	toolCallPartJSON = []byte(`{"type":"tool-call"}`)
)

// Part is a single element of a message's content.
// Implementations are TextPart, ToolCallPart and RawPart.
type Part interface {
	PartType() string
	part()
}

// Text creates a TextPart with the given text.
func Text(text string) TextPart {
	return TextPart{Text: text}
}

// TextPart is plain text content.
type TextPart struct {
	Text string   `json:"text"`
	_    struct{} // require keyed usage
}

func (TextPart) part()            {}
func (TextPart) PartType() string { return PartTypeText }

func (t TextPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(textPartJSON, "text", t.Text)
}

func (t *TextPart) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

// ToolCallPart is a model-requested tool invocation.
//
// ArgsText grows while the model streams the arguments. Result and Artifact are
// absent (Exists() == false) until a result is known to the host.
type ToolCallPart struct {
	ToolCallID string       `json:"toolCallId"`
	ToolName   string       `json:"toolName"`
	ArgsText   string       `json:"argsText"`
	Result     gjson.Result `json:"result,omitempty"`
	IsError    bool         `json:"isError,omitempty"`
	Artifact   gjson.Result `json:"artifact,omitempty"`
	// Messages holds the transcript of a sub-agent this tool call delegated to.
	Messages []Message `json:"messages,omitempty"`
}

func (ToolCallPart) part()            {}
func (ToolCallPart) PartType() string { return PartTypeToolCall }

// HasResult reports whether the part carries a result.
func (t ToolCallPart) HasResult() bool {
	return t.Result.Exists()
}

func (t ToolCallPart) MarshalJSON() ([]byte, error) {
	result := toolCallPartJSON

	var err error
	result, err = sjson.SetBytes(result, "toolCallId", t.ToolCallID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "toolName", t.ToolName)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "argsText", t.ArgsText)
	if err != nil {
		return nil, err
	}

	if t.Result.Exists() {
		result, err = sjson.SetRawBytes(result, "result", []byte(t.Result.Raw))
		if err != nil {
			return nil, err
		}
		result, err = sjson.SetBytes(result, "isError", t.IsError)
		if err != nil {
			return nil, err
		}
	}

	if t.Artifact.Exists() {
		result, err = sjson.SetRawBytes(result, "artifact", []byte(t.Artifact.Raw))
		if err != nil {
			return nil, err
		}
	}

	if len(t.Messages) > 0 {
		nested, err := json.Marshal(t.Messages)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal nested messages: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "messages", nested)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (t *ToolCallPart) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}

	id := gjson.GetBytes(input, "toolCallId")
	if !id.Exists() || id.String() == "" {
		return errors.New("missing required field 'toolCallId'")
	}
	t.ToolCallID = id.String()

	name := gjson.GetBytes(input, "toolName")
	if !name.Exists() {
		return errors.New("missing required field 'toolName'")
	}
	t.ToolName = name.String()

	t.ArgsText = gjson.GetBytes(input, "argsText").String()
	t.Result = gjson.GetBytes(input, "result")
	t.IsError = gjson.GetBytes(input, "isError").Bool()
	t.Artifact = gjson.GetBytes(input, "artifact")

	if nested := gjson.GetBytes(input, "messages"); nested.IsArray() {
		msgs, err := parseMessages(nested)
		if err != nil {
			return fmt.Errorf("invalid nested messages of %s: %w", t.ToolCallID, err)
		}
		t.Messages = msgs
	}
	return nil
}

// RawPart keeps content parts the coordinator has no use for (images, reasoning,
// sources, ...) so they survive a decode/encode cycle untouched.
type RawPart struct {
	Type string
	Raw  gjson.Result
}

func (RawPart) part()              {}
func (r RawPart) PartType() string { return r.Type }

func (r RawPart) MarshalJSON() ([]byte, error) {
	if !r.Raw.Exists() {
		return sjson.SetBytes([]byte(`{}`), "type", r.Type)
	}
	return []byte(r.Raw.Raw), nil
}

func parsePart(v gjson.Result) (Part, error) {
	tpe := v.Get("type").String()
	switch tpe {
	case PartTypeText:
		var part TextPart
		if err := part.UnmarshalJSON([]byte(v.Raw)); err != nil {
			return nil, err
		}
		return part, nil
	case PartTypeToolCall:
		var part ToolCallPart
		if err := part.UnmarshalJSON([]byte(v.Raw)); err != nil {
			return nil, err
		}
		return part, nil
	case "":
		return nil, errors.New("missing required field 'type'")
	default:
		return RawPart{Type: tpe, Raw: v}, nil
	}
}

// JSON marshals v and returns it as a gjson.Result, for building parts in code.
// It returns an empty (non-existent) result when v is nil.
func JSON(v any) (gjson.Result, error) {
	if v == nil {
		return gjson.Result{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(b), nil
}
