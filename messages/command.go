package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var addToolResultJSON = []byte(`{"type":"add-tool-result"}`)

// AddToolResult is emitted once per tool call when its executor settled.
// The host merges it into its message store as the result of the matching
// tool-call part.
type AddToolResult struct {
	ToolCallID string
	ToolName   string
	Result     any
	IsError    bool
	// Artifact is optional data kept next to the result but never sent back to the model.
	Artifact any
}

func (a AddToolResult) MarshalJSON() ([]byte, error) {
	result := addToolResultJSON

	var err error
	result, err = sjson.SetBytes(result, "toolCallId", a.ToolCallID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "toolName", a.ToolName)
	if err != nil {
		return nil, err
	}

	rb, err := json.Marshal(a.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result of %s: %w", a.ToolCallID, err)
	}
	result, err = sjson.SetRawBytes(result, "result", rb)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "isError", a.IsError)
	if err != nil {
		return nil, err
	}

	if a.Artifact != nil {
		ab, err := json.Marshal(a.Artifact)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal artifact of %s: %w", a.ToolCallID, err)
		}
		result, err = sjson.SetRawBytes(result, "artifact", ab)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (a *AddToolResult) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if tpe := gjson.GetBytes(data, "type"); tpe.String() != "add-tool-result" {
		return fmt.Errorf("missing or invalid type, expected 'add-tool-result'")
	}
	id := gjson.GetBytes(data, "toolCallId")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'toolCallId'")
	}
	a.ToolCallID = id.String()
	a.ToolName = gjson.GetBytes(data, "toolName").String()
	a.Result = gjson.GetBytes(data, "result").Value()
	a.IsError = gjson.GetBytes(data, "isError").Bool()
	if artifact := gjson.GetBytes(data, "artifact"); artifact.Exists() {
		a.Artifact = artifact.Value()
	}
	return nil
}

// Apply returns a copy of the snapshot messages where the matching tool-call part,
// at any nesting depth, carries the result. It reports whether a part was found.
func (a AddToolResult) Apply(msgs []Message) ([]Message, bool, error) {
	res, err := JSON(a.Result)
	if err != nil {
		return nil, false, err
	}
	if !res.Exists() {
		res = gjson.Parse("null")
	}
	art, err := JSON(a.Artifact)
	if err != nil {
		return nil, false, err
	}
	out, found := applyResult(msgs, a.ToolCallID, func(p ToolCallPart) ToolCallPart {
		p.Result = res
		p.IsError = a.IsError
		if art.Exists() {
			p.Artifact = art
		}
		return p
	})
	return out, found, nil
}

func applyResult(msgs []Message, id string, fn func(ToolCallPart) ToolCallPart) ([]Message, bool) {
	out := make([]Message, len(msgs))
	var found bool
	for i, m := range msgs {
		content := make([]Part, len(m.Content))
		for j, p := range m.Content {
			tc, ok := p.(ToolCallPart)
			if !ok {
				content[j] = p
				continue
			}
			if tc.ToolCallID == id {
				tc = fn(tc)
				found = true
			}
			if len(tc.Messages) > 0 {
				nested, nf := applyResult(tc.Messages, id, fn)
				tc.Messages = nested
				found = found || nf
			}
			content[j] = tc
		}
		m.Content = content
		out[i] = m
	}
	return out, found
}
