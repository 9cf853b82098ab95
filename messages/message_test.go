package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const nestedSnapshot = `{
  "isLoading": true,
  "messages": [
    {"id": "m1", "role": "user", "content": "find x"},
    {"id": "m2", "role": "assistant", "content": [
      {"type": "text", "text": "delegating"},
      {"type": "reasoning", "text": "thinking hard"},
      {"type": "tool-call", "toolCallId": "a", "toolName": "agent", "argsText": "{}", "messages": [
        {"id": "s1", "role": "assistant", "content": [
          {"type": "tool-call", "toolCallId": "a.1", "toolName": "search", "argsText": "{\"q\":\"x\"}", "result": [1, 2], "isError": false}
        ]}
      ]},
      {"type": "tool-call", "toolCallId": "b", "toolName": "search", "argsText": "{\"q\":"}
    ]}
  ]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(nestedSnapshot))
	require.NoError(t, err)

	assert.True(t, snap.IsLoading)
	require.Len(t, snap.Messages, 2)

	t.Run("string content becomes a text part", func(t *testing.T) {
		require.Len(t, snap.Messages[0].Content, 1)
		assert.Equal(t, Text("find x"), snap.Messages[0].Content[0])
	})

	t.Run("unknown parts are kept raw", func(t *testing.T) {
		raw, ok := snap.Messages[1].Content[1].(RawPart)
		require.True(t, ok)
		assert.Equal(t, "reasoning", raw.PartType())
		assert.Equal(t, "thinking hard", raw.Raw.Get("text").String())
	})

	t.Run("tool calls are visited parent first", func(t *testing.T) {
		var ids []string
		for tc := range snap.ToolCalls() {
			ids = append(ids, tc.ToolCallID)
		}
		assert.Equal(t, []string{"a", "a.1", "b"}, ids)
	})

	t.Run("result presence is preserved", func(t *testing.T) {
		parent := snap.Messages[1].Content[2].(ToolCallPart)
		assert.False(t, parent.HasResult())
		nested := parent.Messages[0].Content[0].(ToolCallPart)
		assert.True(t, nested.HasResult())
		assert.Equal(t, `[1, 2]`, nested.Result.Raw)
	})
}

func TestParseSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "invalid json", input: `{"messages": [`},
		{name: "messages not an array", input: `{"messages": {}}`},
		{name: "part without type", input: `{"messages": [{"role": "assistant", "content": [{"text": "x"}]}]}`},
		{name: "tool call without id", input: `{"messages": [{"role": "assistant", "content": [{"type": "tool-call", "toolName": "x"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParts_AcceptedUnderPartsKey(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","parts":[{"type":"text","text":"hi"}]}`), &msg))
	assert.Equal(t, []Part{Text("hi")}, msg.Content)
}

func TestToolCallPart_MarshalJSON(t *testing.T) {
	part := ToolCallPart{
		ToolCallID: "a",
		ToolName:   "search",
		ArgsText:   `{"q":"x"}`,
		Result:     gjson.Parse(`{"hits":1}`),
		Artifact:   gjson.Parse(`"blob"`),
	}

	b, err := json.Marshal(part)
	require.NoError(t, err)

	assert.Equal(t, "tool-call", gjson.GetBytes(b, "type").String())
	assert.Equal(t, `{"q":"x"}`, gjson.GetBytes(b, "argsText").String())
	assert.Equal(t, int64(1), gjson.GetBytes(b, "result.hits").Int())
	assert.False(t, gjson.GetBytes(b, "isError").Bool())
	assert.Equal(t, "blob", gjson.GetBytes(b, "artifact").String())
	assert.False(t, gjson.GetBytes(b, "messages").Exists())

	t.Run("without result", func(t *testing.T) {
		b, err := json.Marshal(ToolCallPart{ToolCallID: "b", ToolName: "x", ArgsText: "{"})
		require.NoError(t, err)
		assert.False(t, gjson.GetBytes(b, "result").Exists())
		assert.False(t, gjson.GetBytes(b, "isError").Exists())
	})
}

func TestExecutionStatus_JSON(t *testing.T) {
	b, err := json.Marshal(Executing{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"executing"}`, string(b))

	b, err = json.Marshal(Interrupted{Payload: map[string]any{"question": "ok?"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"interrupt","payload":{"type":"human","payload":{"question":"ok?"}}}`, string(b))

	st, err := ParseExecutionStatus(b)
	require.NoError(t, err)
	assert.Equal(t, Interrupted{Payload: map[string]any{"question": "ok?"}}, st)

	_, err = ParseExecutionStatus([]byte(`{"type":"sleeping"}`))
	assert.Error(t, err)
}

func TestAddToolResult(t *testing.T) {
	cmd := AddToolResult{
		ToolCallID: "a.1",
		ToolName:   "search",
		Result:     map[string]any{"hits": 3},
		Artifact:   "raw",
	}

	t.Run("marshals with type marker", func(t *testing.T) {
		b, err := json.Marshal(cmd)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"add-tool-result","toolCallId":"a.1","toolName":"search","result":{"hits":3},"isError":false,"artifact":"raw"}`, string(b))
	})

	t.Run("rejects other types", func(t *testing.T) {
		var out AddToolResult
		assert.Error(t, out.UnmarshalJSON([]byte(`{"type":"add-message","toolCallId":"x"}`)))
	})

	t.Run("applies to nested parts", func(t *testing.T) {
		snap, err := ParseSnapshot([]byte(nestedSnapshot))
		require.NoError(t, err)

		out, found, err := AddToolResult{ToolCallID: "b", ToolName: "search", Result: "done", IsError: true}.Apply(snap.Messages)
		require.NoError(t, err)
		assert.True(t, found)

		part := out[1].Content[3].(ToolCallPart)
		assert.Equal(t, "done", part.Result.String())
		assert.True(t, part.IsError)

		// the input is left alone
		assert.False(t, snap.Messages[1].Content[3].(ToolCallPart).HasResult())

		_, found, err = AddToolResult{ToolCallID: "zz"}.Apply(snap.Messages)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
