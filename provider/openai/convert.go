package openai

import (
	"fmt"
	"strings"

	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/jsonx"
	"github.com/casualjim/conductor/tool"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"
)

// ToolParams converts tool definitions into function tools for a chat completion request.
func ToolParams(tools []tool.Tool) ([]openai.ChatCompletionToolParam, error) {
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		def := openai.FunctionDefinitionParam{
			Name: openai.String(t.Name),
		}
		if strings.TrimSpace(t.Description) != "" {
			def.Description = openai.String(t.Description)
		}
		if t.Parameters != nil {
			jv, err := jsonx.ToDynamicJSON(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("failed to convert schema of tool %s: %w", t.Name, err)
			}
			def.Parameters = openai.F(shared.FunctionParameters(jv))
		}

		result[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}
	return result, nil
}

// MessageParams converts a conversation into chat completion messages.
// Tool calls with a result are followed by a tool message carrying that
// result. Nested sub-agent transcripts and unknown parts are not sent.
func MessageParams(instructions string, msgs []messages.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(instructions) != "" {
		result = append(result, openai.SystemMessage(instructions))
	}

	for _, msg := range msgs {
		text := messageText(msg)
		switch msg.Role {
		case messages.RoleSystem:
			result = append(result, openai.SystemMessage(text))
		case messages.RoleUser:
			result = append(result, openai.UserMessageParts(openai.TextPart(text)))
		case messages.RoleAssistant:
			result = append(result, assistantParams(msg, text)...)
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}

func assistantParams(msg messages.Message, text string) []openai.ChatCompletionMessageParamUnion {
	var (
		calls   []openai.ChatCompletionMessageToolCallParam
		results []openai.ChatCompletionMessageParamUnion
	)
	for tc := range msg.ToolCalls() {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   openai.String(tc.ToolCallID),
			Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
			Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      openai.String(tc.ToolName),
				Arguments: openai.String(tc.ArgsText),
			}),
		})
		if !tc.HasResult() {
			continue
		}
		results = append(results, openai.ToolMessage(tc.ToolCallID, resultText(tc)))
	}

	if len(calls) == 0 {
		am := openai.ChatCompletionAssistantMessageParam{
			Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
		}
		am.Content.Value = append(am.Content.Value, openai.TextPart(text))
		return []openai.ChatCompletionMessageParamUnion{am}
	}

	param := openai.ChatCompletionMessageParam{
		Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
		ToolCalls: openai.F[any](calls),
	}
	if text != "" {
		param.Content = openai.F[any](text)
	}
	return append([]openai.ChatCompletionMessageParamUnion{param}, results...)
}

func resultText(tc messages.ToolCallPart) string {
	if tc.Result.Type == gjson.String {
		return tc.Result.Str
	}
	return tc.Result.Raw
}

func messageText(msg messages.Message) string {
	var b strings.Builder
	for _, p := range msg.Content {
		if t, ok := p.(messages.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
