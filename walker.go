package conductor

import (
	"log/slog"
	"strings"

	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/tool"
	"github.com/tidwall/gjson"
)

// walk visits every tool-call part in document order, parents before the calls
// nested in them. Called with c.mu held.
func (c *Coordinator) walk(msgs []messages.Message) error {
	for _, msg := range msgs {
		for _, part := range msg.Content {
			tc, ok := part.(messages.ToolCallPart)
			if !ok {
				continue
			}
			if err := c.visit(tc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) visit(part messages.ToolCallPart) error {
	id := part.ToolCallID
	if c.initial {
		c.ignored[id] = struct{}{}
		return nil
	}
	if _, ok := c.ignored[id]; ok {
		return nil
	}

	rec, known := c.store.Get(id)
	if !known && part.HasResult() && argsComplete(part.ArgsText) {
		c.ignored[id] = struct{}{}
		return nil
	}
	if !known {
		rec, _ = c.store.GetOrCreate(id, part.ToolName)
		c.stream(rec)
	}

	if prev := rec.ArgsText(); part.ArgsText != prev {
		switch {
		case rec.ArgsComplete():
			c.log.Warn("argsText updated after the arguments were closed",
				slogx.ToolCall(id, rec.ToolName()),
				slog.String("previous", prev),
				slog.String("next", part.ArgsText),
			)
		case !strings.HasPrefix(part.ArgsText, prev):
			return &ArgsTextError{ToolCallID: id, Expected: prev, Received: part.ArgsText}
		default:
			if err := rec.AppendArgsText(part.ArgsText[len(prev):]); err != nil {
				return err
			}
			if argsComplete(part.ArgsText) {
				rec.CloseArgsText()
			}
		}
	}

	if part.HasResult() && !rec.HasResult() {
		resp := tool.Response{Result: part.Result.Value(), IsError: part.IsError}
		if part.Artifact.Exists() {
			resp.Artifact = part.Artifact.Value()
		}
		rec.SetResponse(resp)
		rec.Close()
	}

	return c.walk(part.Messages)
}

func argsComplete(text string) bool {
	return gjson.Valid(text)
}
