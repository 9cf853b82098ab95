package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	executingJSON = []byte(`{"type":"executing"}`)
	interruptJSON = []byte(`{"type":"interrupt","payload":{"type":"human"}}`)
)

// ExecutionStatus is the status of a tool call that is currently being executed.
// A call without a status is idle. Implementations are Executing and Interrupted.
type ExecutionStatus interface {
	executionStatus()
}

// Executing means the executor was invoked and its outcome is pending.
type Executing struct{}

func (Executing) executionStatus() {}

func (Executing) MarshalJSON() ([]byte, error) {
	return executingJSON, nil
}

// Interrupted means the executor is suspended until a human provides input.
type Interrupted struct {
	// Payload is the prompt data the executor handed to the human.
	Payload any
}

func (Interrupted) executionStatus() {}

func (i Interrupted) MarshalJSON() ([]byte, error) {
	pb, err := json.Marshal(i.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interrupt payload: %w", err)
	}
	return sjson.SetRawBytes(interruptJSON, "payload.payload", pb)
}

// ParseExecutionStatus decodes a status from its JSON form.
// Interrupt payloads decode to the generic values produced by gjson.
func ParseExecutionStatus(data []byte) (ExecutionStatus, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	switch tpe := gjson.GetBytes(data, "type").String(); tpe {
	case "executing":
		return Executing{}, nil
	case "interrupt":
		return Interrupted{Payload: gjson.GetBytes(data, "payload.payload").Value()}, nil
	default:
		return nil, fmt.Errorf("unknown execution status %q", tpe)
	}
}
