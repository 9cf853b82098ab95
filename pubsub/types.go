package pubsub

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/conductor/messages"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	statusJSON  = []byte(`{"type":"status"}`)
	clearedJSON = []byte(`{"type":"status-cleared"}`)
	resultJSON  = []byte(`{"type":"result"}`)
	abortedJSON = []byte(`{"type":"aborted"}`)
	errorJSON   = []byte(`{"type":"error"}`)
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, Event) error
	Subscribe(context.Context, Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// Event is something that happened inside a coordinator.
type Event interface {
	pubsubEvent()
}

// StatusChanged is published when a tool call starts executing, is
// interrupted for human input or resumes.
type StatusChanged struct {
	Coordinator uuid.UUID                `json:"coordinator"`
	ToolCallID  string                   `json:"tool_call_id"`
	ToolName    string                   `json:"tool_name"`
	Status      messages.ExecutionStatus `json:"status"`
	Timestamp   strfmt.DateTime          `json:"timestamp,omitempty"`
}

func (StatusChanged) pubsubEvent() {}

func (s StatusChanged) MarshalJSON() ([]byte, error) {
	result, err := setCall(statusJSON, s.Coordinator, s.ToolCallID, s.ToolName)
	if err != nil {
		return nil, err
	}

	statusBytes, err := json.Marshal(s.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "status", statusBytes)
	if err != nil {
		return nil, err
	}

	return setTimestamp(result, s.Timestamp)
}

func (s *StatusChanged) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "status"); err != nil {
		return err
	}
	if err := getCall(data, &s.Coordinator, &s.ToolCallID, &s.ToolName); err != nil {
		return err
	}

	status := gjson.GetBytes(data, "status")
	if !status.Exists() {
		return fmt.Errorf("missing required field 'status'")
	}
	st, err := messages.ParseExecutionStatus([]byte(status.Raw))
	if err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	s.Status = st

	return getTimestamp(data, &s.Timestamp)
}

// StatusCleared is published when a tool call settles and no longer has a status.
type StatusCleared struct {
	Coordinator uuid.UUID       `json:"coordinator"`
	ToolCallID  string          `json:"tool_call_id"`
	ToolName    string          `json:"tool_name"`
	Timestamp   strfmt.DateTime `json:"timestamp,omitempty"`
}

func (StatusCleared) pubsubEvent() {}

func (s StatusCleared) MarshalJSON() ([]byte, error) {
	result, err := setCall(clearedJSON, s.Coordinator, s.ToolCallID, s.ToolName)
	if err != nil {
		return nil, err
	}
	return setTimestamp(result, s.Timestamp)
}

func (s *StatusCleared) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "status-cleared"); err != nil {
		return err
	}
	if err := getCall(data, &s.Coordinator, &s.ToolCallID, &s.ToolName); err != nil {
		return err
	}
	return getTimestamp(data, &s.Timestamp)
}

// ResultAdded is published when a coordinator hands a tool result to the host.
type ResultAdded struct {
	Coordinator uuid.UUID              `json:"coordinator"`
	Result      messages.AddToolResult `json:"result"`
	Timestamp   strfmt.DateTime        `json:"timestamp,omitempty"`
}

func (ResultAdded) pubsubEvent() {}

func (r ResultAdded) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(resultJSON, "coordinator", r.Coordinator.String())
	if err != nil {
		return nil, err
	}

	cmd, err := r.Result.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "result", cmd)
	if err != nil {
		return nil, err
	}

	return setTimestamp(result, r.Timestamp)
}

func (r *ResultAdded) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "result"); err != nil {
		return err
	}
	if err := getCoordinator(data, &r.Coordinator); err != nil {
		return err
	}

	cmd := gjson.GetBytes(data, "result")
	if !cmd.Exists() {
		return fmt.Errorf("missing required field 'result'")
	}
	if err := r.Result.UnmarshalJSON([]byte(cmd.Raw)); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	return getTimestamp(data, &r.Timestamp)
}

// Aborted is published when a coordinator starts a new cancellation generation.
type Aborted struct {
	Coordinator uuid.UUID       `json:"coordinator"`
	Generation  uuid.UUID       `json:"generation"`
	Executing   int             `json:"executing"`
	Timestamp   strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Aborted) pubsubEvent() {}

func (a Aborted) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(abortedJSON, "coordinator", a.Coordinator.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "generation", a.Generation.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "executing", a.Executing)
	if err != nil {
		return nil, err
	}
	return setTimestamp(result, a.Timestamp)
}

func (a *Aborted) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "aborted"); err != nil {
		return err
	}
	if err := getCoordinator(data, &a.Coordinator); err != nil {
		return err
	}

	gen := gjson.GetBytes(data, "generation")
	if !gen.Exists() {
		return fmt.Errorf("missing required field 'generation'")
	}
	if err := a.Generation.UnmarshalText([]byte(gen.String())); err != nil {
		return fmt.Errorf("invalid generation: %w", err)
	}
	a.Executing = int(gjson.GetBytes(data, "executing").Int())

	return getTimestamp(data, &a.Timestamp)
}

// Error is published when the coordinator hits a failure it cannot report
// through a tool result, such as a protocol violation in a snapshot.
type Error struct {
	Coordinator uuid.UUID       `json:"coordinator"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	Err         error           `json:"error"`
	Timestamp   strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) pubsubEvent() {}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "coordinator", e.Coordinator.String())
	if err != nil {
		return nil, err
	}

	if e.ToolCallID != "" {
		result, err = sjson.SetBytes(result, "tool_call_id", e.ToolCallID)
		if err != nil {
			return nil, err
		}
	}

	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}

	return setTimestamp(result, e.Timestamp)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "error"); err != nil {
		return err
	}
	if err := getCoordinator(data, &e.Coordinator); err != nil {
		return err
	}

	e.ToolCallID = gjson.GetBytes(data, "tool_call_id").String()

	msg := gjson.GetBytes(data, "error")
	if !msg.Exists() {
		return fmt.Errorf("missing required field 'error'")
	}
	e.Err = errors.New(msg.String())

	return getTimestamp(data, &e.Timestamp)
}

// ToJSON encodes an event with its type marker.
func ToJSON(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	switch tpe := gjson.GetBytes(data, "type").String(); tpe {
	case "status":
		var ev StatusChanged
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "status-cleared":
		var ev StatusCleared
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "result":
		var ev ResultAdded
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "aborted":
		var ev Aborted
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev Error
		if err := ev.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", tpe)
	}
}

func checkType(data []byte, expected string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != expected {
		return fmt.Errorf("missing or invalid type, expected '%s'", expected)
	}
	return nil
}

func setCall(base []byte, coordinator uuid.UUID, toolCallID, toolName string) ([]byte, error) {
	result, err := sjson.SetBytes(base, "coordinator", coordinator.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "tool_call_id", toolCallID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "tool_name", toolName)
}

func getCall(data []byte, coordinator *uuid.UUID, toolCallID, toolName *string) error {
	if err := getCoordinator(data, coordinator); err != nil {
		return err
	}

	id := gjson.GetBytes(data, "tool_call_id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'tool_call_id'")
	}
	*toolCallID = id.String()

	name := gjson.GetBytes(data, "tool_name")
	if !name.Exists() {
		return fmt.Errorf("missing required field 'tool_name'")
	}
	*toolName = name.String()
	return nil
}

func getCoordinator(data []byte, coordinator *uuid.UUID) error {
	id := gjson.GetBytes(data, "coordinator")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'coordinator'")
	}
	if err := coordinator.UnmarshalText([]byte(id.String())); err != nil {
		return fmt.Errorf("invalid coordinator: %w", err)
	}
	return nil
}

func setTimestamp(result []byte, ts strfmt.DateTime) ([]byte, error) {
	if !ts.IsZero() {
		return sjson.SetBytes(result, "timestamp", ts.String())
	}
	return result, nil
}

func getTimestamp(data []byte, ts *strfmt.DateTime) error {
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := ts.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}
