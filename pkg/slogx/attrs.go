package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns an "error" attribute holding the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString returns an attribute holding value as a string.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer returns an attribute holding the string form of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

const (
	// KeyLoggerName is the key of the logger name attribute.
	KeyLoggerName = "logger"
	// KeyToolCall is the key of the tool call group.
	KeyToolCall = "tool_call"
)

// LoggerName returns an attribute naming the component that logs.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// ToolCall groups the id and tool name of a tool call.
func ToolCall(id, name string) slog.Attr {
	return slog.Group(KeyToolCall, slog.String("id", id), slog.String("name", name))
}
