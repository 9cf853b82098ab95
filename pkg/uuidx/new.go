// Package uuidx mints time-ordered identifiers.
package uuidx

import "github.com/google/uuid"

// New mints a v7 id. Ids minted later sort after earlier ones.
// A failing entropy source panics.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString mints a v7 id in its 36 character text form, as used for
// subscription ids and tool call ids.
func NewString() string {
	return New().String()
}
