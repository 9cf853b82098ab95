package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDynamicJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "struct",
			input: struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}{Query: "weather", Limit: 3},
			want: map[string]any{"query": "weather", "limit": float64(3)},
		},
		{
			name:    "not an object",
			input:   []int{1, 2},
			wantErr: true,
		},
		{
			name:    "unsupported value",
			input:   make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDynamicJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: ""},
		{name: "string", input: "sunny", want: "sunny"},
		{name: "bytes", input: []byte(`{"a":1}`), want: `{"a":1}`},
		{name: "map", input: map[string]int{"temp": 21}, want: `{"temp":21}`},
		{name: "number", input: 42, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
