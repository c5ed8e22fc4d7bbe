package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("chat: %w", Errorf(KindAgentNotFound, "lookup", "agent %s", "x"))

	assert.True(t, errors.Is(err, ErrAgentNotFound))
	assert.False(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, KindAgentNotFound, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindProvider, Op: "openai.chat", Code: "429", Msg: "rate limited"}
	assert.Equal(t, "openai.chat: provider_error [429]: rate limited", err.Error())

	wrapped := E(KindProviderUnavailable, "ollama.chat", errors.New("connection refused"))
	assert.Equal(t, "ollama.chat: provider_unavailable: connection refused", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "connection refused")
}

func TestToolCallArgs(t *testing.T) {
	tests := []struct {
		name    string
		call    ToolCall
		want    map[string]any
		wantErr bool
	}{
		{"object", ToolCall{Name: "a", Arguments: map[string]any{"q": "x"}}, map[string]any{"q": "x"}, false},
		{"text", ToolCall{Name: "a", RawArguments: `{"q":"y"}`}, map[string]any{"q": "y"}, false},
		{"empty", ToolCall{Name: "a"}, map[string]any{}, false},
		{"null", ToolCall{Name: "a", RawArguments: "null"}, map[string]any{}, false},
		{"broken", ToolCall{Name: "a", RawArguments: `{"q":`}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call.Args()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionsWith(t *testing.T) {
	o, err := Options{}.With("temperature", "0.2")
	assert.NoError(t, err)
	if assert.NotNil(t, o.Temperature) {
		assert.Equal(t, 0.2, *o.Temperature)
	}

	o, err = o.With("num_ctx", "8192")
	assert.NoError(t, err)
	if assert.NotNil(t, o.NumCtx) {
		assert.Equal(t, 8192, *o.NumCtx)
	}

	o, err = o.With("temperature", "")
	assert.NoError(t, err)
	assert.Nil(t, o.Temperature)
	assert.Equal(t, map[string]any{"num_ctx": float64(8192)}, o.Map())

	_, err = o.With("bogus", "1")
	assert.Error(t, err)

	_, err = o.With("num_ctx", "lots")
	assert.Error(t, err)
}
