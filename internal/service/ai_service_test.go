package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"uppercase tag", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence with payload on first line", "```{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n[1, 2]\n```  ", "[1, 2]"},
		{"plain prose", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestGenerateJSON(t *testing.T) {
	var out struct {
		Topic string `json:"topic"`
	}
	gen := &stubGenerator{reply: "```json\n{\"topic\": \"travel\"}\n```"}
	require.NoError(t, GenerateJSON(context.Background(), gen, "prompt", &out))
	assert.Equal(t, "travel", out.Topic)
}

func TestGenerateJSONInvalidReply(t *testing.T) {
	var out map[string]interface{}
	gen := &stubGenerator{reply: "Sure! Here is the plan you asked for."}
	err := GenerateJSON(context.Background(), gen, "prompt", &out)
	assert.Error(t, err)
}

func TestGenerateJSONGeneratorError(t *testing.T) {
	var out map[string]interface{}
	boom := errors.New("upstream timeout")
	gen := &stubGenerator{err: boom}
	err := GenerateJSON(context.Background(), gen, "prompt", &out)
	assert.ErrorIs(t, err, boom)
}
