package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdictShape struct {
	IsWorkout  bool    `json:"is_workout"`
	Confidence float64 `json:"confidence"`
}

func TestParseJSONPlainObject(t *testing.T) {
	out, err := ParseJSON[verdictShape](`{"is_workout": true, "confidence": 0.92}`)
	require.NoError(t, err)
	assert.True(t, out.IsWorkout)
	assert.InDelta(t, 0.92, out.Confidence, 1e-9)
}

func TestParseJSONSurroundingProse(t *testing.T) {
	resp := "Sure, here is the verdict:\n{\"is_workout\": false, \"confidence\": 0.1}\nLet me know if you need anything else."
	out, err := ParseJSON[verdictShape](resp)
	require.NoError(t, err)
	assert.False(t, out.IsWorkout)
}

func TestParseJSONMarkdownFence(t *testing.T) {
	resp := "```json\n{\"is_workout\": true, \"confidence\": 0.8}\n```"
	out, err := ParseJSON[verdictShape](resp)
	require.NoError(t, err)
	assert.True(t, out.IsWorkout)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[verdictShape]("this is not json at all")
	require.Error(t, err)
}

func TestParseJSONMalformedObject(t *testing.T) {
	_, err := ParseJSON[verdictShape](`{"is_workout": "maybe",`)
	require.Error(t, err)
}
