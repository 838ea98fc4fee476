package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWait(t *testing.T) {
	for value, want := range map[string]time.Duration{
		"20":     20 * time.Second,
		"0":      0,
		"1500ms": 1500 * time.Millisecond,
		"2m":     2 * time.Minute,
	} {
		got, err := parseWait(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	for _, value := range []string{
		"soon",
		"-1",
		"9223372036854775807",
		"9223372037",
	} {
		_, err := parseWait(value)
		assert.Error(t, err, value)
	}

	got, err := parseWait("9223372036")
	require.NoError(t, err)
	assert.Positive(t, got, "largest whole-second wait does not wrap")
}
