package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNowFlag(t *testing.T) {
	got, err := parseNowFlag("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseNowFlag("2025-06-02T14:00:00+02:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))

	_, err = parseNowFlag("tomorrow")
	assert.Error(t, err)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["tick"])
	assert.True(t, names["migrate"])
}
