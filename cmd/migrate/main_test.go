package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, "up", cmd.name)

	cmd, err = parseCommand([]string{"force", "1"})
	require.NoError(t, err)
	assert.Equal(t, command{name: "force", version: 1}, cmd)

	for _, args := range [][]string{{"force"}, {"force", "x"}, {"sideways"}} {
		_, err := parseCommand(args)
		assert.Error(t, err, args)
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("", nil, logging.New("error"))
	assert.EqualError(t, err, "DATABASE_URL is required")
}
