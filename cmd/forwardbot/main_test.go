package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForwardbotCommand(t *testing.T) {
	cmd := NewForwardbotCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "forwardbot", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())
	assert.NotNil(t, cmd.PersistentPreRun)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	for _, name := range []string{"onboard", "o", "gateway", "serve", "rules", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEqual(t, cmd, sub, name)
	}
}
