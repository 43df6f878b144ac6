package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug"))
	// An empty level falls back to info instead of failing.
	require.NoError(t, ConfigureLogging(""))
	require.NoError(t, ConfigureLogging("  warn  "))
}
