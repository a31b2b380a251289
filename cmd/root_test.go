package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"recommend", "status", "serve", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "centerrank", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRecommendCommand_Flags(t *testing.T) {
	for _, name := range []string{"lat", "lon", "radius", "limit", "severity", "symptoms", "category", "age-group", "prefer-online", "prefer-free", "json"} {
		require.NotNil(t, recommendCmd.Flags().Lookup(name), "recommend command should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestMigrateCommand_Flags(t *testing.T) {
	flag := migrateCmd.Flags().Lookup("seed")
	require.NotNil(t, flag, "migrate command should have --seed flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestStatusCommand_RequiresID(t *testing.T) {
	assert.Error(t, statusCmd.Args(statusCmd, nil))
	assert.NoError(t, statusCmd.Args(statusCmd, []string{"c-1"}))
}
