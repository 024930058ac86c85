package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcon "github.com/schultz-is/digest-rcon"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("LOBBY_RCON_PASSWORD", "from-env")

	cfg, err := loadConfig("ex.config.toml")
	require.NoError(t, err)

	assert.Equal(t, "lobby", cfg.Default)
	require.Len(t, cfg.Servers, 2)

	lobby := cfg.Servers[0]
	assert.Equal(t, "lobby", lobby.Name)
	assert.Equal(t, "127.0.0.1", lobby.Host)
	assert.Equal(t, 27015, lobby.Port)
	assert.Equal(t, "from-env", lobby.Password)
	assert.Zero(t, lobby.BufferSize)

	arena := cfg.Servers[1]
	assert.Equal(t, "arena", arena.Name)
	assert.Equal(t, 1024, arena.BufferSize)
	assert.Empty(t, arena.Password)
}

func TestLoadConfigBufferSize(t *testing.T) {
	tests := map[string]string{
		"zero":     "0",
		"negative": "-4",
		"float":    "1.5",
		"string":   `"256"`,
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, "[servers.a]\nhost = \"localhost\"\nport = 27015\nbuffer_size = "+value+"\n")

			_, err := loadConfig(path)
			require.ErrorIs(t, err, rcon.ErrInvalidConfig)

			var cerr *rcon.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "servers.a.buffer_size", cerr.Field)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := loadConfig(writeConfig(t, "[servers.a]\nhost = \"localhost\"\n"))
		assert.ErrorIs(t, err, rcon.ErrInvalidConfig)
	})

	t.Run("unknown default", func(t *testing.T) {
		_, err := loadConfig(writeConfig(t, "default = \"b\"\n[servers.a]\nhost = \"localhost\"\nport = 1\n"))
		assert.ErrorIs(t, err, rcon.ErrInvalidConfig)
	})

	t.Run("inline password wins over env", func(t *testing.T) {
		t.Setenv("A_PASS", "env")
		cfg, err := loadConfig(writeConfig(t, "[servers.a]\nhost = \"localhost\"\nport = 1\npassword = \"inline\"\npassword_env = \"A_PASS\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "inline", cfg.Servers[0].Password)
	})
}
