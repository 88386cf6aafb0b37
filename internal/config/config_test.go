package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BATTLE_PORT", "BATTLE_SIZE", "BATTLE_PARTY_ORIGIN", "DATABASE_URL", "LOG_LEVEL"} {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, types.DefaultPort, cfg.Port)

	_, err = os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err, "defaults should be written next to the executable")

	again, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_ReadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	body := "port = 4000\nbattle_size = 3\nparty_origin = \"server\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(4000), cfg.Port)
	assert.Equal(t, uint8(3), cfg.BattleSize)
	assert.Equal(t, PartyFromServer, cfg.PartyOrigin)
	assert.Equal(t, "info", cfg.LogLevel, "missing keys keep their defaults")
}

func TestLoad_UndecodableFileIsRewritten(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("port = \"not a number"), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port = 28528")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("BATTLE_SIZE=4\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("BATTLE_PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(9000), cfg.Port)
	assert.Equal(t, uint8(4), cfg.BattleSize)
	assert.Equal(t, "warn", cfg.LogLevel, "process environment wins over .env")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"battle size too small", map[string]string{"BATTLE_SIZE": "1"}},
		{"battle size not a number", map[string]string{"BATTLE_SIZE": "two"}},
		{"port out of range", map[string]string{"BATTLE_PORT": "70000"}},
		{"unknown party origin", map[string]string{"BATTLE_PARTY_ORIGIN": "both"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(t.TempDir(), nil)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, ":28528", Default().Addr())
}
