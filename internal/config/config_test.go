package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledgercore/internal/config"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFromTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/var/lib/ledger"
difficulty = 5
mining_reward = 25.0
minimum_fee = 0.05
`), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ledger", cfg.DataDir)
	assert.Equal(t, uint8(5), cfg.Difficulty)
	assert.Equal(t, 25.0, cfg.MiningReward)
	assert.Equal(t, 0.05, cfg.MinimumFee)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte("difficulty = 5\n"), 0600))

	t.Setenv("LEDGER_DIFFICULTY", "6")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), cfg.Difficulty)
}
