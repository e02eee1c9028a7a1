// Package config loads node configuration from an optional TOML file and
// environment variable overrides, the way a geth-style node does.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/empower1/ledgercore/internal/ledger"
)

// Config holds the tunables a node operator can set. Difficulty,
// MiningReward and MinimumFee default to the ledger package's reference
// constants; DataDir defaults to "./data".
type Config struct {
	DataDir      string  `toml:"data_dir"`
	Difficulty   uint8   `toml:"difficulty"`
	MiningReward float64 `toml:"mining_reward"`
	MinimumFee   float64 `toml:"minimum_fee"`
}

// Default returns the built-in defaults (spec.md §6).
func Default() Config {
	return Config{
		DataDir:      "./data",
		Difficulty:   ledger.DefaultDifficulty,
		MiningReward: ledger.DefaultMiningReward,
		MinimumFee:   ledger.DefaultMinimumFee,
	}
}

// Load starts from Default, overlays a TOML file at path if it exists, and
// finally overlays LEDGER_* environment variables. path may be empty, in
// which case only environment overrides are applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if v, ok := os.LookupEnv("LEDGER_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("LEDGER_DIFFICULTY"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEDGER_DIFFICULTY: %w", err)
		}
		cfg.Difficulty = uint8(n)
	}
	if v, ok := os.LookupEnv("LEDGER_MINING_REWARD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEDGER_MINING_REWARD: %w", err)
		}
		cfg.MiningReward = f
	}
	if v, ok := os.LookupEnv("LEDGER_MINIMUM_FEE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEDGER_MINIMUM_FEE: %w", err)
		}
		cfg.MinimumFee = f
	}

	return cfg, nil
}
