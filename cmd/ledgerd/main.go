// Command ledgerd boots a single-node ledger and exposes a small set of
// operator commands. It carries no HTTP surface, routing, or middleware —
// those are a separate concern from the ledger core this binary wraps.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/empower1/ledgercore/internal/config"
	"github.com/empower1/ledgercore/internal/crypto"
	"github.com/empower1/ledgercore/internal/ledger"
)

func main() {
	app := &cli.App{
		Name:  "ledgerd",
		Usage: "single-node ledger core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
		},
		Commands: []*cli.Command{
			runCommand,
			walletCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd:", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "open (or create) the ledger database and report its state",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "data",
			Usage: "directory holding the ledger database",
		},
		&cli.UintFlag{
			Name:  "difficulty",
			Usage: "proof-of-work difficulty, in leading hex zeros",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.Load(ctx.String("config"))
		if err != nil {
			return err
		}
		if ctx.IsSet("data") {
			cfg.DataDir = ctx.String("data")
		}
		if ctx.IsSet("difficulty") {
			cfg.Difficulty = uint8(ctx.Uint("difficulty"))
		}

		dbPath := filepath.Join(cfg.DataDir, "ledger.db")
		slog.Info("ledgerd: opening ledger", "path", dbPath, "difficulty", cfg.Difficulty)

		chain, err := ledger.NewWithStorage(dbPath)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer chain.Close()

		chain.Difficulty = cfg.Difficulty
		chain.MiningReward = cfg.MiningReward
		chain.MinimumFee = cfg.MinimumFee

		blocks := chain.GetChain()
		genesis := blocks[0]
		slog.Info("ledgerd: ledger ready",
			"height", len(blocks)-1,
			"genesis_hash", genesis.Hash,
			"valid", chain.IsValid(),
			"pending_transactions", len(chain.GetPendingTransactions()),
		)
		return nil
	},
}

var walletCommand = &cli.Command{
	Name:  "wallet",
	Usage: "wallet utilities",
	Subcommands: []*cli.Command{
		{
			Name:  "new",
			Usage: "generate a fresh keypair and print its address and secret key",
			Action: func(ctx *cli.Context) error {
				w, err := crypto.NewWallet()
				if err != nil {
					return err
				}
				fmt.Println("address:", w.Address())
				fmt.Printf("secret:  %x\n", w.ExportSecretKey())
				return nil
			},
		},
	},
}
