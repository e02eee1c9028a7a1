package ledger

import (
	"fmt"
	"log/slog"

	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/txn"
)

// loadFromStorage populates the chain and account state from the
// configured storage handle. It returns empty=true if storage holds no
// blocks at all, signaling the caller to bootstrap a fresh genesis block.
//
// If the accounts bucket cannot be read (or is empty, which is
// indistinguishable from "lost" at this layer) account state is instead
// rebuilt by replaying every transaction recorded in every recovered
// block, in block then transaction order.
func (c *Chain) loadFromStorage() (empty bool, err error) {
	stored, err := c.storage.GetAllBlocks()
	if err != nil {
		return false, err
	}
	if len(stored) == 0 {
		return true, nil
	}

	blocks := make([]*Block, len(stored))
	for i, sb := range stored {
		blocks[i] = fromStoredBlock(sb)
	}

	c.chainMu.Lock()
	c.blocks = blocks
	c.chainMu.Unlock()

	accounts, err := c.storage.GetAllAccounts()
	if err != nil || len(accounts) == 0 {
		if err != nil {
			slog.Warn("ledger: account snapshot unreadable, rebuilding from block history", "error", err)
		} else {
			slog.Warn("ledger: account snapshot empty, rebuilding from block history")
		}
		if rebuildErr := c.rebuildAccountState(blocks); rebuildErr != nil {
			return false, rebuildErr
		}
		return false, nil
	}

	for _, a := range accounts {
		c.accounts.UpdateAccount(a)
	}
	return false, nil
}

// rebuildAccountState replays every transaction in blocks, in order,
// against a clean account registry: coinbase transactions credit the
// mining reward, everything else is applied as a transfer.
func (c *Chain) rebuildAccountState(blocks []*Block) error {
	for _, b := range blocks {
		for _, t := range b.Transactions {
			if err := applyRecoveredTransaction(c, t); err != nil {
				return fmt.Errorf("%w: replaying transaction %s in block %d: %v", chainerrors.ErrSystem, t.ID, b.Index, err)
			}
		}
	}
	return nil
}

func applyRecoveredTransaction(c *Chain, t *txn.Transaction) error {
	if t.IsCoinbase() {
		return c.accounts.ProcessMiningReward(t.Recipient, t.Amount)
	}
	return c.accounts.Transfer(t.Sender, t.Recipient, t.Amount, t.Fee, t.Nonce)
}
