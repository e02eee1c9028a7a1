package ledger

import (
	"fmt"
	"strings"

	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/crypto"
	"github.com/empower1/ledgercore/internal/txn"
)

// MineBlock drains the mempool into a new block: it constructs a coinbase
// reward transaction for minerAddress, applies every queued transfer to
// account state in order, runs proof-of-work over the resulting
// transaction set, appends the sealed block to the chain, and — if
// configured — persists the block, its transactions, and every account in
// the account map.
//
// The first transfer failure aborts the whole mine: the error is
// propagated and the mempool is left exactly as it was (transfers already
// applied to account state before the failing one are not rolled back,
// matching the reference design; see DESIGN.md).
func (c *Chain) MineBlock(minerAddress crypto.Address) (*Block, error) {
	c.mempoolMu.Lock()
	pending := make([]*txn.Transaction, len(c.mempool))
	copy(pending, c.mempool)
	c.mempoolMu.Unlock()

	reward := txn.NewCoinbase(minerAddress, c.MiningReward)

	for _, t := range pending {
		if err := c.accounts.Transfer(t.Sender, t.Recipient, t.Amount, t.Fee, t.Nonce); err != nil {
			return nil, fmt.Errorf("mining aborted on transaction %s: %w", t.ID, err)
		}
	}
	if err := c.accounts.ProcessMiningReward(minerAddress, c.MiningReward); err != nil {
		return nil, err
	}

	sealed := append(append([]*txn.Transaction{}, pending...), reward)

	c.mempoolMu.Lock()
	c.mempool = c.mempool[len(pending):]
	c.mempoolMu.Unlock()

	c.chainMu.Lock()
	previous := c.lastBlockLocked()
	index := previous.Index + 1
	previousHash := previous.Hash
	c.chainMu.Unlock()

	block, err := c.proofOfWork(index, sealed, previousHash)
	if err != nil {
		return nil, err
	}

	c.chainMu.Lock()
	c.blocks = append(c.blocks, block)
	c.chainMu.Unlock()

	if c.storage != nil {
		if err := c.persistBlock(block); err != nil {
			return nil, err
		}
		if err := c.persistAllAccounts(); err != nil {
			return nil, err
		}
		if err := c.storage.Flush(); err != nil {
			return nil, err
		}
	}

	return block, nil
}

// proofOfWork searches for the smallest proof producing a block hash with
// Difficulty leading hex zeros. Each attempt rebuilds the candidate block
// so its timestamp is current at the moment of hashing.
func (c *Chain) proofOfWork(index uint64, transactions []*txn.Transaction, previousHash string) (*Block, error) {
	target := strings.Repeat("0", int(c.Difficulty))

	for proof := uint64(0); ; proof++ {
		candidate, err := newCandidateBlock(index, transactions, proof, previousHash)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(candidate.Hash, target) {
			return candidate, nil
		}
	}
}

// persistBlock saves a block and each of its transactions to storage.
func (c *Chain) persistBlock(b *Block) error {
	if err := c.storage.SaveBlock(toStoredBlock(b)); err != nil {
		return err
	}
	for _, t := range b.Transactions {
		if err := c.storage.SaveTransaction(toStoredTransaction(t)); err != nil {
			return err
		}
	}
	return nil
}

// persistAllAccounts saves every account currently in the account map, not
// just those touched by the just-sealed block: balances set directly
// through AccountState (e.g. ProcessMiningReward called outside of
// MineBlock) must also survive a restart.
func (c *Chain) persistAllAccounts() error {
	for _, acct := range c.accounts.GetAllAccounts() {
		if err := c.storage.SaveAccount(acct); err != nil {
			return fmt.Errorf("%w: %v", chainerrors.ErrDatabase, err)
		}
	}
	return nil
}
