// Package ledger is the top-level ledger: genesis bootstrap, mempool
// admission, proof-of-work block sealing, chain validation, and crash
// recovery. It composes internal/account, internal/crypto, internal/txn,
// and internal/storage.
package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/empower1/ledgercore/internal/account"
	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/storage"
	"github.com/empower1/ledgercore/internal/txn"
)

// Default configuration values (spec.md §6).
const (
	DefaultDifficulty   uint8   = 4
	DefaultMiningReward float64 = 50.0
	DefaultMinimumFee   float64 = 0.01
)

// Chain is the top-level ledger: an append-only, hash-linked, PoW-sealed
// block history, a mempool of admitted-but-not-yet-mined transactions,
// the account balance/nonce state, and optional durable storage.
type Chain struct {
	chainMu sync.Mutex
	blocks  []*Block

	mempoolMu sync.Mutex
	mempool   []*txn.Transaction

	accounts *account.State
	storage  *storage.Storage

	Difficulty   uint8
	MiningReward float64
	MinimumFee   float64
}

// New creates an in-memory chain with only a genesis block.
func New() (*Chain, error) {
	c := &Chain{
		accounts:     account.NewState(),
		Difficulty:   DefaultDifficulty,
		MiningReward: DefaultMiningReward,
		MinimumFee:   DefaultMinimumFee,
	}
	genesis, err := newGenesisBlock()
	if err != nil {
		return nil, err
	}
	c.blocks = []*Block{genesis}
	return c, nil
}

// NewWithStorage opens storage at path and either recovers an existing
// chain from it, or — if the store is empty — creates and persists a
// fresh genesis block.
func NewWithStorage(path string) (*Chain, error) {
	st, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		accounts:     account.NewState(),
		storage:      st,
		Difficulty:   DefaultDifficulty,
		MiningReward: DefaultMiningReward,
		MinimumFee:   DefaultMinimumFee,
	}

	empty, err := c.loadFromStorage()
	if err != nil {
		return nil, err
	}

	if empty {
		slog.Info("ledger: no existing chain found in storage, creating genesis block")
		genesis, err := newGenesisBlock()
		if err != nil {
			return nil, err
		}
		c.blocks = []*Block{genesis}
		if err := c.persistBlock(genesis); err != nil {
			return nil, err
		}
	} else {
		slog.Info("ledger: recovered chain from storage", "height", len(c.blocks)-1)
	}

	return c, nil
}

// lastBlockLocked must be called with chainMu held.
func (c *Chain) lastBlockLocked() *Block {
	return c.blocks[len(c.blocks)-1]
}

// GetChain returns a copy of every block currently in the chain.
func (c *Chain) GetChain() []*Block {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// GetPendingTransactions returns a copy of the mempool.
func (c *Chain) GetPendingTransactions() []*txn.Transaction {
	c.mempoolMu.Lock()
	defer c.mempoolMu.Unlock()
	out := make([]*txn.Transaction, len(c.mempool))
	copy(out, c.mempool)
	return out
}

// AccountState exposes the chain's account registry.
func (c *Chain) AccountState() *account.State {
	return c.accounts
}

// AddTransaction validates tx and appends it to the mempool, returning the
// index of the block it could land in next.
func (c *Chain) AddTransaction(tx *txn.Transaction) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, chainerrors.ErrCoinbaseNotAllowed
	}

	ok, err := tx.VerifySignature()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", chainerrors.ErrTxInvalidSignature, err)
	}
	if !ok {
		return 0, chainerrors.ErrTxInvalidSignature
	}

	if tx.Fee < c.MinimumFee {
		return 0, fmt.Errorf("%w: fee %v below minimum %v", chainerrors.ErrInvalidAmount, tx.Fee, c.MinimumFee)
	}

	sender := c.accounts.GetAccount(tx.Sender)
	if !sender.HasSufficientFunds(tx.TotalAmount()) {
		return 0, &chainerrors.InsufficientFundsError{Required: tx.TotalAmount(), Available: sender.Balance}
	}
	if !sender.IsValidNonce(tx.Nonce) {
		return 0, &chainerrors.InvalidNonceError{Expected: sender.Nonce, Got: tx.Nonce}
	}

	c.mempoolMu.Lock()
	defer c.mempoolMu.Unlock()

	for _, queued := range c.mempool {
		if queued.Sender == tx.Sender && queued.Nonce == tx.Nonce {
			return 0, fmt.Errorf("%w: nonce %d already queued for sender", chainerrors.ErrInvalidNonce, tx.Nonce)
		}
	}
	c.mempool = append(c.mempool, tx)

	c.chainMu.Lock()
	next := c.lastBlockLocked().Index + 1
	c.chainMu.Unlock()
	return next, nil
}

// IsValid checks hash linkage and recomputed hashes across the whole
// chain. The genesis block is exempt from linkage checks.
func (c *Chain) IsValid() bool {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()

	for i := 1; i < len(c.blocks); i++ {
		current := c.blocks[i]
		previous := c.blocks[i-1]

		recomputed, err := current.calculateHash()
		if err != nil || recomputed != current.Hash {
			return false
		}
		if current.PreviousHash != previous.Hash {
			return false
		}
	}
	return true
}

// GetBlock looks up a block by hash, consulting storage if configured.
func (c *Chain) GetBlock(hash string) (*Block, error) {
	c.chainMu.Lock()
	for _, b := range c.blocks {
		if b.Hash == hash {
			c.chainMu.Unlock()
			return b, nil
		}
	}
	c.chainMu.Unlock()

	if c.storage == nil {
		return nil, fmt.Errorf("%w: block %s", chainerrors.ErrNotFound, hash)
	}
	stored, err := c.storage.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return fromStoredBlock(stored), nil
}

// GetTransaction looks up a transaction by id, consulting storage if
// configured.
func (c *Chain) GetTransaction(id string) (*txn.Transaction, error) {
	c.chainMu.Lock()
	for _, b := range c.blocks {
		for _, t := range b.Transactions {
			if t.ID == id {
				c.chainMu.Unlock()
				return t, nil
			}
		}
	}
	c.chainMu.Unlock()

	if c.storage == nil {
		return nil, fmt.Errorf("%w: transaction %s", chainerrors.ErrNotFound, id)
	}
	stored, err := c.storage.GetTransaction(id)
	if err != nil {
		return nil, err
	}
	t := fromStoredTransaction(stored)
	return t, nil
}

// Close releases the chain's storage handle, if configured, after a final
// flush.
func (c *Chain) Close() error {
	if c.storage == nil {
		return nil
	}
	if err := c.storage.Flush(); err != nil {
		return err
	}
	return c.storage.Close()
}
