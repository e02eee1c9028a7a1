package ledger_test

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledgercore/internal/crypto"
	"github.com/empower1/ledgercore/internal/ledger"
	"github.com/empower1/ledgercore/internal/txn"
)

func newWallet(t *testing.T) *crypto.Wallet {
	t.Helper()
	w, err := crypto.NewWallet()
	require.NoError(t, err)
	return w
}

func signedTransfer(t *testing.T, from *crypto.Wallet, to crypto.Address, amount, fee float64, nonce uint64) *txn.Transaction {
	t.Helper()
	tx := txn.New(from.Address(), to, amount, fee, nonce)
	require.NoError(t, tx.Sign(from))
	return tx
}

// S1: a fresh chain has exactly one block, the genesis block.
func TestNewChainHasGenesisBlock(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	chain := c.GetChain()
	require.Len(t, chain, 1)
	assert.Equal(t, uint64(0), chain[0].Index)
	assert.Equal(t, "0", chain[0].PreviousHash)
	assert.True(t, c.IsValid())
}

// S2: a valid signed transfer is admitted, mined, and balances update.
func TestHappyPathTransferAndMine(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	bob := newWallet(t)

	require.NoError(t, c.AccountState().ProcessMiningReward(alice.Address(), 100))

	tx := signedTransfer(t, alice, bob.Address(), 10, 0.1, 0)
	_, err = c.AddTransaction(tx)
	require.NoError(t, err)

	block, err := c.MineBlock(alice.Address())
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2) // coinbase + transfer

	aliceAfter := c.AccountState().GetAccount(alice.Address())
	bobAfter := c.AccountState().GetAccount(bob.Address())

	assert.Equal(t, 10.0, bobAfter.Balance)
	assert.Equal(t, 100.0-10.1+ledger.DefaultMiningReward, aliceAfter.Balance)
	assert.Equal(t, uint64(1), aliceAfter.Nonce)
	assert.Empty(t, c.GetPendingTransactions())
	assert.True(t, c.IsValid())
}

// S3: a transfer exceeding the sender's balance is rejected at admission.
func TestAddTransactionInsufficientFunds(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	bob := newWallet(t)

	tx := signedTransfer(t, alice, bob.Address(), 10, 0.1, 0)
	_, err = c.AddTransaction(tx)
	assert.Error(t, err)
	assert.Empty(t, c.GetPendingTransactions())
}

// S4: a transfer with the wrong nonce is rejected at admission.
func TestAddTransactionInvalidNonce(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	bob := newWallet(t)
	require.NoError(t, c.AccountState().ProcessMiningReward(alice.Address(), 100))

	tx := signedTransfer(t, alice, bob.Address(), 10, 0.1, 5)
	_, err = c.AddTransaction(tx)
	assert.Error(t, err)
}

// S5: a transaction whose sender address does not match its signer is
// rejected: verification fails because the signature was produced by a
// different keypair than the one the sender address derives from.
func TestAddTransactionForgedSenderFails(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	mallory := newWallet(t)
	bob := newWallet(t)
	require.NoError(t, c.AccountState().ProcessMiningReward(alice.Address(), 100))

	tx := txn.New(mallory.Address(), bob.Address(), 10, 0.1, 0)
	require.NoError(t, tx.Sign(mallory))
	tx.Sender = alice.Address() // forged after signing by mallory

	_, err = c.AddTransaction(tx)
	assert.Error(t, err)
}

// coinbase transactions cannot be submitted directly to the mempool.
func TestAddTransactionRejectsCoinbase(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	tx := txn.NewCoinbase("someone", 50)
	_, err = c.AddTransaction(tx)
	assert.Error(t, err)
}

// duplicate nonces for the same sender cannot both sit in the mempool.
func TestAddTransactionRejectsDuplicateQueuedNonce(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	bob := newWallet(t)
	require.NoError(t, c.AccountState().ProcessMiningReward(alice.Address(), 100))

	tx1 := signedTransfer(t, alice, bob.Address(), 5, 0.1, 0)
	_, err = c.AddTransaction(tx1)
	require.NoError(t, err)

	tx2 := signedTransfer(t, alice, bob.Address(), 6, 0.1, 0)
	_, err = c.AddTransaction(tx2)
	assert.Error(t, err)
}

// mining aborts on the first invalid queued transfer and leaves the
// mempool unchanged.
func TestMineBlockAbortsOnFirstFailureLeavesMempoolUnchanged(t *testing.T) {
	c, err := ledger.New()
	require.NoError(t, err)

	alice := newWallet(t)
	bob := newWallet(t)
	require.NoError(t, c.AccountState().ProcessMiningReward(alice.Address(), 5))

	// admission requires sufficient funds, so to reach MineBlock with a
	// transfer that fails at transfer-time we drain alice's balance via a
	// mining reward clawback is not available; instead we reduce her
	// balance after admission to force the mine-time transfer to fail.
	tx := signedTransfer(t, alice, bob.Address(), 4, 0.1, 0)
	_, err = c.AddTransaction(tx)
	require.NoError(t, err)

	drained := c.AccountState().GetAccount(alice.Address())
	drained.Balance = 0
	c.AccountState().UpdateAccount(drained)

	before := c.GetPendingTransactions()
	_, err = c.MineBlock(bob.Address())
	require.Error(t, err)

	after := c.GetPendingTransactions()
	assert.Equal(t, before, after)
}

// S6 (snapshot intact): reopening the same storage restores the chain and
// the account state from the persisted account snapshot.
func TestRecoveryRestoresAccountStateFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	alice := newWallet(t)
	bob := newWallet(t)

	c1, err := ledger.NewWithStorage(dbPath)
	require.NoError(t, err)

	require.NoError(t, c1.AccountState().ProcessMiningReward(alice.Address(), 100))
	tx := signedTransfer(t, alice, bob.Address(), 10, 0.1, 0)
	_, err = c1.AddTransaction(tx)
	require.NoError(t, err)
	_, err = c1.MineBlock(alice.Address())
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	// Reopen: accounts bucket has nothing erased in this path, so this
	// exercises the normal recovery route using the persisted snapshot.
	c2, err := ledger.NewWithStorage(dbPath)
	require.NoError(t, err)
	defer c2.Close()

	bobAfter := c2.AccountState().GetAccount(bob.Address())
	assert.Equal(t, 10.0, bobAfter.Balance)
	assert.True(t, c2.IsValid())
	assert.Len(t, c2.GetChain(), 2)
}

// S6 (lost snapshot): when the accounts bucket is empty, recovery rebuilds
// balances by replaying every transaction recorded in the recovered blocks.
func TestRecoveryRebuildsAccountStateWhenSnapshotLost(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	alice := newWallet(t)
	bob := newWallet(t)

	c1, err := ledger.NewWithStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, c1.AccountState().ProcessMiningReward(alice.Address(), 100))
	tx := signedTransfer(t, alice, bob.Address(), 10, 0.1, 0)
	_, err = c1.AddTransaction(tx)
	require.NoError(t, err)
	_, err = c1.MineBlock(alice.Address())
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	// Simulate a lost account snapshot by wiping the accounts bucket
	// directly, leaving block history intact.
	db, err := bolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte("accounts"))
		var keys [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, db.Close())

	c2, err := ledger.NewWithStorage(dbPath)
	require.NoError(t, err)
	defer c2.Close()

	aliceAfter := c2.AccountState().GetAccount(alice.Address())
	bobAfter := c2.AccountState().GetAccount(bob.Address())
	assert.Equal(t, 10.0, bobAfter.Balance)
	assert.Equal(t, 100.0-10.1+ledger.DefaultMiningReward, aliceAfter.Balance)
}
