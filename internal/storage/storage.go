// Package storage is the durable embedded key/value store backing the
// ledger: four named buckets (blocks, transactions, accounts, metadata),
// gob-encoded records, and fault-tolerant bulk reads for recovery.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/empower1/ledgercore/internal/account"
	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/crypto"
)

var (
	bucketBlocks       = []byte("blocks")
	bucketTransactions = []byte("transactions")
	bucketAccounts     = []byte("accounts")
	bucketMetadata     = []byte("metadata")

	metaLatestBlockHash = []byte("latest_block_hash")
	metaBlockHeight     = []byte("block_height")
)

// Storage does not import internal/ledger (that would create an import
// cycle, since internal/ledger imports storage). It declares its own
// persistence-facing shapes instead, StoredBlock and StoredTransaction
// below, and internal/ledger converts its Block and Transaction values to
// and from them.

// StoredBlock is the on-disk representation of a sealed block.
type StoredBlock struct {
	Version          uint32
	Index            uint64
	TimestampUnixNano int64
	Transactions     []StoredTransaction
	Proof            uint64
	PreviousHash     string
	Hash             string
}

// StoredTransaction is the on-disk representation of a transaction.
type StoredTransaction struct {
	Version           uint32
	ID                string
	Sender            crypto.Address
	Recipient         crypto.Address
	Amount            float64
	Fee               float64
	Nonce             uint64
	Signature         string
	HasSignature      bool
	TimestampUnixNano int64
}

// Storage is the durable embedded key/value store.
type Storage struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and ensures
// all four buckets exist.
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDatabase, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBlocks, bucketTransactions, bucketAccounts, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDatabase, err)
	}

	return &Storage{db: db}, nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrDeserialization, err)
	}
	return nil
}

// SaveBlock writes the block keyed by its hash and updates the
// latest_block_hash / block_height metadata entries.
func (s *Storage) SaveBlock(b StoredBlock) error {
	value, err := encode(b)
	if err != nil {
		return err
	}

	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, b.Index)

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put([]byte(b.Hash), value); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMetadata).Put(metaLatestBlockHash, []byte(b.Hash)); err != nil {
			return err
		}
		return tx.Bucket(bucketMetadata).Put(metaBlockHeight, heightBytes)
	})
}

// GetBlock returns the block stored under hash, or ErrNotFound.
func (s *Storage) GetBlock(hash string) (StoredBlock, error) {
	var block StoredBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlocks).Get([]byte(hash))
		if raw == nil {
			return fmt.Errorf("%w: block %s", chainerrors.ErrNotFound, hash)
		}
		return decode(raw, &block)
	})
	return block, err
}

// GetAllBlocks iterates the blocks bucket, deserializing best-effort:
// corrupt entries are logged and skipped. If at least one block decodes
// successfully the call succeeds with the result sorted by Index
// ascending; if none decode it fails with ErrDeserialization.
func (s *Storage) GetAllBlocks() ([]StoredBlock, error) {
	var blocks []StoredBlock
	var failures int

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).ForEach(func(k, v []byte) error {
			var b StoredBlock
			if err := decode(v, &b); err != nil {
				failures++
				slog.Warn("storage: failed to deserialize block, skipping", "key", string(k), "error", err)
				return nil
			}
			blocks = append(blocks, b)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDatabase, err)
	}

	if len(blocks) == 0 && failures > 0 {
		return nil, fmt.Errorf("%w: failed to deserialize any of %d blocks", chainerrors.ErrDeserialization, failures)
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })
	return blocks, nil
}

// SaveTransaction writes tx keyed by its id. Idempotent.
func (s *Storage) SaveTransaction(t StoredTransaction) error {
	value, err := encode(t)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put([]byte(t.ID), value)
	})
}

// GetTransaction returns the transaction stored under id, or ErrNotFound.
func (s *Storage) GetTransaction(id string) (StoredTransaction, error) {
	var t StoredTransaction
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTransactions).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: transaction %s", chainerrors.ErrNotFound, id)
		}
		return decode(raw, &t)
	})
	return t, err
}

// SaveAccount writes a keyed by its address. Idempotent.
func (s *Storage) SaveAccount(a account.Account) error {
	value, err := encode(a)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put([]byte(a.Address), value)
	})
}

// GetAccount returns the stored account for address, or a fresh
// zero-balance account if none is stored (mirrors AccountState's
// read-through default).
func (s *Storage) GetAccount(address crypto.Address) (account.Account, error) {
	var a account.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAccounts).Get([]byte(address))
		if raw == nil {
			a = account.New(address)
			return nil
		}
		return decode(raw, &a)
	})
	return a, err
}

// GetAllAccounts iterates the accounts bucket, deserializing best-effort:
// corrupt entries are logged and skipped. If none decode successfully it
// fails with ErrDeserialization.
func (s *Storage) GetAllAccounts() ([]account.Account, error) {
	var accounts []account.Account
	var failures int

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var a account.Account
			if err := decode(v, &a); err != nil {
				failures++
				slog.Warn("storage: failed to deserialize account, skipping", "key", string(k), "error", err)
				return nil
			}
			accounts = append(accounts, a)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDatabase, err)
	}

	if len(accounts) == 0 && failures > 0 {
		return nil, fmt.Errorf("%w: failed to deserialize any of %d accounts", chainerrors.ErrDeserialization, failures)
	}

	return accounts, nil
}

// GetLatestBlockHash returns the latest_block_hash metadata entry.
func (s *Storage) GetLatestBlockHash() (string, error) {
	var hash string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMetadata).Get(metaLatestBlockHash)
		if raw == nil {
			return fmt.Errorf("%w: latest block hash", chainerrors.ErrNotFound)
		}
		hash = string(raw)
		return nil
	})
	return hash, err
}

// GetBlockHeight returns the block_height metadata entry, or 0 if absent
// (empty blockchain).
func (s *Storage) GetBlockHeight() (uint64, error) {
	var height uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMetadata).Get(metaBlockHeight)
		if raw == nil {
			return nil
		}
		height = binary.BigEndian.Uint64(raw)
		return nil
	})
	return height, err
}

// Flush forces durable persistence of all prior writes. bbolt commits
// every Update transaction to disk synchronously, so this is a no-op
// hook kept for parity with the reference design's explicit flush step.
func (s *Storage) Flush() error {
	return nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}
