package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/txn"
)

// BlockVersion is the current schema version stamped on every block.
const BlockVersion uint32 = 1

// genesisPreviousHash is the sentinel previous_hash of the genesis block.
const genesisPreviousHash = "0"

// Block is an index-numbered, hash-linked, proof-of-work-sealed container
// of transactions.
type Block struct {
	Version      uint32            `json:"version"`
	Index        uint64            `json:"index"`
	Timestamp    time.Time         `json:"timestamp"`
	Transactions []*txn.Transaction `json:"transactions"`
	Proof        uint64            `json:"proof"`
	PreviousHash string            `json:"previous_hash"`
	Hash         string            `json:"hash"`
}

// hashingView is the stable, field-ordered JSON object the block hash is
// computed over. It deliberately excludes Hash itself.
type hashingView struct {
	Version      uint32             `json:"version"`
	Index        uint64             `json:"index"`
	Timestamp    time.Time          `json:"timestamp"`
	Transactions []*txn.Transaction `json:"transactions"`
	Proof        uint64             `json:"proof"`
	PreviousHash string             `json:"previous_hash"`
}

// newCandidateBlock builds an unsealed block with a hash already computed
// over its current fields (proof, timestamp). Each proof-of-work attempt
// calls this again with a fresh timestamp and incremented proof.
func newCandidateBlock(index uint64, transactions []*txn.Transaction, proof uint64, previousHash string) (*Block, error) {
	b := &Block{
		Version:      BlockVersion,
		Index:        index,
		Timestamp:    time.Now().UTC(),
		Transactions: transactions,
		Proof:        proof,
		PreviousHash: previousHash,
	}
	hash, err := b.calculateHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// calculateHash returns the SHA-256 hash of the block's stable JSON
// encoding (version, index, timestamp, transactions, proof, previous_hash)
// as a hex string. Transactions are serialized with their own signatures.
func (b *Block) calculateHash() (string, error) {
	view := hashingView{
		Version:      b.Version,
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		Proof:        b.Proof,
		PreviousHash: b.PreviousHash,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chainerrors.ErrEncoding, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// newGenesisBlock builds the deterministic first block: index 0, no
// transactions, proof 1, previous_hash "0".
func newGenesisBlock() (*Block, error) {
	return newCandidateBlock(0, []*txn.Transaction{}, 1, genesisPreviousHash)
}
