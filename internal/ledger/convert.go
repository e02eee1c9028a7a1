package ledger

import (
	"time"

	"github.com/empower1/ledgercore/internal/crypto"
	"github.com/empower1/ledgercore/internal/storage"
	"github.com/empower1/ledgercore/internal/txn"
)

// toStoredTransaction flattens a Transaction into its on-disk shape.
func toStoredTransaction(t *txn.Transaction) storage.StoredTransaction {
	st := storage.StoredTransaction{
		Version:           t.Version,
		ID:                t.ID,
		Sender:            t.Sender,
		Recipient:         t.Recipient,
		Amount:            t.Amount,
		Fee:               t.Fee,
		Nonce:             t.Nonce,
		TimestampUnixNano: t.Timestamp.UnixNano(),
	}
	if t.Signature != nil {
		st.Signature = t.Signature.String()
		st.HasSignature = true
	}
	return st
}

// fromStoredTransaction reconstructs a Transaction from its on-disk shape.
func fromStoredTransaction(st storage.StoredTransaction) *txn.Transaction {
	t := &txn.Transaction{
		Version:   st.Version,
		ID:        st.ID,
		Sender:    st.Sender,
		Recipient: st.Recipient,
		Amount:    st.Amount,
		Fee:       st.Fee,
		Nonce:     st.Nonce,
		Timestamp: time.Unix(0, st.TimestampUnixNano).UTC(),
	}
	if st.HasSignature {
		sig := crypto.DigitalSignature(st.Signature)
		t.Signature = &sig
	}
	return t
}

// toStoredBlock flattens a Block into its on-disk shape.
func toStoredBlock(b *Block) storage.StoredBlock {
	txs := make([]storage.StoredTransaction, len(b.Transactions))
	for i, t := range b.Transactions {
		txs[i] = toStoredTransaction(t)
	}
	return storage.StoredBlock{
		Version:           b.Version,
		Index:             b.Index,
		TimestampUnixNano: b.Timestamp.UnixNano(),
		Transactions:      txs,
		Proof:             b.Proof,
		PreviousHash:      b.PreviousHash,
		Hash:              b.Hash,
	}
}

// fromStoredBlock reconstructs a Block from its on-disk shape.
func fromStoredBlock(sb storage.StoredBlock) *Block {
	txs := make([]*txn.Transaction, len(sb.Transactions))
	for i, t := range sb.Transactions {
		txs[i] = fromStoredTransaction(t)
	}
	return &Block{
		Version:      sb.Version,
		Index:        sb.Index,
		Timestamp:    time.Unix(0, sb.TimestampUnixNano).UTC(),
		Transactions: txs,
		Proof:        sb.Proof,
		PreviousHash: sb.PreviousHash,
		Hash:         sb.Hash,
	}
}
