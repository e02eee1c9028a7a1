// Package txn implements the value-transfer transaction: construction,
// canonical byte-encoding for signing, signature attachment/verification,
// and the coinbase (reward) variant.
package txn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/crypto"
)

// Version is the current schema version stamped on every transaction.
const Version uint32 = 1

// Transaction is a signed value-transfer record.
type Transaction struct {
	Version   uint32                   `json:"version"`
	ID        string                   `json:"id"`
	Sender    crypto.Address           `json:"sender"`
	Recipient crypto.Address           `json:"recipient"`
	Amount    float64                  `json:"amount"`
	Fee       float64                  `json:"fee"`
	Nonce     uint64                   `json:"nonce"`
	Signature *crypto.DigitalSignature `json:"signature,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// signingPayload is the canonical, field-ordered struct hashed/signed over.
// It deliberately excludes Signature and fixes field order via struct tags,
// independent of Transaction's own json tag order.
type signingPayload struct {
	Version   uint32         `json:"version"`
	ID        string         `json:"id"`
	Sender    crypto.Address `json:"sender"`
	Recipient crypto.Address `json:"recipient"`
	Amount    float64        `json:"amount"`
	Fee       float64        `json:"fee"`
	Nonce     uint64         `json:"nonce"`
	Timestamp time.Time      `json:"timestamp"`
}

// New constructs a fresh, unsigned transaction with a new UUIDv4 id and the
// current UTC timestamp.
func New(sender, recipient crypto.Address, amount, fee float64, nonce uint64) *Transaction {
	return &Transaction{
		Version:   Version,
		ID:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Nonce:     nonce,
		Timestamp: time.Now().UTC(),
	}
}

// NewCoinbase constructs the mining-reward transaction: sender is the
// system sentinel address, fee is zero, nonce is zero, unsigned.
func NewCoinbase(recipient crypto.Address, amount float64) *Transaction {
	return &Transaction{
		Version:   Version,
		ID:        uuid.New().String(),
		Sender:    crypto.SystemAddress,
		Recipient: recipient,
		Amount:    amount,
		Fee:       0,
		Nonce:     0,
		Timestamp: time.Now().UTC(),
	}
}

// IsCoinbase is a structural test: sender is the system sentinel, fee is
// zero, nonce is zero.
func (t *Transaction) IsCoinbase() bool {
	return t.Sender == crypto.SystemAddress && t.Fee == 0 && t.Nonce == 0
}

// TotalAmount returns amount + fee.
func (t *Transaction) TotalAmount() float64 {
	return t.Amount + t.Fee
}

func (t *Transaction) canonicalBytes() ([]byte, error) {
	payload := signingPayload{
		Version:   t.Version,
		ID:        t.ID,
		Sender:    t.Sender,
		Recipient: t.Recipient,
		Amount:    t.Amount,
		Fee:       t.Fee,
		Nonce:     t.Nonce,
		Timestamp: t.Timestamp,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrEncoding, err)
	}
	return data, nil
}

// Sign attaches a signature over the canonical bytes. Fails with
// ErrAlreadySigned if already signed, ErrInvalidSenderAddress if the
// wallet's address does not match Sender.
func (t *Transaction) Sign(wallet *crypto.Wallet) error {
	if t.Signature != nil {
		return chainerrors.ErrAlreadySigned
	}
	if wallet.Address() != t.Sender {
		return fmt.Errorf("%w: wallet address does not match sender", chainerrors.ErrInvalidSenderAddress)
	}

	msg, err := t.canonicalBytes()
	if err != nil {
		return err
	}
	sig, err := wallet.Sign(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrSigning, err)
	}
	t.Signature = &sig
	return nil
}

// VerifySignature recomputes the canonical encoding and checks the
// attached signature against the sender's derived public key. Fails with
// ErrNotSigned if no signature is attached.
func (t *Transaction) VerifySignature() (bool, error) {
	if t.Signature == nil {
		return false, chainerrors.ErrNotSigned
	}
	pub, err := t.Sender.ToPublicKey()
	if err != nil {
		return false, err
	}
	msg, err := t.canonicalBytes()
	if err != nil {
		return false, err
	}
	return crypto.VerifySignature(msg, *t.Signature, pub)
}
