// Package account implements the per-address balance/nonce record and the
// concurrent registry of all accounts known to the ledger.
package account

import (
	"fmt"
	"sync"

	"github.com/empower1/ledgercore/internal/chainerrors"
	"github.com/empower1/ledgercore/internal/crypto"
)

// Version is the current schema version stamped on every account.
const Version uint32 = 1

// Account is a per-address balance/nonce record.
type Account struct {
	Version uint32         `json:"version"`
	Address crypto.Address `json:"address"`
	Balance float64        `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

// New returns a fresh, zero-balance account for address.
func New(address crypto.Address) Account {
	return Account{
		Version: Version,
		Address: address,
		Balance: 0,
		Nonce:   0,
	}
}

func (a *Account) deposit(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive: %v", chainerrors.ErrInvalidAmount, amount)
	}
	a.Balance += amount
	return nil
}

func (a *Account) withdraw(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive: %v", chainerrors.ErrInvalidAmount, amount)
	}
	if a.Balance < amount {
		return &chainerrors.InsufficientFundsError{Required: amount, Available: a.Balance}
	}
	a.Balance -= amount
	return nil
}

// HasSufficientFunds reports whether the account can cover amount.
func (a *Account) HasSufficientFunds(amount float64) bool {
	return a.Balance >= amount
}

// IsValidNonce reports whether nonce matches the account's current nonce.
func (a *Account) IsValidNonce(nonce uint64) bool {
	return nonce == a.Nonce
}

// State is a thread-safe registry mapping Address to Account.
type State struct {
	mu       sync.RWMutex
	accounts map[crypto.Address]Account
}

// NewState returns an empty account registry.
func NewState() *State {
	return &State{
		accounts: make(map[crypto.Address]Account),
	}
}

// GetAccount returns the stored account for address, or a freshly
// constructed zero-balance account if none is stored yet. It does not
// insert the fresh account.
func (s *State) GetAccount(address crypto.Address) Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acct, ok := s.accounts[address]; ok {
		return acct
	}
	return New(address)
}

// UpdateAccount writes acct through by its address.
func (s *State) UpdateAccount(acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.Address] = acct
}

// GetAllAccounts returns every account currently held in the registry, in
// unspecified order.
func (s *State) GetAllAccounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	return out
}

// Transfer debits from's balance by amount+fee (the fee is burned, never
// credited to anyone — see DESIGN.md), credits to's balance by amount, and
// increments from's nonce. nonce must match from's current nonce.
func (s *State) Transfer(from, to crypto.Address, amount, fee float64, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender := s.getLocked(from)
	if !sender.IsValidNonce(nonce) {
		return &chainerrors.InvalidNonceError{Expected: sender.Nonce, Got: nonce}
	}

	total := amount + fee
	if !sender.HasSufficientFunds(total) {
		return &chainerrors.InsufficientFundsError{Required: total, Available: sender.Balance}
	}

	recipient := s.getLocked(to)

	if err := sender.withdraw(total); err != nil {
		return err
	}
	if err := recipient.deposit(amount); err != nil {
		return err
	}
	sender.Nonce++

	s.accounts[sender.Address] = sender
	s.accounts[recipient.Address] = recipient
	return nil
}

// ProcessMiningReward credits reward to miner's balance. reward must be
// positive.
func (s *State) ProcessMiningReward(miner crypto.Address, reward float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getLocked(miner)
	if err := acct.deposit(reward); err != nil {
		return err
	}
	s.accounts[acct.Address] = acct
	return nil
}

// getLocked must be called with s.mu held.
func (s *State) getLocked(address crypto.Address) Account {
	if acct, ok := s.accounts[address]; ok {
		return acct
	}
	return New(address)
}
