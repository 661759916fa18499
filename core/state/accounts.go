package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"devquestvault/core/types"
)

// ErrInsufficientBalance is returned by Transfer when the source account
// cannot cover the amount.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

var errBalanceOverflow = errors.New("state: balance overflow")

type storedAccount struct {
	Nonce   uint64
	Balance *uint256.Int
}

func accountKey(id [32]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(id))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], id[:])
	return buf
}

// GetAccount returns the account stored under id. Missing accounts are
// returned empty.
func (m *Manager) GetAccount(id [32]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(id), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load account: %w", err)
	}
	account := types.NewAccount()
	if !ok {
		return account, nil
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance.Set(stored.Balance)
	}
	return account, nil
}

// PutAccount stages the account under id.
func (m *Manager) PutAccount(id [32]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	stored := storedAccount{Nonce: account.Nonce, Balance: new(uint256.Int)}
	if account.Balance != nil {
		stored.Balance.Set(account.Balance)
	}
	return m.KVPut(accountKey(id), &stored)
}

// Balance returns the spendable balance of id.
func (m *Manager) Balance(id [32]byte) (*uint256.Int, error) {
	account, err := m.GetAccount(id)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// Credit mints amount into id. It is used by operator funding and tests.
func (m *Manager) Credit(id [32]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	account, err := m.GetAccount(id)
	if err != nil {
		return err
	}
	if _, overflow := account.Balance.AddOverflow(account.Balance, amount); overflow {
		return errBalanceOverflow
	}
	return m.PutAccount(id, account)
}

// Transfer moves amount from one account to another. Both accounts are staged
// together so a discarded transaction leaves neither changed.
func (m *Manager) Transfer(from, to [32]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if from == to {
		balance, err := m.Balance(from)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return ErrInsufficientBalance
		}
		return nil
	}
	src, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, src.Balance.Dec(), amount.Dec())
	}
	dst, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	if _, overflow := dst.Balance.AddOverflow(dst.Balance, amount); overflow {
		return errBalanceOverflow
	}
	src.Balance.Sub(src.Balance, amount)
	src.Nonce++
	if err := m.PutAccount(from, src); err != nil {
		return err
	}
	return m.PutAccount(to, dst)
}
