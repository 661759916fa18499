package vault

import (
	"errors"

	"github.com/holiman/uint256"
)

// Vault returns a copy of the stored vault.
func (e *Engine) Vault(admin [32]byte) (*VaultState, error) {
	return e.load(admin)
}

// CustodyBalance reports the balance held by the vault's custody account,
// including the storage reserve funded at initialization.
func (e *Engine) CustodyBalance(admin [32]byte) (*uint256.Int, error) {
	if _, err := e.load(admin); err != nil {
		return nil, err
	}
	balance, err := e.state.Balance(e.state.CustodyAddress(admin))
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return new(uint256.Int), nil
	}
	return balance.Clone(), nil
}

// Role classifies id relative to the vault.
func (e *Engine) Role(admin, id [32]byte) (Role, error) {
	st, err := e.load(admin)
	if err != nil {
		return RoleOutsider, err
	}
	return st.RoleOf(id), nil
}

// Allowance describes what a payee may withdraw right now.
type Allowance struct {
	Limited   bool
	Remaining uint64
	Window    EpochSpending
}

// RemainingAllowance reports the payee's spend capacity at the current time.
// An unlimited payee reports Limited=false.
func (e *Engine) RemainingAllowance(admin, payee [32]byte) (Allowance, error) {
	st, err := e.load(admin)
	if err != nil {
		return Allowance{}, err
	}
	if !st.HasPayee(payee) {
		return Allowance{}, ErrPayeeNotFound
	}
	window, ok := st.LimitFor(payee)
	if !ok {
		return Allowance{}, nil
	}
	now := e.now()
	return Allowance{Limited: true, Remaining: window.Remaining(now), Window: window.rolled(now)}, nil
}

// DuePayout reports the schedule the next claim would select and whether it
// can be claimed at the current time.
func (e *Engine) DuePayout(admin [32]byte) (int, PayoutSchedule, bool, error) {
	st, err := e.load(admin)
	if err != nil {
		return -1, PayoutSchedule{}, false, err
	}
	idx, schedule, err := st.DuePayout(e.now())
	switch {
	case err == nil:
		return idx, schedule, true, nil
	case errors.Is(err, ErrPayoutTimeNotReached):
		return idx, schedule, false, nil
	default:
		return idx, schedule, false, err
	}
}
