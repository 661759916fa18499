package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"devquestvault/native/vault"
	"devquestvault/storage"
)

func TestVaultRecordRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), DefaultRentParams())
	admin, payee := testIdentity(1), testIdentity(2)
	st := &vault.VaultState{
		Admin:       admin,
		Payees:      [][32]byte{payee},
		Schedules:   []vault.PayoutSchedule{{Amount: 5, NextPayoutTime: 1_700_000_000, Interval: 60, Active: true}},
		Limits:      []vault.EpochLimit{{Payee: payee, Spending: vault.EpochSpending{EpochStart: 10, Spent: 3, Limit: 9, Duration: 60}}},
		Initialized: true,
	}
	require.NoError(t, mgr.VaultPut(st))
	require.NoError(t, mgr.Commit())

	got, ok, err := mgr.VaultGet(admin)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, st, got)

	require.NoError(t, mgr.VaultDelete(admin))
	_, ok, err = mgr.VaultGet(admin)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVaultPutRejectsNegativeTimestamps(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), DefaultRentParams())
	st := &vault.VaultState{
		Admin:       testIdentity(1),
		Payees:      [][32]byte{},
		Schedules:   []vault.PayoutSchedule{{Amount: 5, NextPayoutTime: -1, Interval: 60, Active: true}},
		Initialized: true,
	}
	require.ErrorIs(t, mgr.VaultPut(st), errNegativeTimestamp)
}

func TestCustodyAddressIsDeterministic(t *testing.T) {
	a, b := testIdentity(1), testIdentity(2)
	require.Equal(t, CustodyAddress(a), CustodyAddress(a))
	require.NotEqual(t, CustodyAddress(a), CustodyAddress(b))
	require.NotEqual(t, VaultStateAddress(a), CustodyAddress(a))
}

// The engine runs against the manager and a discarded transaction leaves
// neither the vault record nor the balances changed.
func TestEngineAgainstManager(t *testing.T) {
	db := storage.NewMemDB()
	rent := DefaultRentParams()
	admin, payee := testIdentity(1), testIdentity(2)
	reserve := rent.MinimumBalance(vault.StateSpace)

	seed := NewManager(db, rent)
	require.NoError(t, seed.Credit(admin, uint256.NewInt(reserve+1_000)))
	require.NoError(t, seed.Commit())

	run := func(fn func(*vault.Engine) error) error {
		mgr := NewManager(db, rent)
		engine := vault.NewEngine()
		engine.SetState(mgr)
		engine.SetNowFunc(func() int64 { return 100 })
		if err := fn(engine); err != nil {
			mgr.Discard()
			return err
		}
		return mgr.Commit()
	}

	require.NoError(t, run(func(e *vault.Engine) error {
		_, err := e.Initialize(admin)
		return err
	}))
	require.NoError(t, run(func(e *vault.Engine) error {
		if err := e.Deposit(admin, admin, 1_000); err != nil {
			return err
		}
		return e.AddPayee(admin, admin, payee)
	}))

	errBoom := errors.New("boom")
	require.ErrorIs(t, run(func(e *vault.Engine) error {
		if err := e.Withdraw(admin, payee, 400); err != nil {
			return err
		}
		return errBoom
	}), errBoom)

	check := NewManager(db, rent)
	bal, err := check.Balance(payee)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	custody, err := check.Balance(CustodyAddress(admin))
	require.NoError(t, err)
	require.Equal(t, reserve+1_000, custody.Uint64())

	require.NoError(t, run(func(e *vault.Engine) error {
		return e.Withdraw(admin, payee, 400)
	}))
	bal, err = NewManager(db, rent).Balance(payee)
	require.NoError(t, err)
	require.Equal(t, uint64(400), bal.Uint64())

	require.NoError(t, run(func(e *vault.Engine) error {
		_, err := e.Close(admin, admin)
		return err
	}))
	_, ok, err := NewManager(db, rent).VaultGet(admin)
	require.NoError(t, err)
	require.False(t, ok)
	adminBal, err := NewManager(db, rent).Balance(admin)
	require.NoError(t, err)
	require.Equal(t, reserve+600, adminBal.Uint64())
}
