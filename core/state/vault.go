package state

import (
	"errors"
	"fmt"
	"math"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"devquestvault/native/vault"
)

var errNegativeTimestamp = errors.New("state: negative timestamp")

func vaultStateKey(admin [32]byte) []byte {
	buf := make([]byte, len(vaultStatePrefix)+len(admin))
	copy(buf, vaultStatePrefix)
	copy(buf[len(vaultStatePrefix):], admin[:])
	return buf
}

// VaultStateAddress is the storage address of the vault administered by
// admin.
func VaultStateAddress(admin [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], kvKey(vaultStateKey(admin)))
	return out
}

// CustodyAddress derives the account that holds the vault's funds. It is a
// function of the vault's storage address and has no private key.
func (m *Manager) CustodyAddress(admin [32]byte) [32]byte {
	return CustodyAddress(admin)
}

// CustodyAddress is the package-level form of Manager.CustodyAddress.
func CustodyAddress(admin [32]byte) [32]byte {
	stateAddr := VaultStateAddress(admin)
	buf := make([]byte, len(vaultCustodyPrefix)+len(stateAddr))
	copy(buf, vaultCustodyPrefix)
	copy(buf[len(vaultCustodyPrefix):], stateAddr[:])
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

type storedSchedule struct {
	Amount         uint64
	NextPayoutTime uint64
	Interval       uint64
	Active         bool
}

type storedEpochLimit struct {
	Payee      [32]byte
	EpochStart uint64
	Spent      uint64
	Limit      uint64
	Duration   uint64
}

type storedVault struct {
	Admin       [32]byte
	Payees      [][32]byte
	Schedules   []storedSchedule
	Limits      []storedEpochLimit
	Initialized bool
}

func toUnsigned(v int64) (uint64, error) {
	if v < 0 {
		return 0, errNegativeTimestamp
	}
	return uint64(v), nil
}

func toSigned(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("state: timestamp %d overflows", v)
	}
	return int64(v), nil
}

func newStoredVault(st *vault.VaultState) (*storedVault, error) {
	out := &storedVault{
		Admin:       st.Admin,
		Payees:      append([][32]byte{}, st.Payees...),
		Schedules:   make([]storedSchedule, 0, len(st.Schedules)),
		Limits:      make([]storedEpochLimit, 0, len(st.Limits)),
		Initialized: st.Initialized,
	}
	for _, schedule := range st.Schedules {
		next, err := toUnsigned(schedule.NextPayoutTime)
		if err != nil {
			return nil, err
		}
		interval, err := toUnsigned(schedule.Interval)
		if err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, storedSchedule{
			Amount:         schedule.Amount,
			NextPayoutTime: next,
			Interval:       interval,
			Active:         schedule.Active,
		})
	}
	for _, entry := range st.Limits {
		start, err := toUnsigned(entry.Spending.EpochStart)
		if err != nil {
			return nil, err
		}
		duration, err := toUnsigned(entry.Spending.Duration)
		if err != nil {
			return nil, err
		}
		out.Limits = append(out.Limits, storedEpochLimit{
			Payee:      entry.Payee,
			EpochStart: start,
			Spent:      entry.Spending.Spent,
			Limit:      entry.Spending.Limit,
			Duration:   duration,
		})
	}
	return out, nil
}

func (s *storedVault) toVault() (*vault.VaultState, error) {
	out := &vault.VaultState{
		Admin:       s.Admin,
		Payees:      append([][32]byte{}, s.Payees...),
		Initialized: s.Initialized,
	}
	for _, schedule := range s.Schedules {
		next, err := toSigned(schedule.NextPayoutTime)
		if err != nil {
			return nil, err
		}
		interval, err := toSigned(schedule.Interval)
		if err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, vault.PayoutSchedule{
			Amount:         schedule.Amount,
			NextPayoutTime: next,
			Interval:       interval,
			Active:         schedule.Active,
		})
	}
	for _, entry := range s.Limits {
		start, err := toSigned(entry.EpochStart)
		if err != nil {
			return nil, err
		}
		duration, err := toSigned(entry.Duration)
		if err != nil {
			return nil, err
		}
		out.Limits = append(out.Limits, vault.EpochLimit{
			Payee: entry.Payee,
			Spending: vault.EpochSpending{
				EpochStart: start,
				Spent:      entry.Spent,
				Limit:      entry.Limit,
				Duration:   duration,
			},
		})
	}
	return out, nil
}

// VaultGet loads the vault administered by admin.
func (m *Manager) VaultGet(admin [32]byte) (*vault.VaultState, bool, error) {
	var stored storedVault
	ok, err := m.KVGet(vaultStateKey(admin), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load vault: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	st, err := stored.toVault()
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

// VaultPut validates and stages the vault record.
func (m *Manager) VaultPut(st *vault.VaultState) error {
	if st == nil {
		return fmt.Errorf("state: nil vault")
	}
	if err := st.Validate(); err != nil {
		return err
	}
	stored, err := newStoredVault(st)
	if err != nil {
		return err
	}
	return m.KVPut(vaultStateKey(st.Admin), stored)
}

// VaultDelete removes the vault record.
func (m *Manager) VaultDelete(admin [32]byte) error {
	return m.KVDelete(vaultStateKey(admin))
}
