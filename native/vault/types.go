package vault

import "fmt"

const (
	// ModuleName identifies the vault module to the pause guard.
	ModuleName = "vault"

	// MaxPayees bounds the payee set of a single vault.
	MaxPayees = 5
	// MaxSchedules bounds the payout schedule list of a single vault.
	MaxSchedules = 5
)

// Role is the classification of a caller relative to one vault. It is
// computed once per operation and matched exhaustively.
type Role uint8

const (
	RoleOutsider Role = iota
	RoleAdmin
	RolePayee
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePayee:
		return "payee"
	case RoleOutsider:
		return "outsider"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// PayoutSchedule is a recurring fixed-amount payout. Schedules are not bound
// to a payee; claims select the first active schedule in list order.
type PayoutSchedule struct {
	Amount         uint64
	NextPayoutTime int64
	Interval       int64
	Active         bool
}

// EpochSpending tracks the rolling spend window of a single payee.
type EpochSpending struct {
	EpochStart int64
	Spent      uint64
	Limit      uint64
	Duration   int64
}

// EpochLimit binds an EpochSpending window to the payee it restricts.
type EpochLimit struct {
	Payee    [32]byte
	Spending EpochSpending
}

// VaultState is the persisted policy record of one vault. The vault is keyed
// by its admin identity.
type VaultState struct {
	Admin       [32]byte
	Payees      [][32]byte
	Schedules   []PayoutSchedule
	Limits      []EpochLimit
	Initialized bool
}

// Clone returns a deep copy of the vault state so callers can mutate the copy
// without affecting the stored instance.
func (s *VaultState) Clone() *VaultState {
	if s == nil {
		return nil
	}
	clone := &VaultState{Admin: s.Admin, Initialized: s.Initialized}
	if len(s.Payees) > 0 {
		clone.Payees = append(make([][32]byte, 0, MaxPayees), s.Payees...)
	}
	if len(s.Schedules) > 0 {
		clone.Schedules = append(make([]PayoutSchedule, 0, MaxSchedules), s.Schedules...)
	}
	if len(s.Limits) > 0 {
		clone.Limits = append([]EpochLimit(nil), s.Limits...)
	}
	return clone
}

// RoleOf classifies the identity relative to this vault.
func (s *VaultState) RoleOf(id [32]byte) Role {
	if s == nil {
		return RoleOutsider
	}
	if id == s.Admin {
		return RoleAdmin
	}
	if s.HasPayee(id) {
		return RolePayee
	}
	return RoleOutsider
}

// HasPayee reports whether id is in the payee set.
func (s *VaultState) HasPayee(id [32]byte) bool {
	return s.payeeIndex(id) >= 0
}

func (s *VaultState) payeeIndex(id [32]byte) int {
	if s == nil {
		return -1
	}
	for i, payee := range s.Payees {
		if payee == id {
			return i
		}
	}
	return -1
}

func (s *VaultState) limitIndex(id [32]byte) int {
	if s == nil {
		return -1
	}
	for i, entry := range s.Limits {
		if entry.Payee == id {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a stored vault.
func (s *VaultState) Validate() error {
	if s == nil {
		return fmt.Errorf("vault: nil state")
	}
	if !s.Initialized {
		return fmt.Errorf("vault: state not initialized")
	}
	if len(s.Payees) > MaxPayees {
		return fmt.Errorf("vault: %d payees exceeds capacity %d", len(s.Payees), MaxPayees)
	}
	seen := make(map[[32]byte]struct{}, len(s.Payees))
	for _, payee := range s.Payees {
		if _, dup := seen[payee]; dup {
			return fmt.Errorf("vault: duplicate payee")
		}
		seen[payee] = struct{}{}
	}
	if len(s.Schedules) > MaxSchedules {
		return fmt.Errorf("vault: %d schedules exceeds capacity %d", len(s.Schedules), MaxSchedules)
	}
	for i, schedule := range s.Schedules {
		if schedule.Amount == 0 || schedule.Interval <= 0 {
			return fmt.Errorf("vault: schedule %d malformed", i)
		}
	}
	limits := make(map[[32]byte]struct{}, len(s.Limits))
	for _, entry := range s.Limits {
		if _, dup := limits[entry.Payee]; dup {
			return fmt.Errorf("vault: duplicate epoch limit")
		}
		limits[entry.Payee] = struct{}{}
		if entry.Spending.Limit == 0 || entry.Spending.Duration <= 0 {
			return fmt.Errorf("vault: epoch limit malformed")
		}
	}
	return nil
}
