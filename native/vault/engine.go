package vault

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"devquestvault/core/events"
	"devquestvault/core/types"
	"devquestvault/native/common"
)

// engineState is the storage and value-movement surface the engine relies on.
// Implementations must be transactional: the engine stages writes and the
// caller decides whether to commit or discard them as a unit.
type engineState interface {
	VaultGet(admin [32]byte) (*VaultState, bool, error)
	VaultPut(state *VaultState) error
	VaultDelete(admin [32]byte) error
	CustodyAddress(admin [32]byte) [32]byte
	Balance(id [32]byte) (*uint256.Int, error)
	Transfer(from, to [32]byte, amount *uint256.Int) error
	MinimumBalance(space int) uint64
}

// Engine is the vault controller. Every exported operation loads the vault,
// classifies the caller, runs the policy checks and only then requests value
// movement and stages the updated record.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine creates a vault engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the module pause view consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) load(admin [32]byte) (*VaultState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, ok, err := e.state.VaultGet(admin)
	if err != nil {
		return nil, err
	}
	if !ok || st == nil || !st.Initialized {
		return nil, ErrVaultNotFound
	}
	return st.Clone(), nil
}

func (e *Engine) store(st *VaultState) error {
	if err := e.state.VaultPut(st); err != nil {
		return fmt.Errorf("vault: store state: %w", err)
	}
	return nil
}

func (e *Engine) transfer(from, to [32]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if err := e.state.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// loadAsAdmin loads the vault and requires the caller to be its admin.
func (e *Engine) loadAsAdmin(admin, caller [32]byte) (*VaultState, error) {
	st, err := e.load(admin)
	if err != nil {
		return nil, err
	}
	if st.RoleOf(caller) != RoleAdmin {
		return nil, ErrUnauthorizedAdmin
	}
	return st, nil
}

// Initialize creates the vault administered by caller and funds the custody
// account with the storage minimum for StateSpace. A second call always
// fails, even from the same caller.
func (e *Engine) Initialize(caller [32]byte) (*VaultState, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	existing, ok, err := e.state.VaultGet(caller)
	if err != nil {
		return nil, err
	}
	if ok && existing != nil && existing.Initialized {
		return nil, ErrAlreadyInitialized
	}
	custody := e.state.CustodyAddress(caller)
	reserve := e.state.MinimumBalance(StateSpace)
	if err := e.transfer(caller, custody, uint256.NewInt(reserve)); err != nil {
		return nil, err
	}
	st := &VaultState{
		Admin:       caller,
		Payees:      [][32]byte{},
		Initialized: true,
	}
	if err := e.store(st); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(caller, custody, reserve))
	return st.Clone(), nil
}

// Deposit moves amount from caller into custody. Any principal may deposit.
func (e *Engine) Deposit(admin, caller [32]byte, amount uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.load(admin); err != nil {
		return err
	}
	if err := e.transfer(caller, e.state.CustodyAddress(admin), uint256.NewInt(amount)); err != nil {
		return err
	}
	e.emit(NewDepositedEvent(admin, caller, amount))
	return nil
}

// Withdraw moves amount from custody to caller. The admin is unrestricted;
// a payee is gated by its epoch limit when one is configured and is otherwise
// unrestricted.
func (e *Engine) Withdraw(admin, caller [32]byte, amount uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.load(admin)
	if err != nil {
		return err
	}
	role := st.RoleOf(caller)
	var (
		changed bool
		window  *EpochSpending
	)
	switch role {
	case RoleAdmin:
	case RolePayee:
		changed, err = st.chargeWithdrawal(caller, amount, e.now())
		if err != nil {
			return err
		}
		if changed {
			current, _ := st.LimitFor(caller)
			window = &current
		}
	case RoleOutsider:
		return ErrUnauthorizedPayee
	}
	if err := e.transfer(e.state.CustodyAddress(admin), caller, uint256.NewInt(amount)); err != nil {
		return err
	}
	if changed {
		if err := e.store(st); err != nil {
			return err
		}
	}
	e.emit(NewWithdrawnEvent(admin, caller, role, amount, window))
	return nil
}

// AddPayee authorizes payee to withdraw under policy.
func (e *Engine) AddPayee(admin, caller, payee [32]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.loadAsAdmin(admin, caller)
	if err != nil {
		return err
	}
	if err := st.AddPayee(payee); err != nil {
		return err
	}
	if err := e.store(st); err != nil {
		return err
	}
	e.emit(NewPayeeAddedEvent(admin, payee))
	return nil
}

// RemovePayee revokes payee and drops the first active payout schedule, which
// may belong to a different payee.
func (e *Engine) RemovePayee(admin, caller, payee [32]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.loadAsAdmin(admin, caller)
	if err != nil {
		return err
	}
	dropped, err := st.RemovePayee(payee)
	if err != nil {
		return err
	}
	if err := e.store(st); err != nil {
		return err
	}
	e.emit(NewPayeeRemovedEvent(admin, payee, dropped))
	return nil
}

// SetEpochLimit configures payee's rolling window. The limit and duration are
// validated before the caller is checked.
func (e *Engine) SetEpochLimit(admin, caller, payee [32]byte, limit uint64, duration int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if duration <= 0 || limit == 0 {
		return ErrInvalidEpochConfig
	}
	st, err := e.loadAsAdmin(admin, caller)
	if err != nil {
		return err
	}
	if err := st.SetEpochLimit(payee, limit, duration, e.now()); err != nil {
		return err
	}
	if err := e.store(st); err != nil {
		return err
	}
	window, _ := st.LimitFor(payee)
	e.emit(NewEpochLimitSetEvent(admin, payee, window))
	return nil
}

// SchedulePayout appends a recurring payout claimable from start.
func (e *Engine) SchedulePayout(admin, caller, payee [32]byte, amount uint64, start, interval int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.loadAsAdmin(admin, caller)
	if err != nil {
		return err
	}
	if err := st.SchedulePayout(payee, amount, start, interval, e.now()); err != nil {
		return err
	}
	if err := e.store(st); err != nil {
		return err
	}
	idx := len(st.Schedules) - 1
	e.emit(NewPayoutScheduledEvent(admin, payee, idx, st.Schedules[idx]))
	return nil
}

// CancelPayout deactivates the first active schedule.
func (e *Engine) CancelPayout(admin, caller, payee [32]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.loadAsAdmin(admin, caller)
	if err != nil {
		return err
	}
	idx, err := st.CancelPayout(payee)
	if err != nil {
		return err
	}
	if err := e.store(st); err != nil {
		return err
	}
	e.emit(NewPayoutCancelledEvent(admin, payee, idx))
	return nil
}

// ClaimPayout pays the first active schedule to the calling payee once its
// next payout time has been reached, then advances the schedule by exactly
// one interval. It returns the amount paid.
func (e *Engine) ClaimPayout(admin, caller [32]byte) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	st, err := e.load(admin)
	if err != nil {
		return 0, err
	}
	// Claiming needs payee membership only; an admin listed as a payee may
	// claim.
	if !st.HasPayee(caller) {
		return 0, ErrUnauthorizedPayee
	}
	idx, schedule, err := st.DuePayout(e.now())
	if err != nil {
		return 0, err
	}
	if err := e.transfer(e.state.CustodyAddress(admin), caller, uint256.NewInt(schedule.Amount)); err != nil {
		return 0, err
	}
	st.advance(idx)
	if err := e.store(st); err != nil {
		return 0, err
	}
	e.emit(NewPayoutClaimedEvent(admin, caller, idx, st.Schedules[idx]))
	return schedule.Amount, nil
}

// Close sweeps the full custody balance to the admin and deletes the vault.
// The swept amount is returned.
func (e *Engine) Close(admin, caller [32]byte) (*uint256.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if _, err := e.loadAsAdmin(admin, caller); err != nil {
		return nil, err
	}
	custody := e.state.CustodyAddress(admin)
	balance, err := e.state.Balance(custody)
	if err != nil {
		return nil, err
	}
	swept := new(uint256.Int)
	if balance != nil {
		swept.Set(balance)
	}
	if err := e.transfer(custody, admin, swept); err != nil {
		return nil, err
	}
	if err := e.state.VaultDelete(admin); err != nil {
		return nil, fmt.Errorf("vault: delete state: %w", err)
	}
	e.emit(NewClosedEvent(admin, swept.Dec()))
	return swept, nil
}
