package vaultd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"devquestvault/core/events"
	"devquestvault/core/state"
	"devquestvault/crypto"
	"devquestvault/native/common"
	"devquestvault/native/vault"
	"devquestvault/observability"
	telemetry "devquestvault/observability/otel"
	"devquestvault/storage"
)

// Operation names used in audit records, metrics and spans.
const (
	OpInitialize     = "initialize"
	OpDeposit        = "deposit"
	OpWithdraw       = "withdraw"
	OpAddPayee       = "add_payee"
	OpRemovePayee    = "remove_payee"
	OpSetEpochLimit  = "set_epoch_limit"
	OpSchedulePayout = "schedule_payout"
	OpCancelPayout   = "cancel_payout"
	OpClaimPayout    = "claim_payout"
	OpClose          = "close"
	OpCredit         = "credit"
)

const (
	codeModulePaused = "ModulePaused"
	codeInternal     = "Internal"
)

// Service runs vault operations against the ledger. Each call executes in its
// own state transaction holding the locks of the vault and every account it
// may debit; it commits on success and discards everything on failure.
type Service struct {
	db      storage.Database
	rent    state.RentParams
	pauses  *PauseRegistry
	audit   *AuditLog
	stream  *Broadcaster
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	clock   func() time.Time
	locks   *keyedLocks
	emitter events.Emitter
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for policy time and audit stamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithAudit attaches the audit trail.
func WithAudit(audit *AuditLog) Option {
	return func(s *Service) { s.audit = audit }
}

// WithPauses attaches the operator pause registry.
func WithPauses(pauses *PauseRegistry) Option {
	return func(s *Service) { s.pauses = pauses }
}

// WithBroadcaster attaches the live event stream.
func WithBroadcaster(b *Broadcaster) Option {
	return func(s *Service) { s.stream = b }
}

// NewService constructs a service over db.
func NewService(db storage.Database, rent state.RentParams, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("vaultd: database required")
	}
	s := &Service{
		db:     db,
		rent:   rent,
		logger: slog.Default(),
		tracer: telemetry.Tracer("devquestvault/services/vaultd"),
		clock:  time.Now,
		locks:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pauses == nil {
		s.pauses = NewPauseRegistry(s.metrics, s.clock)
	}
	if s.stream == nil {
		s.stream = NewBroadcaster(0)
	}
	s.emitter = events.MultiEmitter{s.stream, observability.Events()}
	return s, nil
}

// Pauses exposes the operator pause registry.
func (s *Service) Pauses() *PauseRegistry { return s.pauses }

// Stream exposes the committed event broadcaster.
func (s *Service) Stream() *Broadcaster { return s.stream }

// Audit exposes the audit trail, which may be nil.
func (s *Service) Audit() *AuditLog { return s.audit }

func vaultLock(admin [32]byte) string         { return "vault/" + string(admin[:]) }
func accountLock(id [32]byte) string          { return "account/" + string(id[:]) }
func identity(id [32]byte) string             { return crypto.FromIdentity(id).String() }
func formatAmount(amount uint64) string       { return strconv.FormatUint(amount, 10) }
func (s *Service) unixNow() int64             { return s.clock().Unix() }
func (s *Service) newManager() *state.Manager { return state.NewManager(s.db, s.rent) }

// vaultLocks covers a vault record, its custody account and the given
// accounts. Every custody balance write holds the custody account lock, so
// operator credits cannot interleave with vault operations.
func vaultLocks(admin [32]byte, accounts ...[32]byte) []string {
	names := []string{vaultLock(admin), accountLock(state.CustodyAddress(admin))}
	for _, id := range accounts {
		names = append(names, accountLock(id))
	}
	return names
}

// outcomeCode maps an operation error to its stable code.
func outcomeCode(err error) string {
	if err == nil {
		return ""
	}
	if code := vault.Code(err); code != "" {
		return code
	}
	if errors.Is(err, common.ErrModulePaused) {
		return codeModulePaused
	}
	return codeInternal
}

type operation struct {
	name   string
	vault  [32]byte
	caller [32]byte
	amount string
	locks  []string
	run    func(*state.Manager, *vault.Engine) error
}

func (s *Service) execute(ctx context.Context, op operation) error {
	ctx, span := s.tracer.Start(ctx, "vault."+op.name, trace.WithAttributes(
		attribute.String("vault.operation", op.name),
		attribute.String("vault.admin", identity(op.vault)),
		attribute.String("vault.caller", identity(op.caller)),
	))
	defer span.End()

	start := s.clock()
	unlock := s.locks.lock(op.locks...)
	manager := s.newManager()
	buffer := &events.Buffer{}
	engine := vault.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buffer)
	engine.SetPauses(s.pauses)
	engine.SetNowFunc(s.unixNow)

	err := op.run(manager, engine)
	if err == nil {
		err = manager.Commit()
	}
	var committed []events.Event
	if err != nil {
		manager.Discard()
		buffer.Reset()
	} else {
		committed = buffer.Events()
		buffer.Flush(s.emitter)
	}
	unlock()

	code := outcomeCode(err)
	s.metrics.ObserveOperation(op.name, s.clock().Sub(start), code)
	s.appendAudit(ctx, op, code, committed)

	logAttrs := []any{
		"op", op.name,
		"vault", identity(op.vault),
		"caller", identity(op.caller),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		if code == codeInternal {
			s.logger.Error("vault operation failed", append(logAttrs, "outcome", code, "error", err)...)
		} else {
			s.logger.Info("vault operation rejected", append(logAttrs, "outcome", code)...)
		}
		return err
	}
	s.logger.Info("vault operation committed", append(logAttrs, "outcome", OutcomeOK, "events", len(committed))...)
	return nil
}

func (s *Service) appendAudit(ctx context.Context, op operation, code string, committed []events.Event) {
	if s.audit == nil {
		return
	}
	outcome := code
	if outcome == "" {
		outcome = OutcomeOK
	}
	entry := AuditEntry{
		Operation: op.name,
		Vault:     identity(op.vault),
		Caller:    identity(op.caller),
		Outcome:   outcome,
		Amount:    op.amount,
	}
	for _, evt := range committed {
		if payload := evt.Event(); payload != nil {
			entry.Events = append(entry.Events, AuditEvent{Type: payload.Type, Attributes: payload.Attributes})
		}
	}
	if _, err := s.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("vaultd: audit append failed", "op", op.name, "error", err)
		return
	}
	s.metrics.RecordAudit()
}

// Initialize creates the vault administered by caller.
func (s *Service) Initialize(ctx context.Context, caller [32]byte) (*vault.VaultState, error) {
	var created *vault.VaultState
	err := s.execute(ctx, operation{
		name:   OpInitialize,
		vault:  caller,
		caller: caller,
		locks:  vaultLocks(caller, caller),
		run: func(_ *state.Manager, e *vault.Engine) error {
			st, err := e.Initialize(caller)
			created = st
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Deposit moves amount from caller into the vault's custody.
func (s *Service) Deposit(ctx context.Context, admin, caller [32]byte, amount uint64) error {
	return s.execute(ctx, operation{
		name:   OpDeposit,
		vault:  admin,
		caller: caller,
		amount: formatAmount(amount),
		locks:  vaultLocks(admin, caller),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.Deposit(admin, caller, amount)
		},
	})
}

// Withdraw moves amount from custody to caller under the vault's policy.
func (s *Service) Withdraw(ctx context.Context, admin, caller [32]byte, amount uint64) error {
	return s.execute(ctx, operation{
		name:   OpWithdraw,
		vault:  admin,
		caller: caller,
		amount: formatAmount(amount),
		locks:  vaultLocks(admin, caller),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.Withdraw(admin, caller, amount)
		},
	})
}

// AddPayee authorizes payee on the vault.
func (s *Service) AddPayee(ctx context.Context, admin, caller, payee [32]byte) error {
	return s.execute(ctx, operation{
		name:   OpAddPayee,
		vault:  admin,
		caller: caller,
		locks:  vaultLocks(admin),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.AddPayee(admin, caller, payee)
		},
	})
}

// RemovePayee revokes payee.
func (s *Service) RemovePayee(ctx context.Context, admin, caller, payee [32]byte) error {
	return s.execute(ctx, operation{
		name:   OpRemovePayee,
		vault:  admin,
		caller: caller,
		locks:  vaultLocks(admin),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.RemovePayee(admin, caller, payee)
		},
	})
}

// SetEpochLimit configures payee's rolling spend window.
func (s *Service) SetEpochLimit(ctx context.Context, admin, caller, payee [32]byte, limit uint64, duration int64) error {
	return s.execute(ctx, operation{
		name:   OpSetEpochLimit,
		vault:  admin,
		caller: caller,
		amount: formatAmount(limit),
		locks:  vaultLocks(admin),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.SetEpochLimit(admin, caller, payee, limit, duration)
		},
	})
}

// SchedulePayout appends a recurring payout.
func (s *Service) SchedulePayout(ctx context.Context, admin, caller, payee [32]byte, amount uint64, start, interval int64) error {
	return s.execute(ctx, operation{
		name:   OpSchedulePayout,
		vault:  admin,
		caller: caller,
		amount: formatAmount(amount),
		locks:  vaultLocks(admin),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.SchedulePayout(admin, caller, payee, amount, start, interval)
		},
	})
}

// CancelPayout deactivates the first active schedule.
func (s *Service) CancelPayout(ctx context.Context, admin, caller, payee [32]byte) error {
	return s.execute(ctx, operation{
		name:   OpCancelPayout,
		vault:  admin,
		caller: caller,
		locks:  vaultLocks(admin),
		run: func(_ *state.Manager, e *vault.Engine) error {
			return e.CancelPayout(admin, caller, payee)
		},
	})
}

// ClaimPayout pays the due schedule to caller and returns the amount.
func (s *Service) ClaimPayout(ctx context.Context, admin, caller [32]byte) (uint64, error) {
	var paid uint64
	err := s.execute(ctx, operation{
		name:   OpClaimPayout,
		vault:  admin,
		caller: caller,
		locks:  vaultLocks(admin, caller),
		run: func(_ *state.Manager, e *vault.Engine) error {
			amount, err := e.ClaimPayout(admin, caller)
			paid = amount
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

// Close sweeps custody to the admin and deletes the vault.
func (s *Service) Close(ctx context.Context, admin, caller [32]byte) (*uint256.Int, error) {
	var swept *uint256.Int
	err := s.execute(ctx, operation{
		name:   OpClose,
		vault:  admin,
		caller: caller,
		locks:  vaultLocks(admin, admin, caller),
		run: func(_ *state.Manager, e *vault.Engine) error {
			amount, err := e.Close(admin, caller)
			swept = amount
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// Credit mints amount into account id. It backs the operator funding route of
// development ledgers and is audited like any other operation.
func (s *Service) Credit(ctx context.Context, operator, id [32]byte, amount uint64) error {
	return s.execute(ctx, operation{
		name:   OpCredit,
		vault:  id,
		caller: operator,
		amount: formatAmount(amount),
		locks:  []string{accountLock(id)},
		run: func(m *state.Manager, _ *vault.Engine) error {
			return m.Credit(id, uint256.NewInt(amount))
		},
	})
}

// query runs fn against a read-only engine under the vault lock.
func (s *Service) query(admin [32]byte, fn func(*vault.Engine) error) error {
	unlock := s.locks.lock(vaultLocks(admin)...)
	defer unlock()
	engine := vault.NewEngine()
	engine.SetState(s.newManager())
	engine.SetNowFunc(s.unixNow)
	return fn(engine)
}

// Vault returns the stored policy record.
func (s *Service) Vault(admin [32]byte) (*vault.VaultState, error) {
	var st *vault.VaultState
	err := s.query(admin, func(e *vault.Engine) error {
		var err error
		st, err = e.Vault(admin)
		return err
	})
	return st, err
}

// CustodyBalance reports the vault's custody balance.
func (s *Service) CustodyBalance(admin [32]byte) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.query(admin, func(e *vault.Engine) error {
		var err error
		balance, err = e.CustodyBalance(admin)
		return err
	})
	return balance, err
}

// Role classifies id relative to the vault.
func (s *Service) Role(admin, id [32]byte) (vault.Role, error) {
	role := vault.RoleOutsider
	err := s.query(admin, func(e *vault.Engine) error {
		var err error
		role, err = e.Role(admin, id)
		return err
	})
	return role, err
}

// RemainingAllowance reports payee's current spend capacity.
func (s *Service) RemainingAllowance(admin, payee [32]byte) (vault.Allowance, error) {
	var allowance vault.Allowance
	err := s.query(admin, func(e *vault.Engine) error {
		var err error
		allowance, err = e.RemainingAllowance(admin, payee)
		return err
	})
	return allowance, err
}

// DueSchedule describes the schedule the next claim would select.
type DueSchedule struct {
	Index    int
	Schedule vault.PayoutSchedule
	Due      bool
}

// DuePayout reports the schedule the next claim would select.
func (s *Service) DuePayout(admin [32]byte) (DueSchedule, error) {
	var due DueSchedule
	err := s.query(admin, func(e *vault.Engine) error {
		idx, schedule, ready, err := e.DuePayout(admin)
		due = DueSchedule{Index: idx, Schedule: schedule, Due: ready}
		return err
	})
	return due, err
}

// AccountBalance returns the ledger balance of id.
func (s *Service) AccountBalance(id [32]byte) (*uint256.Int, error) {
	unlock := s.locks.lock(accountLock(id))
	defer unlock()
	balance, err := s.newManager().Balance(id)
	if err != nil {
		return nil, err
	}
	return balance.Clone(), nil
}
