package vault

import (
	"strconv"

	"devquestvault/core/types"
	"devquestvault/crypto"
)

const (
	EventTypeVaultInitialized = "vault.initialized"
	EventTypeVaultDeposited   = "vault.deposited"
	EventTypeVaultWithdrawn   = "vault.withdrawn"
	EventTypePayeeAdded       = "vault.payee_added"
	EventTypePayeeRemoved     = "vault.payee_removed"
	EventTypeEpochLimitSet    = "vault.epoch_limit_set"
	EventTypePayoutScheduled  = "vault.payout_scheduled"
	EventTypePayoutCancelled  = "vault.payout_cancelled"
	EventTypePayoutClaimed    = "vault.payout_claimed"
	EventTypeVaultClosed      = "vault.closed"
)

// Attribute keys shared by vault events.
const (
	attrVault                = "vault"
	attrCaller               = "caller"
	attrAmount               = "amount"
	attrPayee                = "payee"
	attrRole                 = "role"
	attrLimited              = "limited"
	attrSpent                = "spent"
	attrLimit                = "limit"
	attrDuration             = "duration"
	attrEpochStart           = "epochStart"
	attrInterval             = "interval"
	attrScheduleIndex        = "scheduleIndex"
	attrNextPayoutTime       = "nextPayoutTime"
	attrRemovedScheduleIndex = "removedScheduleIndex"
	attrCustody              = "custody"
	attrRentReserve          = "rentReserve"
	attrSweptAmount          = "swept"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

func identityString(id [32]byte) string {
	return crypto.FromIdentity(id).String()
}

func newVaultEvent(eventType string, vault, caller [32]byte) *types.Event {
	attrs := make(map[string]string, 6)
	attrs[attrVault] = identityString(vault)
	attrs[attrCaller] = identityString(caller)
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewInitializedEvent is emitted once the vault record and custody reserve exist.
func NewInitializedEvent(vault, custody [32]byte, reserve uint64) *types.Event {
	evt := newVaultEvent(EventTypeVaultInitialized, vault, vault)
	evt.Attributes[attrCustody] = identityString(custody)
	evt.Attributes[attrRentReserve] = strconv.FormatUint(reserve, 10)
	return evt
}

// NewDepositedEvent is emitted for every deposit into custody.
func NewDepositedEvent(vault, caller [32]byte, amount uint64) *types.Event {
	evt := newVaultEvent(EventTypeVaultDeposited, vault, caller)
	evt.Attributes[attrAmount] = strconv.FormatUint(amount, 10)
	return evt
}

// NewWithdrawnEvent is emitted for admin and payee withdrawals. spent is only
// reported when the payee is limited.
func NewWithdrawnEvent(vault, caller [32]byte, role Role, amount uint64, window *EpochSpending) *types.Event {
	evt := newVaultEvent(EventTypeVaultWithdrawn, vault, caller)
	evt.Attributes[attrAmount] = strconv.FormatUint(amount, 10)
	evt.Attributes[attrRole] = role.String()
	evt.Attributes[attrLimited] = strconv.FormatBool(window != nil)
	if window != nil {
		evt.Attributes[attrSpent] = strconv.FormatUint(window.Spent, 10)
		evt.Attributes[attrEpochStart] = strconv.FormatInt(window.EpochStart, 10)
	}
	return evt
}

// NewPayeeAddedEvent is emitted when the admin authorizes a payee.
func NewPayeeAddedEvent(vault, payee [32]byte) *types.Event {
	evt := newVaultEvent(EventTypePayeeAdded, vault, vault)
	evt.Attributes[attrPayee] = identityString(payee)
	return evt
}

// NewPayeeRemovedEvent reports the removed payee and the schedule index that
// was dropped alongside it, or -1.
func NewPayeeRemovedEvent(vault, payee [32]byte, removedSchedule int) *types.Event {
	evt := newVaultEvent(EventTypePayeeRemoved, vault, vault)
	evt.Attributes[attrPayee] = identityString(payee)
	if removedSchedule < 0 {
		evt.Attributes[attrRemovedScheduleIndex] = "-1"
	} else {
		evt.Attributes[attrRemovedScheduleIndex] = strconv.Itoa(removedSchedule)
	}
	return evt
}

// NewEpochLimitSetEvent is emitted when a payee's window is (re)configured.
func NewEpochLimitSetEvent(vault, payee [32]byte, window EpochSpending) *types.Event {
	evt := newVaultEvent(EventTypeEpochLimitSet, vault, vault)
	evt.Attributes[attrPayee] = identityString(payee)
	evt.Attributes[attrLimit] = strconv.FormatUint(window.Limit, 10)
	evt.Attributes[attrDuration] = strconv.FormatInt(window.Duration, 10)
	evt.Attributes[attrEpochStart] = strconv.FormatInt(window.EpochStart, 10)
	return evt
}

// NewPayoutScheduledEvent is emitted when a schedule is appended.
func NewPayoutScheduledEvent(vault, payee [32]byte, index int, schedule PayoutSchedule) *types.Event {
	evt := newVaultEvent(EventTypePayoutScheduled, vault, vault)
	evt.Attributes[attrPayee] = identityString(payee)
	evt.Attributes[attrScheduleIndex] = strconv.Itoa(index)
	evt.Attributes[attrAmount] = strconv.FormatUint(schedule.Amount, 10)
	evt.Attributes[attrNextPayoutTime] = strconv.FormatInt(schedule.NextPayoutTime, 10)
	evt.Attributes[attrInterval] = strconv.FormatInt(schedule.Interval, 10)
	return evt
}

// NewPayoutCancelledEvent is emitted when a schedule is deactivated.
func NewPayoutCancelledEvent(vault, payee [32]byte, index int) *types.Event {
	evt := newVaultEvent(EventTypePayoutCancelled, vault, vault)
	evt.Attributes[attrPayee] = identityString(payee)
	evt.Attributes[attrScheduleIndex] = strconv.Itoa(index)
	return evt
}

// NewPayoutClaimedEvent is emitted after a successful claim.
func NewPayoutClaimedEvent(vault, caller [32]byte, index int, schedule PayoutSchedule) *types.Event {
	evt := newVaultEvent(EventTypePayoutClaimed, vault, caller)
	evt.Attributes[attrScheduleIndex] = strconv.Itoa(index)
	evt.Attributes[attrAmount] = strconv.FormatUint(schedule.Amount, 10)
	evt.Attributes[attrNextPayoutTime] = strconv.FormatInt(schedule.NextPayoutTime, 10)
	return evt
}

// NewClosedEvent reports the balance swept back to the admin.
func NewClosedEvent(vault [32]byte, swept string) *types.Event {
	evt := newVaultEvent(EventTypeVaultClosed, vault, vault)
	evt.Attributes[attrSweptAmount] = swept
	return evt
}
