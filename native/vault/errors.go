package vault

import "errors"

var (
	ErrAlreadyInitialized        = errors.New("vault: already initialized")
	ErrUnauthorizedAdmin         = errors.New("vault: only admin can perform this action")
	ErrMaxPayeesReached          = errors.New("vault: maximum number of payees reached")
	ErrPayeeAlreadyExists        = errors.New("vault: payee already exists")
	ErrPayeeNotFound             = errors.New("vault: payee not found")
	ErrUnauthorizedPayee         = errors.New("vault: only authorized payees can withdraw")
	ErrInvalidPayoutSchedule     = errors.New("vault: invalid payout schedule")
	ErrMaxSchedulesReached       = errors.New("vault: maximum number of payout schedules reached")
	ErrScheduleNotFound          = errors.New("vault: payout schedule not found")
	ErrPayoutTimeNotReached      = errors.New("vault: payout time not reached")
	ErrEpochSpendingLimitReached = errors.New("vault: epoch spending limit reached")
	ErrInvalidEpochConfig        = errors.New("vault: invalid epoch configuration")

	// ErrTransferFailed wraps any failure of the external transfer primitive.
	ErrTransferFailed = errors.New("vault: transfer failed")
	// ErrVaultNotFound is returned for operations against a vault that was
	// never initialized or has been closed.
	ErrVaultNotFound = errors.New("vault: vault not found")
	// ErrScheduleOverflow guards next_payout_time arithmetic.
	ErrScheduleOverflow = errors.New("vault: payout schedule overflow")

	errNilState = errors.New("vault engine: state not configured")
)

// Code returns the stable name of a policy error kind, or "" when err is not
// one of the vault sentinels.
func Code(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrUnauthorizedAdmin, "UnauthorizedAdmin"},
	{ErrMaxPayeesReached, "MaxPayeesReached"},
	{ErrPayeeAlreadyExists, "PayeeAlreadyExists"},
	{ErrPayeeNotFound, "PayeeNotFound"},
	{ErrUnauthorizedPayee, "UnauthorizedPayee"},
	{ErrInvalidPayoutSchedule, "InvalidPayoutSchedule"},
	{ErrMaxSchedulesReached, "MaxSchedulesReached"},
	{ErrScheduleNotFound, "ScheduleNotFound"},
	{ErrPayoutTimeNotReached, "PayoutTimeNotReached"},
	{ErrEpochSpendingLimitReached, "EpochSpendingLimitReached"},
	{ErrInvalidEpochConfig, "InvalidEpochConfig"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrVaultNotFound, "VaultNotFound"},
	{ErrScheduleOverflow, "ScheduleOverflow"},
}
