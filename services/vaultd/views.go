package vaultd

import (
	"strconv"

	"devquestvault/core/state"
	"devquestvault/native/vault"
)

type scheduleView struct {
	Amount         string `json:"amount"`
	NextPayoutTime int64  `json:"next_payout_time"`
	Interval       int64  `json:"interval"`
	Active         bool   `json:"active"`
}

type limitView struct {
	Payee      string `json:"payee"`
	EpochStart int64  `json:"epoch_start"`
	Spent      string `json:"spent"`
	Limit      string `json:"limit"`
	Duration   int64  `json:"duration"`
}

type vaultView struct {
	Admin     string         `json:"admin"`
	Custody   string         `json:"custody"`
	Balance   string         `json:"balance"`
	Payees    []string       `json:"payees"`
	Schedules []scheduleView `json:"schedules"`
	Limits    []limitView    `json:"limits"`
}

type balanceView struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type allowanceView struct {
	Payee     string     `json:"payee"`
	Limited   bool       `json:"limited"`
	Remaining string     `json:"remaining,omitempty"`
	Window    *limitView `json:"window,omitempty"`
}

type dueView struct {
	Index    int          `json:"index"`
	Due      bool         `json:"due"`
	Schedule scheduleView `json:"schedule"`
}

func custodyOf(admin [32]byte) [32]byte { return state.CustodyAddress(admin) }

func newScheduleView(s vault.PayoutSchedule) scheduleView {
	return scheduleView{
		Amount:         strconv.FormatUint(s.Amount, 10),
		NextPayoutTime: s.NextPayoutTime,
		Interval:       s.Interval,
		Active:         s.Active,
	}
}

func newLimitView(payee [32]byte, w vault.EpochSpending) limitView {
	return limitView{
		Payee:      identity(payee),
		EpochStart: w.EpochStart,
		Spent:      strconv.FormatUint(w.Spent, 10),
		Limit:      strconv.FormatUint(w.Limit, 10),
		Duration:   w.Duration,
	}
}

func newVaultView(st *vault.VaultState, balance string) vaultView {
	view := vaultView{
		Admin:     identity(st.Admin),
		Custody:   identity(custodyOf(st.Admin)),
		Balance:   balance,
		Payees:    make([]string, 0, len(st.Payees)),
		Schedules: make([]scheduleView, 0, len(st.Schedules)),
		Limits:    make([]limitView, 0, len(st.Limits)),
	}
	for _, payee := range st.Payees {
		view.Payees = append(view.Payees, identity(payee))
	}
	for _, schedule := range st.Schedules {
		view.Schedules = append(view.Schedules, newScheduleView(schedule))
	}
	for _, limit := range st.Limits {
		view.Limits = append(view.Limits, newLimitView(limit.Payee, limit.Spending))
	}
	return view
}

func newAllowanceView(payee [32]byte, a vault.Allowance) allowanceView {
	view := allowanceView{Payee: identity(payee), Limited: a.Limited}
	if a.Limited {
		view.Remaining = strconv.FormatUint(a.Remaining, 10)
		window := newLimitView(payee, a.Window)
		view.Window = &window
	}
	return view
}
