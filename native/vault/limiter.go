package vault

// NewEpochSpending opens a fresh window starting at now.
func NewEpochSpending(limit uint64, duration int64, now int64) (EpochSpending, error) {
	if duration <= 0 || limit == 0 {
		return EpochSpending{}, ErrInvalidEpochConfig
	}
	return EpochSpending{EpochStart: now, Limit: limit, Duration: duration}, nil
}

// elapsed reports whether the window that opened at EpochStart has closed.
func (e EpochSpending) elapsed(now int64) bool {
	if now < e.EpochStart {
		return false
	}
	return now-e.EpochStart >= e.Duration
}

// rolled returns the window as seen at now: a closed window is replaced by an
// empty one starting at now. Unspent capacity is not carried over.
func (e EpochSpending) rolled(now int64) EpochSpending {
	if !e.elapsed(now) {
		return e
	}
	next := e
	next.EpochStart = now
	next.Spent = 0
	return next
}

// Spend charges amount against the window at now. On success it returns the
// updated window, including any rolling reset. On failure the receiver is
// returned unchanged so the reset is never persisted on its own.
func (e EpochSpending) Spend(amount uint64, now int64) (EpochSpending, error) {
	next := e.rolled(now)
	if next.Spent > next.Limit || amount > next.Limit-next.Spent {
		return e, ErrEpochSpendingLimitReached
	}
	next.Spent += amount
	return next, nil
}

// Remaining reports how much can still be spent in the window at now.
func (e EpochSpending) Remaining(now int64) uint64 {
	next := e.rolled(now)
	if next.Spent >= next.Limit {
		return 0
	}
	return next.Limit - next.Spent
}

// LimitFor returns the payee's window. The boolean is false when no limit is
// configured, in which case the payee is unrestricted.
func (s *VaultState) LimitFor(payee [32]byte) (EpochSpending, bool) {
	idx := s.limitIndex(payee)
	if idx < 0 {
		return EpochSpending{}, false
	}
	return s.Limits[idx].Spending, true
}

// SetEpochLimit creates or wholesale replaces the payee's window with a fresh
// one starting at now. Any partially spent window is discarded.
func (s *VaultState) SetEpochLimit(payee [32]byte, limit uint64, duration int64, now int64) error {
	window, err := NewEpochSpending(limit, duration, now)
	if err != nil {
		return err
	}
	if !s.HasPayee(payee) {
		return ErrPayeeNotFound
	}
	if idx := s.limitIndex(payee); idx >= 0 {
		s.Limits[idx].Spending = window
		return nil
	}
	s.Limits = append(s.Limits, EpochLimit{Payee: payee, Spending: window})
	return nil
}

// chargeWithdrawal applies the payee's limit, if any, to a withdrawal of
// amount. It reports whether the state changed.
func (s *VaultState) chargeWithdrawal(payee [32]byte, amount uint64, now int64) (bool, error) {
	idx := s.limitIndex(payee)
	if idx < 0 {
		return false, nil
	}
	next, err := s.Limits[idx].Spending.Spend(amount, now)
	if err != nil {
		return false, err
	}
	s.Limits[idx].Spending = next
	return true, nil
}
