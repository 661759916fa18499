package vault

import "math"

// SchedulePayout appends a recurring payout of amount every interval seconds,
// first claimable at start. Validation order: amount, interval, start, payee,
// capacity.
func (s *VaultState) SchedulePayout(payee [32]byte, amount uint64, start, interval, now int64) error {
	if amount == 0 || interval <= 0 || start <= now {
		return ErrInvalidPayoutSchedule
	}
	if !s.HasPayee(payee) {
		return ErrPayeeNotFound
	}
	if len(s.Schedules) >= MaxSchedules {
		return ErrMaxSchedulesReached
	}
	s.Schedules = append(s.Schedules, PayoutSchedule{
		Amount:         amount,
		NextPayoutTime: start,
		Interval:       interval,
		Active:         true,
	})
	return nil
}

// CancelPayout deactivates the first active schedule. The payee must be known
// but is not matched against the schedule.
func (s *VaultState) CancelPayout(payee [32]byte) (int, error) {
	if !s.HasPayee(payee) {
		return -1, ErrPayeeNotFound
	}
	idx, ok := s.firstActiveSchedule()
	if !ok {
		return -1, ErrScheduleNotFound
	}
	s.Schedules[idx].Active = false
	return idx, nil
}

// DuePayout returns the schedule a claim at now would pay out.
func (s *VaultState) DuePayout(now int64) (int, PayoutSchedule, error) {
	idx, ok := s.firstActiveSchedule()
	if !ok {
		return -1, PayoutSchedule{}, ErrScheduleNotFound
	}
	schedule := s.Schedules[idx]
	if now < schedule.NextPayoutTime {
		return idx, schedule, ErrPayoutTimeNotReached
	}
	if schedule.NextPayoutTime > math.MaxInt64-schedule.Interval {
		return idx, schedule, ErrScheduleOverflow
	}
	return idx, schedule, nil
}

// advance moves the schedule forward by exactly one interval. Missed
// intervals stay claimable one at a time.
func (s *VaultState) advance(idx int) {
	s.Schedules[idx].NextPayoutTime += s.Schedules[idx].Interval
}

func (s *VaultState) firstActiveSchedule() (int, bool) {
	for i, schedule := range s.Schedules {
		if schedule.Active {
			return i, true
		}
	}
	return -1, false
}
