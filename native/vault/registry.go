package vault

// AddPayee appends id to the payee set.
func (s *VaultState) AddPayee(id [32]byte) error {
	if len(s.Payees) >= MaxPayees {
		return ErrMaxPayeesReached
	}
	if s.HasPayee(id) {
		return ErrPayeeAlreadyExists
	}
	s.Payees = append(s.Payees, id)
	return nil
}

// RemovePayee deletes id from the payee set and drops the first active payout
// schedule, if any. The dropped schedule is chosen by list order and is not
// matched against id because schedules carry no payee. The returned index is
// the dropped schedule, or -1 when none was active.
//
// The payee's epoch limit entry is left in place.
func (s *VaultState) RemovePayee(id [32]byte) (int, error) {
	idx := s.payeeIndex(id)
	if idx < 0 {
		return -1, ErrPayeeNotFound
	}
	s.Payees = append(s.Payees[:idx], s.Payees[idx+1:]...)
	dropped, ok := s.firstActiveSchedule()
	if !ok {
		return -1, nil
	}
	s.Schedules = append(s.Schedules[:dropped], s.Schedules[dropped+1:]...)
	return dropped, nil
}
