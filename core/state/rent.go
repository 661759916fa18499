package state

import "math/bits"

// RentParams prices storage. A record of n bytes is exempt from rent once its
// owning account holds (n + ExemptionBytes) * PerByte * Multiplier.
type RentParams struct {
	PerByte        uint64 `yaml:"per_byte"`
	ExemptionBytes uint64 `yaml:"exemption_bytes"`
	Multiplier     uint64 `yaml:"multiplier"`
}

// DefaultRentParams prices 3480 per byte with a two-fold exemption multiplier.
func DefaultRentParams() RentParams {
	return RentParams{PerByte: 3480, ExemptionBytes: 128, Multiplier: 2}
}

// MinimumBalance returns the rent-exempt balance for a record of space bytes.
// The result saturates at the maximum uint64.
func (r RentParams) MinimumBalance(space int) uint64 {
	if space < 0 {
		space = 0
	}
	size := uint64(space) + r.ExemptionBytes
	hi, lo := bits.Mul64(size, r.PerByte)
	if hi != 0 {
		return ^uint64(0)
	}
	hi, lo = bits.Mul64(lo, r.Multiplier)
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}

// MinimumBalance exposes the manager's rent schedule.
func (m *Manager) MinimumBalance(space int) uint64 {
	return m.rent.MinimumBalance(space)
}
