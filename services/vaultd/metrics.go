package vaultd

import "devquestvault/observability"

// Metrics aliases the shared vaultd collectors.
type Metrics = observability.VaultdMetrics

// NewMetrics returns the process-wide vaultd metrics registry.
func NewMetrics() *Metrics { return observability.Vaultd() }
