package vault

// Byte widths of the fixed-capacity persisted layout.
const (
	discriminatorSize = 8
	bumpSize          = 1
	identitySize      = 32
	lengthPrefixSize  = 4
	scheduleSize      = 8 + 8 + 8 + 1
	epochLimitSize    = identitySize + 8 + 8 + 8 + 8
	flagSize          = 1
)

// StateSpace is the reserved size of one vault record in bytes. The custody
// account must be funded with the storage layer's minimum balance for this
// size at initialization.
const StateSpace = discriminatorSize +
	2*bumpSize +
	identitySize +
	lengthPrefixSize + MaxPayees*identitySize +
	lengthPrefixSize + MaxSchedules*scheduleSize +
	lengthPrefixSize + MaxPayees*epochLimitSize +
	flagSize
