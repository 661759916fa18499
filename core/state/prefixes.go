package state

var (
	accountPrefix      = []byte("account/")
	vaultStatePrefix   = []byte("vault/state/")
	vaultCustodyPrefix = []byte("vault/custody/")
)
