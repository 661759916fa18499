package types

import "github.com/holiman/uint256"

// Account holds the spendable balance of a principal or custody account.
// Nonce counts outgoing transfers.
type Account struct {
	Nonce   uint64       `json:"nonce"`
	Balance *uint256.Int `json:"balance"`
}

// NewAccount returns an empty account with a non-nil balance.
func NewAccount() *Account {
	return &Account{Balance: new(uint256.Int)}
}
