package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"devquestvault/storage"
)

func testIdentity(fill byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = fill
	}
	return id
}

func TestTransferMovesBalance(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), DefaultRentParams())
	a, b := testIdentity(1), testIdentity(2)
	if err := mgr.Credit(a, uint256.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := mgr.Transfer(a, b, uint256.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balA, _ := mgr.Balance(a)
	balB, _ := mgr.Balance(b)
	if balA.Uint64() != 60 || balB.Uint64() != 40 {
		t.Fatalf("balances a=%s b=%s", balA.Dec(), balB.Dec())
	}
	src, _ := mgr.GetAccount(a)
	dst, _ := mgr.GetAccount(b)
	if src.Nonce != 1 || dst.Nonce != 0 {
		t.Fatalf("nonces a=%d b=%d", src.Nonce, dst.Nonce)
	}
	if err := mgr.Transfer(a, b, uint256.NewInt(61)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := mgr.Transfer(a, a, uint256.NewInt(60)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balA, _ = mgr.Balance(a)
	if balA.Uint64() != 60 {
		t.Fatalf("self transfer changed balance: %s", balA.Dec())
	}
}

func TestCreditOverflow(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), DefaultRentParams())
	a := testIdentity(1)
	max := new(uint256.Int).SetAllOne()
	if err := mgr.Credit(a, max); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := mgr.Credit(a, uint256.NewInt(1)); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestMissingAccountIsEmpty(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), DefaultRentParams())
	account, err := mgr.GetAccount(testIdentity(9))
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Nonce != 0 || !account.Balance.IsZero() {
		t.Fatalf("unexpected account: %+v", account)
	}
}
