package bank

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLedgerTransfer(t *testing.T) {
	ledger := NewLedger()
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")
	if err := ledger.Mint(from, " LP ", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(from, to, "LP", 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ledger.Balance(from, "LP") != 60 || ledger.Balance(to, "LP") != 40 {
		t.Fatalf("unexpected balances %d/%d", ledger.Balance(from, "LP"), ledger.Balance(to, "LP"))
	}
	if err := ledger.Transfer(from, to, "LP", 61); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(from, to, "", 1); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
	if err := ledger.Transfer(to, to, "LP", 40); err != nil || ledger.Balance(to, "LP") != 40 {
		t.Fatalf("self transfer changed balance: %v", err)
	}
	if assets := ledger.Assets(to); len(assets) != 1 || assets[0] != "LP" {
		t.Fatalf("unexpected assets %v", assets)
	}
}
