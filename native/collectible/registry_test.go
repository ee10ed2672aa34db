package collectible

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb1")

	id, err := reg.Mint(alice, "badges", 3)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	part, err := reg.Split(id, alice, 2)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if left, _, _ := reg.Describe(id); left.Amount != 1 {
		t.Fatalf("expected 1 left, got %d", left.Amount)
	}
	if _, err := reg.Split(id, alice, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	unit, holder, err := reg.Describe(part)
	if err != nil || holder != alice || unit.Amount != 2 || unit.Collection != "badges" {
		t.Fatalf("unexpected unit %+v %s %v", unit, holder.Hex(), err)
	}
	if err := reg.Transfer(id, bob, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := reg.Merge(alice, id, part); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, _, err := reg.Describe(part); !errors.Is(err, ErrUnitNotFound) {
		t.Fatalf("merged unit still present: %v", err)
	}
	other, _ := reg.Mint(alice, "tickets", 1)
	if err := reg.Merge(alice, id, other); !errors.Is(err, ErrCollectionMismatch) {
		t.Fatalf("expected ErrCollectionMismatch, got %v", err)
	}
	if err := reg.Transfer(id, alice, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	moved, owner, _ := reg.Describe(id)
	if moved.Collection != "badges" {
		t.Fatalf("unexpected collection %q", moved.Collection)
	}
	if owner != bob {
		t.Fatalf("transfer did not move ownership")
	}
}
