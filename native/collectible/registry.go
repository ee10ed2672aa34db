package collectible

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"farmchain/native/farming"
)

var (
	// ErrUnitNotFound is returned for unknown unit identifiers.
	ErrUnitNotFound = errors.New("collectible: unit not found")
	// ErrNotOwner is returned when the caller does not hold the unit.
	ErrNotOwner = errors.New("collectible: caller does not own unit")
	// ErrInvalidAmount rejects zero amounts and splits that consume the unit.
	ErrInvalidAmount = errors.New("collectible: invalid amount")
	// ErrCollectionMismatch rejects merges across collections.
	ErrCollectionMismatch = errors.New("collectible: collection mismatch")
	// ErrInvalidCollection rejects blank collection names.
	ErrInvalidCollection = errors.New("collectible: collection required")
)

type unit struct {
	collection string
	amount     uint64
	owner      common.Address
}

// Registry tracks discrete collateral units. Units carry an amount so they
// can be split and merged; boosts only accept units of amount one.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*unit
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*unit)}
}

func newUnitID() string { return uuid.NewString() }

// Mint creates a unit of collection owned by owner and returns its id.
func (r *Registry) Mint(owner common.Address, collection string, amount uint64) (string, error) {
	name := farming.NormalizeCollection(collection)
	if name == "" {
		return "", ErrInvalidCollection
	}
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := newUnitID()
	r.units[id] = &unit{collection: name, amount: amount, owner: owner}
	return id, nil
}

// Describe returns the unit and its current owner.
func (r *Registry) Describe(unitID string) (farming.CollateralUnit, farming.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[unitID]
	if !ok {
		return farming.CollateralUnit{}, common.Address{}, ErrUnitNotFound
	}
	return farming.CollateralUnit{ID: unitID, Collection: u.collection, Amount: u.amount}, u.owner, nil
}

// Transfer hands a unit from one owner to another.
func (r *Registry) Transfer(unitID string, from, to farming.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	if u.owner != from {
		return fmt.Errorf("%w: %s", ErrNotOwner, from.Hex())
	}
	u.owner = to
	return nil
}

// Split carves amount out of unitID into a new unit held by the same owner.
func (r *Registry) Split(unitID string, owner common.Address, amount uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unitID]
	if !ok {
		return "", ErrUnitNotFound
	}
	if u.owner != owner {
		return "", ErrNotOwner
	}
	if amount == 0 || amount >= u.amount {
		return "", ErrInvalidAmount
	}
	u.amount -= amount
	id := newUnitID()
	r.units[id] = &unit{collection: u.collection, amount: amount, owner: owner}
	return id, nil
}

// Merge folds src into dst. Both units must share owner and collection;
// src ceases to exist.
func (r *Registry) Merge(owner common.Address, dstID, srcID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dst, ok := r.units[dstID]
	if !ok {
		return ErrUnitNotFound
	}
	src, ok := r.units[srcID]
	if !ok || dstID == srcID {
		return ErrUnitNotFound
	}
	if dst.owner != owner || src.owner != owner {
		return ErrNotOwner
	}
	if dst.collection != src.collection {
		return ErrCollectionMismatch
	}
	next := dst.amount + src.amount
	if next < dst.amount {
		return ErrInvalidAmount
	}
	dst.amount = next
	delete(r.units, srcID)
	return nil
}
