package bank

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAsset is returned for blank asset symbols.
	ErrInvalidAsset = errors.New("bank: asset required")
	// ErrBalanceOverflow guards credits that would wrap.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
)

// Ledger keeps fungible balances per account and asset. It is safe for
// concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[string]uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[string]uint64)}
}

func normalizeAsset(asset string) (string, error) {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "", ErrInvalidAsset
	}
	return trimmed, nil
}

// Mint credits amount of asset to owner.
func (l *Ledger) Mint(owner common.Address, asset string, amount uint64) error {
	symbol, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(owner, symbol, amount)
}

// Balance returns the balance of asset held by owner.
func (l *Ledger) Balance(owner common.Address, asset string) uint64 {
	symbol, err := normalizeAsset(asset)
	if err != nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner][symbol]
}

// Transfer moves amount of asset from one account to another. A zero amount
// is a no-op.
func (l *Ledger) Transfer(from, to common.Address, asset string, amount uint64) error {
	symbol, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	have := l.balances[from][symbol]
	if have < amount {
		return fmt.Errorf("%w: %s has %d %s, needs %d", ErrInsufficientBalance, from.Hex(), have, symbol, amount)
	}
	if from == to {
		return nil
	}
	if err := l.credit(to, symbol, amount); err != nil {
		return err
	}
	l.balances[from][symbol] = have - amount
	return nil
}

// Assets lists the assets with a non-zero balance for owner.
func (l *Ledger) Assets(owner common.Address) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	assets := make([]string, 0, len(l.balances[owner]))
	for symbol, amount := range l.balances[owner] {
		if amount > 0 {
			assets = append(assets, symbol)
		}
	}
	sort.Strings(assets)
	return assets
}

func (l *Ledger) credit(owner common.Address, symbol string, amount uint64) error {
	account, ok := l.balances[owner]
	if !ok {
		account = make(map[string]uint64)
		l.balances[owner] = account
	}
	next := account[symbol] + amount
	if next < account[symbol] {
		return ErrBalanceOverflow
	}
	account[symbol] = next
	return nil
}
