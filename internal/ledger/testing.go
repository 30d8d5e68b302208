package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StaticAccounts is a minimal map-backed Accounts implementation for ledger
// unit tests in this and sibling packages.
type StaticAccounts struct {
	mu       sync.Mutex
	balances map[int64]float64
	lastAt   map[int64]time.Time
}

// NewStaticAccounts seeds an account store with the given balances.
func NewStaticAccounts(balances map[int64]float64) *StaticAccounts {
	copied := make(map[int64]float64, len(balances))
	for id, bal := range balances {
		copied[id] = bal
	}
	return &StaticAccounts{balances: copied, lastAt: make(map[int64]time.Time)}
}

// BalanceOf returns the balance for the identity.
func (a *StaticAccounts) BalanceOf(_ context.Context, identityID int64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bal, ok := a.balances[identityID]
	if !ok {
		return 0, fmt.Errorf("identity %d: %w", identityID, ErrAccountNotFound)
	}
	return bal, nil
}

// ApplyTransfer moves amount between the two balances.
func (a *StaticAccounts) ApplyTransfer(_ context.Context, senderID, recipientID int64, amount float64, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[senderID] -= amount
	a.balances[recipientID] += amount
	a.lastAt[senderID] = at
	a.lastAt[recipientID] = at
	return nil
}

// Total sums every balance; conservation assertions use it.
func (a *StaticAccounts) Total() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var sum float64
	for _, bal := range a.balances {
		sum += bal
	}
	return sum
}
