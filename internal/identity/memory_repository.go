package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sweyy-goat/QuickId/internal/ledger"
	"github.com/Sweyy-goat/QuickId/internal/matcher"
)

// MemoryRepository is an in-memory identity store for tests and the dev
// fallback. It doubles as the account view the in-memory ledger mutates.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Identity
}

// NewMemoryRepository builds an empty in-memory identity store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: make(map[int64]Identity)}
}

// Insert stores the identity, assigning the next sequential id.
func (r *MemoryRepository) Insert(_ context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Contact == ident.Contact {
			return ErrDuplicateContact
		}
	}

	ident.ID = r.nextID
	r.nextID++
	ident.CreatedAt = time.Now().UTC()
	r.byID[ident.ID] = *ident
	return nil
}

// Get fetches one identity by id.
func (r *MemoryRepository) Get(_ context.Context, id int64) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident, nil
}

// Candidates snapshots enrolled templates in ascending id order.
func (r *MemoryRepository) Candidates(_ context.Context) ([]matcher.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]matcher.Candidate, 0, len(r.byID))
	for _, ident := range r.byID {
		if len(ident.Descriptor) == 0 {
			continue
		}
		out = append(out, matcher.Candidate{ID: ident.ID, Descriptor: ident.Descriptor})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BalanceOf implements ledger.Accounts.
func (r *MemoryRepository) BalanceOf(_ context.Context, identityID int64) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.byID[identityID]
	if !ok {
		return 0, fmt.Errorf("identity %d: %w", identityID, ledger.ErrAccountNotFound)
	}
	return ident.Balance, nil
}

// ApplyTransfer implements ledger.Accounts. The ledger holds the row locks;
// this only moves the balances and stamps the transfer time.
func (r *MemoryRepository) ApplyTransfer(_ context.Context, senderID, recipientID int64, amount float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.byID[senderID]
	if !ok {
		return fmt.Errorf("identity %d: %w", senderID, ledger.ErrAccountNotFound)
	}
	recipient, ok := r.byID[recipientID]
	if !ok {
		return fmt.Errorf("identity %d: %w", recipientID, ledger.ErrAccountNotFound)
	}

	sender.Balance -= amount
	recipient.Balance += amount
	senderAt, recipientAt := at, at
	sender.LastTransferAt = &senderAt
	recipient.LastTransferAt = &recipientAt

	r.byID[senderID] = sender
	r.byID[recipientID] = recipient
	return nil
}
