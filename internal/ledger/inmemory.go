package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	accounts    Accounts
	lockTimeout time.Duration

	mu       sync.Mutex
	locks    map[int64]chan struct{}
	byTxID   map[string]TransferResult
	inflight map[string]struct{}
	records  []TransferRecord
}

// NewInMemory creates a concurrency-safe in-memory ledger over the given
// account store. Used in tests and as the development fallback when no
// database is configured.
func NewInMemory(accounts Accounts, lockTimeout time.Duration) Ledger {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &inMemoryLedger{
		accounts:    accounts,
		lockTimeout: lockTimeout,
		locks:       make(map[int64]chan struct{}),
		byTxID:      make(map[string]TransferResult),
		inflight:    make(map[string]struct{}),
	}
}

func (l *inMemoryLedger) Transfer(ctx context.Context, senderID, recipientID int64, amount float64, clientTxID string) (TransferResult, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return TransferResult{}, ErrInvalidAmount
	}
	if senderID == recipientID {
		return TransferResult{}, ErrSelfTransfer
	}
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	l.mu.Lock()
	if prior, exists := l.byTxID[clientTxID]; exists {
		l.mu.Unlock()
		return prior, ErrDuplicateTransfer
	}
	if _, busy := l.inflight[clientTxID]; busy {
		l.mu.Unlock()
		return TransferResult{}, ErrDuplicateTransfer
	}
	l.inflight[clientTxID] = struct{}{}
	l.mu.Unlock()

	// The reservation is dropped on every exit; a committed transfer is
	// already visible in byTxID by then.
	defer func() {
		l.mu.Lock()
		delete(l.inflight, clientTxID)
		l.mu.Unlock()
	}()

	// Row locks are acquired in ascending id order so two transfers touching
	// the same pair in opposite directions cannot deadlock.
	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}

	deadline := time.Now().Add(l.lockTimeout)
	if err := l.acquire(ctx, first, deadline); err != nil {
		return TransferResult{}, err
	}
	defer l.release(first)
	if err := l.acquire(ctx, second, deadline); err != nil {
		return TransferResult{}, err
	}
	defer l.release(second)

	senderBalance, err := l.accounts.BalanceOf(ctx, senderID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("sender balance: %w", err)
	}
	if _, err := l.accounts.BalanceOf(ctx, recipientID); err != nil {
		return TransferResult{}, fmt.Errorf("recipient balance: %w", err)
	}
	if senderBalance < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if err := l.accounts.ApplyTransfer(ctx, senderID, recipientID, amount, now); err != nil {
		return TransferResult{}, fmt.Errorf("apply transfer: %w", err)
	}

	record := TransferRecord{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		CreatedAt:   now,
	}

	newSender, _ := l.accounts.BalanceOf(ctx, senderID)
	newRecipient, _ := l.accounts.BalanceOf(ctx, recipientID)
	res := TransferResult{Record: record, SenderBalance: newSender, RecipientBalance: newRecipient}

	l.mu.Lock()
	l.byTxID[clientTxID] = res
	l.records = append(l.records, record)
	l.mu.Unlock()

	return res, nil
}

func (l *inMemoryLedger) History(_ context.Context, identityID int64, limit int) ([]TransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TransferRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := l.records[i]
		if r.SenderID == identityID || r.RecipientID == identityID {
			out = append(out, r)
		}
	}
	return out, nil
}

// acquire takes the per-identity lock, waiting at most until deadline.
func (l *inMemoryLedger) acquire(ctx context.Context, id int64, deadline time.Time) error {
	l.mu.Lock()
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	l.mu.Unlock()

	wait := time.Until(deadline)
	if wait <= 0 {
		return ErrLockTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *inMemoryLedger) release(id int64) {
	l.mu.Lock()
	ch := l.locks[id]
	l.mu.Unlock()
	<-ch
}
