package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the sender lacks available balance to
	// cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount rejects non-positive or non-finite transfer amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer rejects transfers where sender and recipient are the
	// same identity.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")

	// ErrDuplicateTransfer indicates the provided client transaction identifier
	// already exists; the original outcome is returned alongside.
	ErrDuplicateTransfer = errors.New("duplicate transfer")

	// ErrLockTimeout surfaces a bounded lock wait that expired. The operation
	// made no mutation and may be retried.
	ErrLockTimeout = errors.New("balance lock not acquired in time")

	// ErrAccountNotFound indicates one of the balance rows does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// TransferRecord is one immutable entry of the append-only transfer log.
type TransferRecord struct {
	ID          string
	SenderID    int64
	RecipientID int64
	Amount      float64
	CreatedAt   time.Time
}

// TransferResult captures the outcome of a committed transfer.
type TransferResult struct {
	Record           TransferRecord
	SenderBalance    float64
	RecipientBalance float64
}

// Ledger moves value between identity balances with all-or-nothing semantics
// and records every committed transfer exactly once.
type Ledger interface {
	// Transfer debits senderID and credits recipientID atomically. clientTxID
	// is an optional de-duplication token; when empty a fresh one is
	// generated, when it matches a committed transfer the original result is
	// returned with ErrDuplicateTransfer.
	Transfer(ctx context.Context, senderID, recipientID int64, amount float64, clientTxID string) (TransferResult, error)

	// History lists the most recent transfers touching the identity, newest
	// first.
	History(ctx context.Context, identityID int64, limit int) ([]TransferRecord, error)
}

// Accounts is the balance view an in-memory ledger mutates. The postgres
// ledger operates on the identities table directly and does not use it.
type Accounts interface {
	// BalanceOf returns the current balance for the identity.
	BalanceOf(ctx context.Context, identityID int64) (float64, error)

	// ApplyTransfer debits sender, credits recipient and stamps both
	// identities' last-transfer time. Callers hold the row locks; the
	// implementation only needs to keep its own map access safe.
	ApplyTransfer(ctx context.Context, senderID, recipientID int64, amount float64, at time.Time) error
}
