package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes: lock_timeout expiry and unique constraint violation.
const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// PostgresLedger persists balances on the identities table and transfers in an
// append-only log, all inside a single transaction per operation.
type PostgresLedger struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresLedger {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &PostgresLedger{db: db, lockTimeout: lockTimeout}
}

// Transfer debits the sender and credits the recipient as one atomic unit.
// Both identity rows are locked FOR UPDATE in ascending id order.
func (l *PostgresLedger) Transfer(ctx context.Context, senderID, recipientID int64, amount float64, clientTxID string) (TransferResult, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return TransferResult{}, ErrInvalidAmount
	}
	if senderID == recipientID {
		return TransferResult{}, ErrSelfTransfer
	}
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())); err != nil {
		return TransferResult{}, fmt.Errorf("set lock timeout: %w", err)
	}

	if prior, found, err := l.priorResult(ctx, tx, clientTxID); err != nil {
		return TransferResult{}, err
	} else if found {
		return prior, ErrDuplicateTransfer
	}

	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}
	balances := map[int64]float64{}
	for _, id := range []int64{first, second} {
		var bal float64
		err := tx.QueryRow(ctx, `SELECT balance FROM identities WHERE id = $1 FOR UPDATE`, id).Scan(&bal)
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, fmt.Errorf("identity %d: %w", id, ErrAccountNotFound)
		}
		if err != nil {
			return TransferResult{}, mapLockErr(err)
		}
		balances[id] = bal
	}

	if balances[senderID] < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE identities SET balance = balance - $1, last_transfer_at = $2 WHERE id = $3`,
		amount, now, senderID); err != nil {
		return TransferResult{}, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE identities SET balance = balance + $1, last_transfer_at = $2 WHERE id = $3`,
		amount, now, recipientID); err != nil {
		return TransferResult{}, fmt.Errorf("credit recipient: %w", err)
	}

	record := TransferRecord{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		CreatedAt:   now,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transfers (id, client_tx_id, sender_id, recipient_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, clientTxID, senderID, recipientID, amount, now); err != nil {
		// A concurrent transfer with the same client tx id can slip past the
		// priorResult lookup; its commit surfaces here as a unique violation.
		return TransferResult{}, mapInsertErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, fmt.Errorf("commit transfer: %w", err)
	}

	return TransferResult{
		Record:           record,
		SenderBalance:    balances[senderID] - amount,
		RecipientBalance: balances[recipientID] + amount,
	}, nil
}

// History lists recent transfers touching the identity, newest first. Sender
// or recipient may have been removed; their ids surface as zero.
func (l *PostgresLedger) History(ctx context.Context, identityID int64, limit int) ([]TransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(ctx, `SELECT id, COALESCE(sender_id, 0), COALESCE(recipient_id, 0), amount, created_at
        FROM transfers
        WHERE sender_id = $1 OR recipient_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []TransferRecord
	for rows.Next() {
		var r TransferRecord
		var id uuid.UUID
		if err := rows.Scan(&id, &r.SenderID, &r.RecipientID, &r.Amount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.ID = id.String()
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// priorResult looks up an already-committed transfer for the client tx id and
// reconstructs its result from current balances.
func (l *PostgresLedger) priorResult(ctx context.Context, tx pgx.Tx, clientTxID string) (TransferResult, bool, error) {
	var r TransferRecord
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id, COALESCE(sender_id, 0), COALESCE(recipient_id, 0), amount, created_at
        FROM transfers WHERE client_tx_id = $1`, clientTxID).
		Scan(&id, &r.SenderID, &r.RecipientID, &r.Amount, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, false, nil
	}
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("lookup prior transfer: %w", err)
	}
	r.ID = id.String()
	r.CreatedAt = r.CreatedAt.UTC()

	res := TransferResult{Record: r}
	if r.SenderID != 0 {
		if err := tx.QueryRow(ctx, `SELECT balance FROM identities WHERE id = $1`, r.SenderID).Scan(&res.SenderBalance); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, false, err
		}
	}
	if r.RecipientID != 0 {
		if err := tx.QueryRow(ctx, `SELECT balance FROM identities WHERE id = $1`, r.RecipientID).Scan(&res.RecipientBalance); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, false, err
		}
	}
	return res, true, nil
}

func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return ErrLockTimeout
	}
	return err
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateTransfer
	}
	return fmt.Errorf("append transfer record: %w", err)
}
