package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
	"github.com/Sweyy-goat/QuickId/internal/matcher"
)

// Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Repository persists enrolled identities. Implementations also serve as the
// matcher's candidate source.
type Repository interface {
	// Insert stores the identity, assigns its id and creation time in place,
	// and fails with ErrDuplicateContact when the contact handle exists.
	Insert(ctx context.Context, ident *Identity) error

	// Get fetches one identity by id, ErrNotFound when absent.
	Get(ctx context.Context, id int64) (Identity, error)

	// Candidates returns a consistent snapshot of enrolled templates ordered
	// by ascending id. Undecodable stored descriptors come back nil so the
	// matcher can skip them without aborting the scan.
	Candidates(ctx context.Context) ([]matcher.Candidate, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new identity row with its template and opening balance.
func (r *PostgresRepository) Insert(ctx context.Context, ident *Identity) error {
	raw, err := ident.Descriptor.Encode()
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}

	err = r.db.QueryRow(ctx, `INSERT INTO identities (name, contact, descriptor, balance, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`,
		ident.Name, ident.Contact, raw, ident.Balance, time.Now().UTC()).
		Scan(&ident.ID, &ident.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateContact
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	ident.CreatedAt = ident.CreatedAt.UTC()
	return nil
}

// Get fetches identity metadata and balance by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, contact, descriptor, balance, last_transfer_at, created_at
        FROM identities WHERE id = $1`, id)

	var (
		ident Identity
		raw   []byte
	)
	if err := row.Scan(&ident.ID, &ident.Name, &ident.Contact, &raw, &ident.Balance, &ident.LastTransferAt, &ident.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	// Corrupt templates do not make the identity unreadable.
	ident.Descriptor, _ = descriptor.Decode(raw)
	ident.CreatedAt = ident.CreatedAt.UTC()
	return ident, nil
}

// Candidates snapshots all enrolled templates for the matcher scan.
func (r *PostgresRepository) Candidates(ctx context.Context) ([]matcher.Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT id, descriptor FROM identities
        WHERE descriptor IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []matcher.Candidate
	for rows.Next() {
		var (
			c   matcher.Candidate
			raw []byte
		)
		if err := rows.Scan(&c.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Descriptor, _ = descriptor.Decode(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}
