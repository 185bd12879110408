package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the allocator; *pgxpool.Pool satisfies it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// documentColumns maps each document type to the table and column carrying
// its reference.
var documentColumns = map[DocumentType][2]string{
	DocumentInvoice:    {"invoices", "reference"},
	DocumentEstimate:   {"estimates", "reference"},
	DocumentReceipt:    {"receipts", "receipt_number"},
	DocumentCreditNote: {"credit_notes", "reference"},
	DocumentRefund:     {"refunds", "reference"},
}

// Seeder reports the highest sequence already issued for a key, or zero.
type Seeder interface {
	HighestSequence(ctx context.Context, docType DocumentType, year int) (int64, error)
}

// PostgresSeeder reads the highest existing reference from the document tables.
type PostgresSeeder struct {
	db Querier
}

// NewPostgresSeeder constructs the seeder.
func NewPostgresSeeder(db Querier) *PostgresSeeder {
	return &PostgresSeeder{db: db}
}

// HighestSequence returns the numeric suffix of the highest PREFIX-YEAR-* reference.
func (s *PostgresSeeder) HighestSequence(ctx context.Context, docType DocumentType, year int) (int64, error) {
	prefix, err := docType.Prefix()
	if err != nil {
		return 0, err
	}
	target := documentColumns[docType]
	// Longer suffixes sort first so INV-2025-10000 beats INV-2025-9999.
	query := fmt.Sprintf(`SELECT %[2]s FROM %[1]s WHERE %[2]s LIKE $1
ORDER BY length(%[2]s) DESC, %[2]s DESC LIMIT 1`, target[0], target[1])

	var highest string
	err = s.db.QueryRow(ctx, query, Pattern(prefix, year)).Scan(&highest)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("numbering: read highest %s reference: %w", docType, err)
	}
	ref, err := Parse(highest)
	if err != nil {
		return 0, err
	}
	return ref.Seq, nil
}

// PostgresAllocator keeps one counter row per (type, year) in
// document_sequences. The UPDATE ... RETURNING takes the row lock, so
// concurrent allocations for a key are serialized by PostgreSQL.
type PostgresAllocator struct {
	db     Querier
	seeder Seeder
}

// NewPostgresAllocator constructs the allocator.
func NewPostgresAllocator(db Querier) *PostgresAllocator {
	return &PostgresAllocator{db: db, seeder: NewPostgresSeeder(db)}
}

// Allocate increments the counter, seeding it on first use for the year.
func (a *PostgresAllocator) Allocate(ctx context.Context, docType DocumentType, year int) (int64, error) {
	seq, err := a.increment(ctx, docType, year)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	seed, err := a.seeder.HighestSequence(ctx, docType, year)
	if err != nil {
		return 0, err
	}
	if _, err := a.db.Exec(ctx, `INSERT INTO document_sequences (doc_type, year, last_value)
VALUES ($1, $2, $3) ON CONFLICT (doc_type, year) DO NOTHING`, string(docType), year, seed); err != nil {
		return 0, fmt.Errorf("numbering: seed %s %d: %w", docType, year, err)
	}
	return a.increment(ctx, docType, year)
}

func (a *PostgresAllocator) increment(ctx context.Context, docType DocumentType, year int) (int64, error) {
	var seq int64
	err := a.db.QueryRow(ctx, `UPDATE document_sequences SET last_value = last_value + 1, updated_at = NOW()
WHERE doc_type = $1 AND year = $2 RETURNING last_value`, string(docType), year).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("numbering: increment %s %d: %w", docType, year, err)
	}
	return seq, nil
}
