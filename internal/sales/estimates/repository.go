package estimates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const estimateColumns = `id, reference, customer_id, sales_rep_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, valid_until, message, invoice_id, created_at, updated_at`

func scanEstimate(row pgx.Row) (Estimate, error) {
	var (
		est       Estimate
		salesRep  pgtype.Int8
		items     []byte
		money     shared.NumericSummary
		status    string
		invoiceID pgtype.Int8
	)
	targets := []any{&est.ID, &est.Reference, &est.CustomerID, &salesRep, &items}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &est.ValidUntil, &est.Message, &invoiceID, &est.CreatedAt, &est.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Estimate{}, shared.ErrNotFound
		}
		return Estimate{}, err
	}
	var err error
	if est.Items, err = shared.UnmarshalItems(items); err != nil {
		return Estimate{}, err
	}
	est.SalesRepID = salesRep.Int64
	est.Summary = money.Summary()
	est.Status = shared.EstimateStatus(status)
	if invoiceID.Valid {
		id := invoiceID.Int64
		est.InvoiceID = &id
	}
	return est, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Estimate, error) {
	return scanEstimate(r.pool.QueryRow(ctx, `SELECT `+estimateColumns+` FROM estimates WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Estimate, int, error) {
	var customerID pgtype.Int8
	var status pgtype.Text
	if filter.CustomerID != nil {
		customerID = pgtype.Int8{Int64: *filter.CustomerID, Valid: true}
	}
	if filter.Status != nil {
		status = pgtype.Text{String: string(*filter.Status), Valid: true}
	}
	const where = `WHERE ($1::bigint IS NULL OR customer_id = $1) AND ($2::text IS NULL OR status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM estimates `+where, customerID, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+estimateColumns+` FROM estimates `+where+`
ORDER BY id DESC LIMIT $3 OFFSET $4`, customerID, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		est, err := scanEstimate(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, est)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) Insert(ctx context.Context, est Estimate) (int64, error) {
	items, err := shared.MarshalItems(est.Items)
	if err != nil {
		return 0, err
	}
	var salesRep pgtype.Int8
	if est.SalesRepID > 0 {
		salesRep = pgtype.Int8{Int64: est.SalesRepID, Valid: true}
	}
	args := []any{est.Reference, est.CustomerID, salesRep, items}
	args = append(args, shared.SummaryArgs(est.Summary)...)
	args = append(args, string(est.Status), est.ValidUntil, est.Message, est.CreatedAt)

	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO estimates (
	reference, customer_id, sales_rep_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, valid_until, message, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
RETURNING id`, args...).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "estimates_reference_key") {
			return 0, fmt.Errorf("estimate %s: %w", est.Reference, numbering.ErrDuplicateReference)
		}
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepository) Update(ctx context.Context, est Estimate) error {
	items, err := shared.MarshalItems(est.Items)
	if err != nil {
		return err
	}
	args := []any{est.ID, items}
	args = append(args, shared.SummaryArgs(est.Summary)...)
	args = append(args, est.ValidUntil, est.Message, est.UpdatedAt)
	tag, err := r.pool.Exec(ctx, `UPDATE estimates SET
	items = $2, subtotal = $3, discount_total = $4, tax = $5, total = $6, deposit_received = $7, balance_due = $8,
	valid_until = $9, message = $10, updated_at = $11
WHERE id = $1 AND status = 'draft'`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("estimate %d: %w", est.ID, shared.ErrImmutable)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, from, to shared.EstimateStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE estimates SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: estimate %d is no longer %s", shared.ErrInvalidStatus, id, from)
	}
	return nil
}

func (r *PostgresRepository) LinkInvoice(ctx context.Context, id, invoiceID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE estimates SET invoice_id = $2, updated_at = $3
WHERE id = $1 AND status = 'converted' AND invoice_id IS NULL`, id, invoiceID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: estimate %d already linked", shared.ErrInvalidStatus, id)
	}
	return nil
}

func (r *PostgresRepository) ExpirePending(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `UPDATE estimates SET status = 'expired', updated_at = NOW()
WHERE status = 'pending' AND valid_until < $1
RETURNING id`, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
