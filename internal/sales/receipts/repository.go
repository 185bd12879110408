package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// PostgresRepository is the pgx backed Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const receiptColumns = `id, receipt_number, invoice_id, edit_id, customer_id, sales_rep_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, payment_method, signature, note, created_at, completed_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var (
		rec       Receipt
		invoiceID pgtype.Int8
		editID    pgtype.UUID
		salesRep  pgtype.Int8
		items     []byte
		money     shared.NumericSummary
		status    string
		method    string
		completed pgtype.Timestamptz
	)
	targets := []any{&rec.ID, &rec.ReceiptNumber, &invoiceID, &editID, &rec.CustomerID, &salesRep, &items}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &method, &rec.Signature, &rec.Note, &rec.CreatedAt, &completed)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, shared.ErrNotFound
		}
		return Receipt{}, err
	}
	var err error
	if rec.Items, err = shared.UnmarshalItems(items); err != nil {
		return Receipt{}, err
	}
	if invoiceID.Valid {
		id := invoiceID.Int64
		rec.InvoiceID = &id
	}
	if editID.Valid {
		id := uuid.UUID(editID.Bytes)
		rec.EditID = &id
	}
	if completed.Valid {
		at := completed.Time
		rec.CompletedAt = &at
	}
	rec.SalesRepID = salesRep.Int64
	rec.Summary = money.Summary()
	rec.Status = shared.ReceiptStatus(status)
	rec.PaymentMethod = shared.PaymentMethod(method)
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Receipt, error) {
	return scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id))
}

func (r *PostgresRepository) FindByEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (Receipt, error) {
	return scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts
WHERE invoice_id = $1 AND edit_id = $2`, invoiceID, editID))
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Receipt, int, error) {
	var invoiceID pgtype.Int8
	var status pgtype.Text
	if filter.InvoiceID != nil {
		invoiceID = pgtype.Int8{Int64: *filter.InvoiceID, Valid: true}
	}
	if filter.Status != nil {
		status = pgtype.Text{String: string(*filter.Status), Valid: true}
	}
	const where = `WHERE ($1::bigint IS NULL OR invoice_id = $1) AND ($2::text IS NULL OR status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts `+where, invoiceID, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM receipts `+where+`
ORDER BY id DESC LIMIT $3 OFFSET $4`, invoiceID, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func insertArgs(rec Receipt) ([]any, error) {
	items, err := shared.MarshalItems(rec.Items)
	if err != nil {
		return nil, err
	}
	var (
		invoiceID pgtype.Int8
		editID    pgtype.UUID
		salesRep  pgtype.Int8
		completed pgtype.Timestamptz
	)
	if rec.InvoiceID != nil {
		invoiceID = pgtype.Int8{Int64: *rec.InvoiceID, Valid: true}
	}
	if rec.EditID != nil {
		editID = pgtype.UUID{Bytes: *rec.EditID, Valid: true}
	}
	if rec.SalesRepID > 0 {
		salesRep = pgtype.Int8{Int64: rec.SalesRepID, Valid: true}
	}
	if rec.CompletedAt != nil {
		completed = pgtype.Timestamptz{Time: *rec.CompletedAt, Valid: true}
	}
	args := []any{rec.ReceiptNumber, invoiceID, editID, rec.CustomerID, salesRep, items}
	args = append(args, shared.SummaryArgs(rec.Summary)...)
	args = append(args, string(rec.Status), string(rec.PaymentMethod), rec.Signature, rec.Note, rec.CreatedAt, completed)
	return args, nil
}

const insertReceipt = `INSERT INTO receipts (
	receipt_number, invoice_id, edit_id, customer_id, sales_rep_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, payment_method, signature, note, created_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func (r *PostgresRepository) Insert(ctx context.Context, rec Receipt) (int64, error) {
	args, err := insertArgs(rec)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.pool.QueryRow(ctx, insertReceipt+` RETURNING id`, args...).Scan(&id); err != nil {
		return 0, mapInsertError(rec, err)
	}
	return id, nil
}

// InsertFromEdit relies on the receipts_invoice_edit_key unique index: a
// concurrent insert for the same pair affects no row and the winner is read back.
func (r *PostgresRepository) InsertFromEdit(ctx context.Context, rec Receipt) (Receipt, bool, error) {
	if !rec.FromEdit() {
		return Receipt{}, false, fmt.Errorf("receipts: insert from edit without invoice/edit reference")
	}
	args, err := insertArgs(rec)
	if err != nil {
		return Receipt{}, false, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, insertReceipt+`
ON CONFLICT (invoice_id, edit_id) WHERE edit_id IS NOT NULL DO NOTHING
RETURNING id`, args...).Scan(&id)
	switch {
	case err == nil:
		rec.ID = id
		return rec, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.FindByEdit(ctx, *rec.InvoiceID, *rec.EditID)
		if err != nil {
			return Receipt{}, false, err
		}
		return existing, false, nil
	default:
		return Receipt{}, false, mapInsertError(rec, err)
	}
}

func mapInsertError(rec Receipt, err error) error {
	if db.IsUniqueViolation(err, "receipts_receipt_number_key") {
		return fmt.Errorf("receipt %s: %w", rec.ReceiptNumber, numbering.ErrDuplicateReference)
	}
	return err
}

func (r *PostgresRepository) Complete(ctx context.Context, rec Receipt) error {
	args := []any{rec.ID}
	args = append(args, shared.SummaryArgs(rec.Summary)...)
	args = append(args, string(rec.Status), rec.Signature, rec.CompletedAt)
	tag, err := r.pool.Exec(ctx, `UPDATE receipts SET
	subtotal = $2, discount_total = $3, tax = $4, total = $5, deposit_received = $6, balance_due = $7,
	status = $8, signature = $9, completed_at = $10
WHERE id = $1 AND status = 'draft'`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: receipt %d is not a draft", shared.ErrInvalidStatus, rec.ID)
	}
	return nil
}
