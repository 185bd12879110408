package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PostgresRepository is the pgx backed Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

// WithTx runs fn inside a repeatable read transaction. A serialization
// failure that outlives db.WithTx's retries is reported as ErrConcurrentEdit.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{pool: r.pool, db: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentEdit, err)
	}
	return err
}

const invoiceColumns = `id, reference, customer_id, sales_rep_id, payment_terms, message, signature,
	items, initial_deposit, initial_status, current_items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, last_seq, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv            Invoice
		salesRep       pgtype.Int8
		items, current []byte
		initialDeposit pgtype.Numeric
		money          shared.NumericSummary
		initialStatus  string
		status         string
	)
	targets := []any{&inv.ID, &inv.Reference, &inv.CustomerID, &salesRep, &inv.PaymentTerms, &inv.Message, &inv.Signature,
		&items, &initialDeposit, &initialStatus, &current}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &inv.LastSeq, &inv.CreatedAt, &inv.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}

	var err error
	if inv.Items, err = shared.UnmarshalItems(items); err != nil {
		return Invoice{}, err
	}
	if inv.CurrentItems, err = shared.UnmarshalItems(current); err != nil {
		return Invoice{}, err
	}
	inv.SalesRepID = salesRep.Int64
	inv.InitialDeposit = shared.NumericToDecimal(initialDeposit)
	inv.InitialStatus = shared.InvoiceStatus(initialStatus)
	inv.Summary = money.Summary()
	inv.Status = shared.InvoiceStatus(status)
	return inv, nil
}

// Get loads an invoice without its ledger.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

// GetForUpdate loads an invoice and locks its row until the transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
}

// List returns a filtered page of invoices and the total match count.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var customer pgtype.Int8
	var status pgtype.Text
	if filter.CustomerID != nil {
		customer = pgtype.Int8{Int64: *filter.CustomerID, Valid: true}
	}
	if filter.Status != nil {
		status = pgtype.Text{String: string(*filter.Status), Valid: true}
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices
WHERE ($1::bigint IS NULL OR customer_id = $1) AND ($2::text IS NULL OR status = $2)`, customer, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE ($1::bigint IS NULL OR customer_id = $1) AND ($2::text IS NULL OR status = $2)
	AND ($5::bigint = 0 OR id < $5)
ORDER BY id DESC LIMIT $3 OFFSET $4`, customer, status, filter.Limit, filter.Offset, filter.BeforeID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// Insert stores a new invoice.
func (r *PostgresRepository) Insert(ctx context.Context, inv Invoice) (int64, error) {
	items, err := shared.MarshalItems(inv.Items)
	if err != nil {
		return 0, err
	}
	current, err := shared.MarshalItems(inv.CurrentItems)
	if err != nil {
		return 0, err
	}
	var salesRep pgtype.Int8
	if inv.SalesRepID > 0 {
		salesRep = pgtype.Int8{Int64: inv.SalesRepID, Valid: true}
	}

	args := []any{inv.Reference, inv.CustomerID, salesRep, inv.PaymentTerms, inv.Message, inv.Signature,
		items, shared.DecimalToNumeric(inv.InitialDeposit), string(inv.InitialStatus), current}
	args = append(args, shared.SummaryArgs(inv.Summary)...)
	args = append(args, string(inv.Status), inv.LastSeq, inv.CreatedAt, inv.UpdatedAt)

	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO invoices (
	reference, customer_id, sales_rep_id, payment_terms, message, signature,
	items, initial_deposit, initial_status, current_items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, last_seq, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING id`, args...).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "invoices_reference_key") {
			return 0, fmt.Errorf("invoice %s: %w", inv.Reference, numbering.ErrDuplicateReference)
		}
		return 0, err
	}
	return id, nil
}

// InsertEdit appends a ledger entry. The (invoice_id, seq) unique key rejects
// a concurrent append that slipped past the row lock.
func (r *PostgresRepository) InsertEdit(ctx context.Context, edit InvoiceEdit) error {
	items, err := shared.MarshalItems(edit.Items)
	if err != nil {
		return err
	}
	args := []any{edit.ID, edit.InvoiceID, edit.Seq, edit.CreatedAt, items,
		shared.DecimalToNumeric(edit.DepositAdded), string(edit.PaymentMethod)}
	args = append(args, shared.SummaryArgs(edit.Summary)...)
	args = append(args, string(edit.Status), edit.Note)

	_, err = r.db.Exec(ctx, `INSERT INTO invoice_edits (
	id, invoice_id, seq, created_at, items, deposit_added, payment_method,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, note
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, args...)
	if err != nil {
		if db.IsUniqueViolation(err, "invoice_edits_invoice_id_seq_key") {
			return fmt.Errorf("%w: seq %d already recorded", ErrConcurrentEdit, edit.Seq)
		}
		return err
	}
	return nil
}

// UpdateCurrent rewrites the invoice's current snapshot after an append.
func (r *PostgresRepository) UpdateCurrent(ctx context.Context, inv Invoice) error {
	current, err := shared.MarshalItems(inv.CurrentItems)
	if err != nil {
		return err
	}
	args := []any{inv.ID, current}
	args = append(args, shared.SummaryArgs(inv.Summary)...)
	args = append(args, string(inv.Status), inv.LastSeq, inv.UpdatedAt)

	tag, err := r.db.Exec(ctx, `UPDATE invoices SET current_items = $2,
	subtotal = $3, discount_total = $4, tax = $5, total = $6, deposit_received = $7, balance_due = $8,
	status = $9, last_seq = $10, updated_at = $11
WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const editColumns = `id, invoice_id, seq, created_at, items, deposit_added, payment_method,
	subtotal, discount_total, tax, total, deposit_received, balance_due, status, note`

func scanEdit(row pgx.Row) (InvoiceEdit, error) {
	var (
		edit    InvoiceEdit
		items   []byte
		added   pgtype.Numeric
		money   shared.NumericSummary
		method  string
		status  string
		created time.Time
	)
	targets := []any{&edit.ID, &edit.InvoiceID, &edit.Seq, &created, &items, &added, &method}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &edit.Note)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceEdit{}, shared.ErrNotFound
		}
		return InvoiceEdit{}, err
	}
	var err error
	if edit.Items, err = shared.UnmarshalItems(items); err != nil {
		return InvoiceEdit{}, err
	}
	edit.CreatedAt = created
	edit.DepositAdded = shared.NumericToDecimal(added)
	edit.PaymentMethod = shared.PaymentMethod(method)
	edit.Summary = money.Summary()
	edit.DepositReceived = edit.Summary.DepositReceived
	edit.Status = shared.InvoiceStatus(status)
	return edit, nil
}

// ListEdits returns the ledger ordered by sequence.
func (r *PostgresRepository) ListEdits(ctx context.Context, invoiceID int64) ([]InvoiceEdit, error) {
	rows, err := r.db.Query(ctx, `SELECT `+editColumns+` FROM invoice_edits WHERE invoice_id = $1 ORDER BY seq`, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanEdits(rows)
}

// ListEditsThrough returns the ledger up to and including lastSeq.
func (r *PostgresRepository) ListEditsThrough(ctx context.Context, invoiceID int64, lastSeq int) ([]InvoiceEdit, error) {
	rows, err := r.db.Query(ctx, `SELECT `+editColumns+` FROM invoice_edits
WHERE invoice_id = $1 AND seq <= $2 ORDER BY seq`, invoiceID, lastSeq)
	if err != nil {
		return nil, err
	}
	return scanEdits(rows)
}

func scanEdits(rows pgx.Rows) ([]InvoiceEdit, error) {
	defer rows.Close()

	var out []InvoiceEdit
	for rows.Next() {
		edit, err := scanEdit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, edit)
	}
	return out, rows.Err()
}

// GetEdit loads one ledger entry scoped to its invoice.
func (r *PostgresRepository) GetEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (InvoiceEdit, error) {
	return scanEdit(r.db.QueryRow(ctx, `SELECT `+editColumns+` FROM invoice_edits WHERE invoice_id = $1 AND id = $2`, invoiceID, editID))
}
