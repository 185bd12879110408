package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type PostgresRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{pool: r.pool, db: tx})
	})
}

const creditNoteColumns = `id, reference, customer_id, sales_rep_id, source, invoice_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, signature, reason, created_at, updated_at, approved_at`

func scanCreditNote(row pgx.Row) (CreditNote, error) {
	var (
		note      CreditNote
		salesRep  pgtype.Int8
		source    string
		invoiceID pgtype.Int8
		items     []byte
		money     shared.NumericSummary
		status    string
		approved  pgtype.Timestamptz
	)
	targets := []any{&note.ID, &note.Reference, &note.CustomerID, &salesRep, &source, &invoiceID, &items}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &note.Signature, &note.Reason, &note.CreatedAt, &note.UpdatedAt, &approved)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditNote{}, shared.ErrNotFound
		}
		return CreditNote{}, err
	}
	var err error
	if note.Items, err = shared.UnmarshalItems(items); err != nil {
		return CreditNote{}, err
	}
	note.SalesRepID = salesRep.Int64
	note.Source = CreditNoteSource(source)
	note.InvoiceID = optionalInt(invoiceID)
	note.Summary = money.Summary()
	note.Status = shared.CreditNoteStatus(status)
	if approved.Valid {
		at := approved.Time
		note.ApprovedAt = &at
	}
	return note, nil
}

func (r *PostgresRepository) GetCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	return scanCreditNote(r.db.QueryRow(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE id = $1`, id))
}

func (r *PostgresRepository) LockCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	return scanCreditNote(r.db.QueryRow(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresRepository) ListCreditNotes(ctx context.Context, filter ListFilter) ([]CreditNote, int, error) {
	where, args := listWhere(filter)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM credit_notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes `+where+`
ORDER BY id DESC LIMIT $3 OFFSET $4`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []CreditNote
	for rows.Next() {
		note, err := scanCreditNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, note)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) InsertCreditNote(ctx context.Context, note CreditNote) (int64, error) {
	items, err := shared.MarshalItems(note.Items)
	if err != nil {
		return 0, err
	}
	args := []any{note.Reference, note.CustomerID, nullInt(note.SalesRepID), string(note.Source), ptrInt(note.InvoiceID), items}
	args = append(args, shared.SummaryArgs(note.Summary)...)
	args = append(args, string(note.Status), note.Signature, note.Reason, note.CreatedAt)

	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO credit_notes (
	reference, customer_id, sales_rep_id, source, invoice_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, signature, reason, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
RETURNING id`, args...).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "credit_notes_reference_key") {
			return 0, fmt.Errorf("credit note %s: %w", note.Reference, numbering.ErrDuplicateReference)
		}
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepository) UpdateCreditNote(ctx context.Context, note CreditNote) error {
	items, err := shared.MarshalItems(note.Items)
	if err != nil {
		return err
	}
	args := []any{note.ID, items}
	args = append(args, shared.SummaryArgs(note.Summary)...)
	args = append(args, note.Signature, note.Reason, note.UpdatedAt)
	return expectDraft(r.db.Exec(ctx, `UPDATE credit_notes SET
	items = $2, subtotal = $3, discount_total = $4, tax = $5, total = $6, deposit_received = $7, balance_due = $8,
	signature = $9, reason = $10, updated_at = $11
WHERE id = $1 AND status = 'DRAFT'`, args...))
}

func (r *PostgresRepository) ApproveCreditNote(ctx context.Context, note CreditNote) error {
	return expectDraft(r.db.Exec(ctx, `UPDATE credit_notes SET
	status = 'APPROVED', signature = $2, approved_at = $3, updated_at = $3
WHERE id = $1 AND status = 'DRAFT'`, note.ID, note.Signature, note.ApprovedAt))
}

const refundColumns = `id, reference, customer_id, sales_rep_id, source, credit_note_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, payment_method, signature, reason, created_at, updated_at, refunded_at`

func scanRefund(row pgx.Row) (Refund, error) {
	var (
		refund     Refund
		salesRep   pgtype.Int8
		source     string
		noteID     pgtype.Int8
		items      []byte
		money      shared.NumericSummary
		status     string
		method     string
		refundedAt pgtype.Timestamptz
	)
	targets := []any{&refund.ID, &refund.Reference, &refund.CustomerID, &salesRep, &source, &noteID, &items}
	targets = append(targets, money.Targets()...)
	targets = append(targets, &status, &method, &refund.Signature, &refund.Reason, &refund.CreatedAt, &refund.UpdatedAt, &refundedAt)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Refund{}, shared.ErrNotFound
		}
		return Refund{}, err
	}
	var err error
	if refund.Items, err = shared.UnmarshalItems(items); err != nil {
		return Refund{}, err
	}
	refund.SalesRepID = salesRep.Int64
	refund.Source = RefundSource(source)
	refund.CreditNoteID = optionalInt(noteID)
	refund.Summary = money.Summary()
	refund.Status = shared.RefundStatus(status)
	refund.PaymentMethod = shared.PaymentMethod(method)
	if refundedAt.Valid {
		at := refundedAt.Time
		refund.RefundedAt = &at
	}
	return refund, nil
}

func (r *PostgresRepository) GetRefund(ctx context.Context, id int64) (Refund, error) {
	return scanRefund(r.db.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
}

func (r *PostgresRepository) ListRefunds(ctx context.Context, filter ListFilter) ([]Refund, int, error) {
	where, args := listWhere(filter)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM refunds `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+refundColumns+` FROM refunds `+where+`
ORDER BY id DESC LIMIT $3 OFFSET $4`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, refund)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) InsertRefund(ctx context.Context, refund Refund) (int64, error) {
	items, err := shared.MarshalItems(refund.Items)
	if err != nil {
		return 0, err
	}
	args := []any{refund.Reference, refund.CustomerID, nullInt(refund.SalesRepID), string(refund.Source), ptrInt(refund.CreditNoteID), items}
	args = append(args, shared.SummaryArgs(refund.Summary)...)
	args = append(args, string(refund.Status), string(refund.PaymentMethod), refund.Signature, refund.Reason, refund.CreatedAt)

	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO refunds (
	reference, customer_id, sales_rep_id, source, credit_note_id, items,
	subtotal, discount_total, tax, total, deposit_received, balance_due,
	status, payment_method, signature, reason, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
RETURNING id`, args...).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "refunds_reference_key") {
			return 0, fmt.Errorf("refund %s: %w", refund.Reference, numbering.ErrDuplicateReference)
		}
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepository) UpdateRefund(ctx context.Context, refund Refund) error {
	items, err := shared.MarshalItems(refund.Items)
	if err != nil {
		return err
	}
	args := []any{refund.ID, items}
	args = append(args, shared.SummaryArgs(refund.Summary)...)
	args = append(args, refund.Signature, refund.Reason, refund.UpdatedAt)
	return expectDraft(r.db.Exec(ctx, `UPDATE refunds SET
	items = $2, subtotal = $3, discount_total = $4, tax = $5, total = $6, deposit_received = $7, balance_due = $8,
	signature = $9, reason = $10, updated_at = $11
WHERE id = $1 AND status = 'DRAFT'`, args...))
}

func (r *PostgresRepository) MarkRefunded(ctx context.Context, refund Refund) error {
	return expectDraft(r.db.Exec(ctx, `UPDATE refunds SET
	status = 'REFUNDED', signature = $2, refunded_at = $3, updated_at = $3
WHERE id = $1 AND status = 'DRAFT'`, refund.ID, refund.Signature, refund.RefundedAt))
}

func (r *PostgresRepository) RefundedTotal(ctx context.Context, creditNoteID, excludeID int64) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM refunds
WHERE credit_note_id = $1 AND id <> $2`, creditNoteID, excludeID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return shared.NumericToDecimal(total), nil
}

func listWhere(filter ListFilter) (string, []any) {
	var customerID pgtype.Int8
	var status pgtype.Text
	if filter.CustomerID != nil {
		customerID = pgtype.Int8{Int64: *filter.CustomerID, Valid: true}
	}
	if filter.Status != "" {
		status = pgtype.Text{String: filter.Status, Valid: true}
	}
	return `WHERE ($1::bigint IS NULL OR customer_id = $1) AND ($2::text IS NULL OR status = $2)`, []any{customerID, status}
}

func expectDraft(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrImmutable
	}
	return nil
}

func nullInt(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: v > 0}
}

func ptrInt(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func optionalInt(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
