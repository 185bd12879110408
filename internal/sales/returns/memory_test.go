package returns

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// memoryRepository serializes WithTx callbacks; LockCreditNote relies on it.
type memoryRepository struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	notes   map[int64]CreditNote
	refunds map[int64]Refund
	refs    map[string]bool
	nextID  int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		notes:   make(map[int64]CreditNote),
		refunds: make(map[int64]Refund),
		refs:    make(map[string]bool),
		nextID:  1,
	}
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepository) GetCreditNote(_ context.Context, id int64) (CreditNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	if !ok {
		return CreditNote{}, shared.ErrNotFound
	}
	return note, nil
}

func (m *memoryRepository) LockCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	return m.GetCreditNote(ctx, id)
}

func (m *memoryRepository) ListCreditNotes(_ context.Context, filter ListFilter) ([]CreditNote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CreditNote
	for _, note := range m.notes {
		if matches(filter, note.CustomerID, string(note.Status)) {
			out = append(out, note)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter), len(out), nil
}

func (m *memoryRepository) InsertCreditNote(_ context.Context, note CreditNote) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[note.Reference] {
		return 0, numbering.ErrDuplicateReference
	}
	note.ID = m.nextID
	m.nextID++
	m.notes[note.ID] = note
	m.refs[note.Reference] = true
	return note.ID, nil
}

func (m *memoryRepository) UpdateCreditNote(_ context.Context, note CreditNote) error {
	return m.replaceNote(note)
}

func (m *memoryRepository) ApproveCreditNote(_ context.Context, note CreditNote) error {
	return m.replaceNote(note)
}

func (m *memoryRepository) replaceNote(note CreditNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.notes[note.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Status != shared.CreditNoteStatusDraft {
		return shared.ErrImmutable
	}
	m.notes[note.ID] = note
	return nil
}

func (m *memoryRepository) GetRefund(_ context.Context, id int64) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refund, ok := m.refunds[id]
	if !ok {
		return Refund{}, shared.ErrNotFound
	}
	return refund, nil
}

func (m *memoryRepository) ListRefunds(_ context.Context, filter ListFilter) ([]Refund, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Refund
	for _, refund := range m.refunds {
		if matches(filter, refund.CustomerID, string(refund.Status)) {
			out = append(out, refund)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter), len(out), nil
}

func (m *memoryRepository) InsertRefund(_ context.Context, refund Refund) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[refund.Reference] {
		return 0, numbering.ErrDuplicateReference
	}
	refund.ID = m.nextID
	m.nextID++
	m.refunds[refund.ID] = refund
	m.refs[refund.Reference] = true
	return refund.ID, nil
}

func (m *memoryRepository) UpdateRefund(_ context.Context, refund Refund) error {
	return m.replaceRefund(refund)
}

func (m *memoryRepository) MarkRefunded(_ context.Context, refund Refund) error {
	return m.replaceRefund(refund)
}

func (m *memoryRepository) replaceRefund(refund Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[refund.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Status != shared.RefundStatusDraft {
		return shared.ErrImmutable
	}
	m.refunds[refund.ID] = refund
	return nil
}

func (m *memoryRepository) RefundedTotal(_ context.Context, creditNoteID, excludeID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for id, refund := range m.refunds {
		if id == excludeID || refund.CreditNoteID == nil || *refund.CreditNoteID != creditNoteID {
			continue
		}
		total = total.Add(refund.Summary.Total)
	}
	return total, nil
}

func matches(filter ListFilter, customerID int64, status string) bool {
	if filter.CustomerID != nil && customerID != *filter.CustomerID {
		return false
	}
	return filter.Status == "" || filter.Status == status
}

func page[T any](items []T, filter ListFilter) []T {
	if filter.Offset >= len(items) {
		return nil
	}
	items = items[filter.Offset:]
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items
}

type stubInvoices map[int64]invoices.Invoice

func (s stubInvoices) GetInvoice(_ context.Context, id int64) (invoices.Invoice, error) {
	inv, ok := s[id]
	if !ok {
		return invoices.Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}
