package receipts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type memoryRepository struct {
	mu       sync.Mutex
	receipts map[int64]Receipt
	numbers  map[string]int64
	byEdit   map[string]int64
	nextID   int64
	inserts  int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		receipts: make(map[int64]Receipt),
		numbers:  make(map[string]int64),
		byEdit:   make(map[string]int64),
		nextID:   1,
	}
}

func editKey(invoiceID int64, editID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", invoiceID, editID)
}

func (m *memoryRepository) Get(_ context.Context, id int64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.receipts[id]
	if !ok {
		return Receipt{}, shared.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepository) List(_ context.Context, filter ListFilter) ([]Receipt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receipt
	for _, rec := range m.receipts {
		if filter.InvoiceID != nil && (rec.InvoiceID == nil || *rec.InvoiceID != *filter.InvoiceID) {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memoryRepository) FindByEdit(_ context.Context, invoiceID int64, editID uuid.UUID) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEdit[editKey(invoiceID, editID)]
	if !ok {
		return Receipt{}, shared.ErrNotFound
	}
	return m.receipts[id], nil
}

func (m *memoryRepository) InsertFromEdit(_ context.Context, rec Receipt) (Receipt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEdit[editKey(*rec.InvoiceID, *rec.EditID)]; ok {
		return m.receipts[id], false, nil
	}
	id, err := m.insertLocked(rec)
	if err != nil {
		return Receipt{}, false, err
	}
	m.byEdit[editKey(*rec.InvoiceID, *rec.EditID)] = id
	return m.receipts[id], true, nil
}

func (m *memoryRepository) Insert(_ context.Context, rec Receipt) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec)
}

func (m *memoryRepository) insertLocked(rec Receipt) (int64, error) {
	if _, taken := m.numbers[rec.ReceiptNumber]; taken {
		return 0, numbering.ErrDuplicateReference
	}
	rec.ID = m.nextID
	m.nextID++
	m.receipts[rec.ID] = rec
	m.numbers[rec.ReceiptNumber] = rec.ID
	m.inserts++
	return rec.ID, nil
}

func (m *memoryRepository) Complete(_ context.Context, rec Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.receipts[rec.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Status != shared.ReceiptStatusDraft {
		return shared.ErrInvalidStatus
	}
	m.receipts[rec.ID] = rec
	return nil
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

// stubLedger serves fixed invoices and edits.
type stubLedger struct {
	mu       sync.Mutex
	invoices map[int64]invoices.Invoice
	edits    map[uuid.UUID]invoices.InvoiceEdit
	reads    int
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		invoices: make(map[int64]invoices.Invoice),
		edits:    make(map[uuid.UUID]invoices.InvoiceEdit),
	}
}

func (l *stubLedger) add(inv invoices.Invoice, edits ...invoices.InvoiceEdit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invoices[inv.ID] = inv
	for _, edit := range edits {
		l.edits[edit.ID] = edit
	}
}

func (l *stubLedger) GetInvoice(_ context.Context, id int64) (invoices.Invoice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invoices[id]
	if !ok {
		return invoices.Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (l *stubLedger) GetEdit(_ context.Context, invoiceID int64, editID uuid.UUID) (invoices.InvoiceEdit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	edit, ok := l.edits[editID]
	if !ok || edit.InvoiceID != invoiceID {
		return invoices.InvoiceEdit{}, shared.ErrNotFound
	}
	return edit, nil
}
