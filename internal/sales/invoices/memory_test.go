package invoices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// memoryRepository keeps invoices in maps. WithTx holds a lock for the whole
// callback and restores the previous state when the callback fails.
type memoryRepository struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	invoices  map[int64]Invoice
	edits     map[int64][]InvoiceEdit
	refs      map[string]int64
	nextID    int64
	failEdit  error
	failWrite error
	// afterTxGet runs once, right after a transaction reads an invoice.
	afterTxGet func()
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		invoices: make(map[int64]Invoice),
		edits:    make(map[int64][]InvoiceEdit),
		refs:     make(map[string]int64),
		nextID:   1,
	}
}

type memoryTx struct {
	repo *memoryRepository
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.cloneState()
	m.mu.Unlock()

	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memoryState struct {
	invoices map[int64]Invoice
	edits    map[int64][]InvoiceEdit
	refs     map[string]int64
	nextID   int64
}

func (m *memoryRepository) cloneState() memoryState {
	s := memoryState{
		invoices: make(map[int64]Invoice, len(m.invoices)),
		edits:    make(map[int64][]InvoiceEdit, len(m.edits)),
		refs:     make(map[string]int64, len(m.refs)),
		nextID:   m.nextID,
	}
	for k, v := range m.invoices {
		s.invoices[k] = v
	}
	for k, v := range m.edits {
		s.edits[k] = append([]InvoiceEdit(nil), v...)
	}
	for k, v := range m.refs {
		s.refs[k] = v
	}
	return s
}

func (m *memoryRepository) restore(s memoryState) {
	m.invoices = s.invoices
	m.edits = s.edits
	m.refs = s.refs
	m.nextID = s.nextID
}

func (m *memoryRepository) Get(_ context.Context, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepository) List(_ context.Context, filter ListFilter) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Invoice
	for _, inv := range m.invoices {
		if filter.CustomerID != nil && inv.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.BeforeID > 0 && inv.ID >= filter.BeforeID {
			continue
		}
		matched = append(matched, inv)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memoryRepository) ListEdits(_ context.Context, invoiceID int64) ([]InvoiceEdit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InvoiceEdit(nil), m.edits[invoiceID]...), nil
}

func (m *memoryRepository) GetEdit(_ context.Context, invoiceID int64, editID uuid.UUID) (InvoiceEdit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, edit := range m.edits[invoiceID] {
		if edit.ID == editID {
			return edit, nil
		}
	}
	return InvoiceEdit{}, shared.ErrNotFound
}

func (t *memoryTx) Insert(_ context.Context, inv Invoice) (int64, error) {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.refs[inv.Reference]; taken {
		return 0, fmt.Errorf("invoice %s: %w", inv.Reference, numbering.ErrDuplicateReference)
	}
	inv.ID = m.nextID
	m.nextID++
	m.invoices[inv.ID] = inv
	m.refs[inv.Reference] = inv.ID
	return inv.ID, nil
}

func (t *memoryTx) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := t.repo.Get(ctx, id)
	if hook := t.repo.afterTxGet; hook != nil {
		t.repo.afterTxGet = nil
		hook()
	}
	return inv, err
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) ListEditsThrough(_ context.Context, invoiceID int64, lastSeq int) ([]InvoiceEdit, error) {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InvoiceEdit
	for _, edit := range m.edits[invoiceID] {
		if edit.Seq <= lastSeq {
			out = append(out, edit)
		}
	}
	return out, nil
}

// commitEdit stores an edit and its snapshot as another writer would,
// without taking the transaction lock.
func (m *memoryRepository) commitEdit(inv Invoice, edit InvoiceEdit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[edit.InvoiceID] = append(m.edits[edit.InvoiceID], edit)
	m.invoices[inv.ID] = inv
}

func (t *memoryTx) InsertEdit(_ context.Context, edit InvoiceEdit) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEdit != nil {
		return m.failEdit
	}
	for _, existing := range m.edits[edit.InvoiceID] {
		if existing.Seq == edit.Seq {
			return ErrConcurrentEdit
		}
	}
	m.edits[edit.InvoiceID] = append(m.edits[edit.InvoiceID], edit)
	return nil
}

func (t *memoryTx) UpdateCurrent(_ context.Context, inv Invoice) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	if _, ok := m.invoices[inv.ID]; !ok {
		return errors.New("missing invoice")
	}
	m.invoices[inv.ID] = inv
	return nil
}
