package estimates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type memoryRepository struct {
	mu        sync.Mutex
	estimates map[int64]Estimate
	refs      map[string]bool
	nextID    int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{estimates: make(map[int64]Estimate), refs: make(map[string]bool), nextID: 1}
}

func (m *memoryRepository) Get(_ context.Context, id int64) (Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	est, ok := m.estimates[id]
	if !ok {
		return Estimate{}, shared.ErrNotFound
	}
	return est, nil
}

func (m *memoryRepository) List(_ context.Context, filter ListFilter) ([]Estimate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Estimate
	for _, est := range m.estimates {
		if filter.CustomerID != nil && est.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && est.Status != *filter.Status {
			continue
		}
		out = append(out, est)
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

func (m *memoryRepository) Insert(_ context.Context, est Estimate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[est.Reference] {
		return 0, numbering.ErrDuplicateReference
	}
	est.ID = m.nextID
	m.nextID++
	m.estimates[est.ID] = est
	m.refs[est.Reference] = true
	return est.ID, nil
}

func (m *memoryRepository) Update(_ context.Context, est Estimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.estimates[est.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Status != shared.EstimateStatusDraft {
		return shared.ErrImmutable
	}
	m.estimates[est.ID] = est
	return nil
}

func (m *memoryRepository) UpdateStatus(_ context.Context, id int64, from, to shared.EstimateStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	est, ok := m.estimates[id]
	if !ok {
		return shared.ErrNotFound
	}
	if est.Status != from {
		return shared.ErrInvalidStatus
	}
	est.Status = to
	est.UpdatedAt = at
	m.estimates[id] = est
	return nil
}

func (m *memoryRepository) LinkInvoice(_ context.Context, id, invoiceID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	est, ok := m.estimates[id]
	if !ok {
		return shared.ErrNotFound
	}
	if est.Status != shared.EstimateStatusConverted || est.InvoiceID != nil {
		return shared.ErrInvalidStatus
	}
	est.InvoiceID = &invoiceID
	est.UpdatedAt = at
	m.estimates[id] = est
	return nil
}

func (m *memoryRepository) ExpirePending(_ context.Context, asOf time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, est := range m.estimates {
		if est.Status == shared.EstimateStatusPending && est.ValidUntil.Before(asOf) {
			est.Status = shared.EstimateStatusExpired
			m.estimates[id] = est
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type stubInvoices struct {
	mu      sync.Mutex
	created []invoices.NewInvoice
	err     error
}

func (s *stubInvoices) CreateInvoice(_ context.Context, in invoices.NewInvoice) (invoices.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return invoices.Invoice{}, s.err
	}
	s.created = append(s.created, in)
	id := int64(len(s.created))
	return invoices.Invoice{
		ID:         id,
		Reference:  numbering.Format("INV", 2025, id),
		CustomerID: in.CustomerID,
		Items:      in.Items,
		Status:     shared.InvoiceStatusPending,
	}, nil
}

var errInvoiceStore = errors.New("invoice store unavailable")
