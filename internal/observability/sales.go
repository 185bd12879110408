package observability

import "github.com/prometheus/client_golang/prometheus"

// SalesMetrics counts ledger activity. A nil *SalesMetrics is a no-op so
// services can run without a registry in tests.
type SalesMetrics struct {
	documents         *prometheus.CounterVec
	edits             *prometheus.CounterVec
	depositRejections prometheus.Counter
	referenceRetries  *prometheus.CounterVec
	receipts          *prometheus.CounterVec
	ledgerViolations  *prometheus.CounterVec
}

// NewSalesMetrics registers the sales collectors against registerer.
func NewSalesMetrics(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &SalesMetrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_documents_created_total",
			Help: "Sales documents created, by document type and initial status.",
		}, []string{"doc_type", "status"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_invoice_edits_total",
			Help: "Invoice ledger entries appended, by resulting status.",
		}, []string{"status"}),
		depositRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_sales_deposit_rejections_total",
			Help: "Deposits refused by the acceptance guard.",
		}),
		referenceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_reference_retries_total",
			Help: "Reference numbers reallocated after a uniqueness conflict.",
		}, []string{"doc_type"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_receipts_from_edit_total",
			Help: "Receipt-from-edit requests by outcome (created or existing).",
		}, []string{"outcome"}),
		ledgerViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_ledger_violations_total",
			Help: "Invoice ledger invariant violations found by the integrity scan.",
		}, []string{"law"}),
	}
	registerer.MustRegister(m.documents, m.edits, m.depositRejections, m.referenceRetries, m.receipts, m.ledgerViolations)
	return m
}

func (m *SalesMetrics) ObserveDocumentCreated(docType, status string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(docType, status).Inc()
}

func (m *SalesMetrics) ObserveEditAppended(status string) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(status).Inc()
}

func (m *SalesMetrics) ObserveDepositRejected() {
	if m == nil {
		return
	}
	m.depositRejections.Inc()
}

func (m *SalesMetrics) ObserveReferenceRetry(docType string) {
	if m == nil {
		return
	}
	m.referenceRetries.WithLabelValues(docType).Inc()
}

func (m *SalesMetrics) ObserveReceiptFromEdit(created bool) {
	if m == nil {
		return
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	m.receipts.WithLabelValues(outcome).Inc()
}

func (m *SalesMetrics) AddLedgerViolations(law string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ledgerViolations.WithLabelValues(law).Add(float64(count))
}
