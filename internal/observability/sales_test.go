package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSalesMetricsExposedOnRegistry(t *testing.T) {
	metrics := NewMetrics()
	sales := metrics.Sales()

	sales.ObserveDocumentCreated("invoice", "pending")
	sales.ObserveEditAppended("paid")
	sales.ObserveDepositRejected()
	sales.ObserveReferenceRetry("receipt")
	sales.ObserveReceiptFromEdit(true)
	sales.ObserveReceiptFromEdit(false)
	sales.AddLedgerViolations("round_trip", 2)
	metrics.Jobs().AddProcessed("estimates:expire", 3)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`odyssey_sales_documents_created_total{doc_type="invoice",status="pending"} 1`,
		`odyssey_sales_invoice_edits_total{status="paid"} 1`,
		`odyssey_sales_deposit_rejections_total 1`,
		`odyssey_sales_reference_retries_total{doc_type="receipt"} 1`,
		`odyssey_sales_receipts_from_edit_total{outcome="created"} 1`,
		`odyssey_sales_receipts_from_edit_total{outcome="existing"} 1`,
		`odyssey_sales_ledger_violations_total{law="round_trip"} 2`,
		`odyssey_job_items_processed_total{job="estimates:expire"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got: %s", want, body)
		}
	}
}

func TestNilSalesMetricsAreNoop(t *testing.T) {
	var sales *SalesMetrics
	sales.ObserveDocumentCreated("invoice", "draft")
	sales.ObserveEditAppended("paid")
	sales.ObserveDepositRejected()
	sales.ObserveReferenceRetry("invoice")
	sales.ObserveReceiptFromEdit(true)
	sales.AddLedgerViolations("sequence", 1)

	var metrics *Metrics
	if metrics.Sales() != nil {
		t.Fatal("expected nil sales metrics from nil registry")
	}
}
