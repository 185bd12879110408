package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/estimates"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/receipts"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/returns"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-pos/migrations"
)

// Seeds a demo ledger through the services so every document carries a real
// reference number and passes the same validation as API traffic.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying migrations...")
	if _, err := migrations.Apply(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	services, err := app.NewSalesServices(cfg, pool, nil, observability.NewMetrics(), quiet)
	if err != nil {
		log.Fatalf("init services: %v", err)
	}

	fmt.Println("→ Seeding invoices and deposits...")
	inv, err := seedInvoice(ctx, services)
	if err != nil {
		log.Fatalf("seed invoices: %v", err)
	}

	fmt.Println("→ Seeding estimates...")
	if err := seedEstimates(ctx, services); err != nil {
		log.Fatalf("seed estimates: %v", err)
	}

	fmt.Println("→ Seeding credit notes and refunds...")
	if err := seedReturns(ctx, services, inv); err != nil {
		log.Fatalf("seed returns: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func demoItems() []shared.LineItem {
	return []shared.LineItem{
		{ProductCode: "ESP-250", Description: "Espresso beans 250g", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("12.50")},
		{ProductCode: "MUG-01", Description: "Ceramic mug", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("8.00"), DiscountPercent: decimal.NewFromInt(10)},
	}
}

func seedInvoice(ctx context.Context, services *app.SalesServices) (invoices.Invoice, error) {
	inv, err := services.Invoices.CreateInvoice(ctx, invoices.NewInvoice{
		CustomerID:   1001,
		SalesRepID:   11,
		PaymentTerms: "Net 14",
		Items:        demoItems(),
		Deposit:      decimal.NewFromInt(20),
	})
	if err != nil {
		return invoices.Invoice{}, err
	}
	fmt.Printf("  %s total=%s status=%s\n", inv.Reference, shared.FormatAmount(inv.Summary.Total), inv.Status)

	for _, deposit := range []string{"25.00", "10.00"} {
		edit, err := services.Invoices.AppendEdit(ctx, inv.ID, invoices.EditRequest{
			DepositAdded:  decimal.RequireFromString(deposit),
			PaymentMethod: string(shared.PaymentCard),
			Note:          "counter payment",
		})
		if err != nil {
			return invoices.Invoice{}, err
		}
		rec, _, err := services.Receipts.GenerateFromEdit(ctx, inv.ID, edit.ID)
		if err != nil {
			return invoices.Invoice{}, err
		}
		fmt.Printf("  edit #%d deposit=%s balance=%s → %s\n", edit.Seq, deposit, shared.FormatAmount(edit.Summary.BalanceDue), rec.ReceiptNumber)
	}

	walkIn, err := services.Receipts.CreateReceipt(ctx, receipts.NewReceipt{
		CustomerID: 1002,
		Items:      demoItems()[:1],
	})
	if err != nil {
		return invoices.Invoice{}, err
	}
	if _, err := services.Receipts.CompleteReceipt(ctx, walkIn.ID, "walk-in"); err != nil {
		return invoices.Invoice{}, err
	}
	return services.Invoices.GetInvoice(ctx, inv.ID)
}

func seedEstimates(ctx context.Context, services *app.SalesServices) error {
	est, err := services.Estimates.CreateEstimate(ctx, estimates.NewEstimate{
		CustomerID: 1003,
		Items:      demoItems(),
		ValidUntil: time.Now().UTC().AddDate(0, 0, 14),
		Message:    "Quote for office pantry",
	})
	if err != nil {
		return err
	}
	if _, err := services.Estimates.AcceptEstimate(ctx, est.ID); err != nil {
		return err
	}
	est, inv, err := services.Estimates.ConvertEstimate(ctx, est.ID, estimates.ConvertOptions{
		PaymentTerms:  "Due on receipt",
		Deposit:       decimal.NewFromInt(30),
		PaymentMethod: string(shared.PaymentBankTransfer),
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s converted to %s\n", est.Reference, inv.Reference)

	draft, err := services.Estimates.CreateEstimate(ctx, estimates.NewEstimate{
		CustomerID:  1004,
		Items:       demoItems()[1:],
		SaveAsDraft: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s left as %s\n", draft.Reference, draft.Status)
	return nil
}

func seedReturns(ctx context.Context, services *app.SalesServices, inv invoices.Invoice) error {
	note, err := services.Returns.CreateCreditNote(ctx, returns.NewCreditNote{
		CustomerID: inv.CustomerID,
		Source:     returns.CreditNoteFromInvoice,
		InvoiceID:  &inv.ID,
		Items:      inv.Items[1:],
		Reason:     "chipped mug",
	})
	if err != nil {
		return err
	}
	if note, err = services.Returns.ApproveCreditNote(ctx, note.ID, "store manager"); err != nil {
		return err
	}
	refund, err := services.Returns.CreateRefund(ctx, returns.NewRefund{
		Source:        returns.RefundFromCreditNote,
		CreditNoteID:  &note.ID,
		PaymentMethod: string(shared.PaymentCash),
	})
	if err != nil {
		return err
	}
	if refund, err = services.Returns.MarkRefunded(ctx, refund.ID, "store manager"); err != nil {
		return err
	}
	fmt.Printf("  %s → %s %s\n", note.Reference, refund.Reference, shared.FormatAmount(refund.Summary.Total))
	return nil
}
