package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/estimates"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/receipts"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/returns"
	salesshared "github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// SalesServices bundles the sales document services shared by the API and worker.
type SalesServices struct {
	Numbers   *numbering.Generator
	Invoices  *invoices.Service
	Receipts  *receipts.Service
	Estimates *estimates.Service
	Returns   *returns.Service
}

// NewAllocator selects the reference sequence backend.
func NewAllocator(cfg *Config, pool *pgxpool.Pool, redisClient redis.UniversalClient) (numbering.Allocator, error) {
	switch cfg.ReferenceBackend {
	case ReferenceBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("reference backend %q requires redis", cfg.ReferenceBackend)
		}
		return numbering.NewRedisAllocator(redisClient, numbering.NewPostgresSeeder(pool)), nil
	case ReferenceBackendPostgres, "":
		return numbering.NewPostgresAllocator(pool), nil
	default:
		return nil, fmt.Errorf("unknown reference backend %q", cfg.ReferenceBackend)
	}
}

// NewSalesServices wires repositories, numbering, audit and metrics.
func NewSalesServices(cfg *Config, pool *pgxpool.Pool, redisClient redis.UniversalClient, metrics *observability.Metrics, logger *slog.Logger) (*SalesServices, error) {
	alloc, err := NewAllocator(cfg, pool, redisClient)
	if err != nil {
		return nil, err
	}
	salesMetrics := metrics.Sales()
	numbers := numbering.NewGenerator(alloc, cfg.ReferenceMaxRetries, logger)
	if salesMetrics != nil {
		numbers.WithMetrics(salesMetrics)
	}
	audit := shared.NewAuditLogger(pool)
	policy := salesshared.DepositPolicy{OverpaymentTolerance: cfg.DepositOverpayTolerance}

	invoiceService := invoices.NewService(invoices.NewRepository(pool), numbers, policy, logger).WithAudit(audit)
	receiptService := receipts.NewService(receipts.NewRepository(pool), invoiceService, numbers, logger).WithAudit(audit)
	estimateService := estimates.NewService(estimates.NewRepository(pool), invoiceService, numbers, logger).WithAudit(audit)
	returnService := returns.NewService(returns.NewRepository(pool), invoiceService, numbers, logger).WithAudit(audit)
	if salesMetrics != nil {
		invoiceService.WithMetrics(salesMetrics)
		receiptService.WithMetrics(salesMetrics)
		estimateService.WithMetrics(salesMetrics)
		returnService.WithMetrics(salesMetrics)
	}

	return &SalesServices{
		Numbers:   numbers,
		Invoices:  invoiceService,
		Receipts:  receiptService,
		Estimates: estimateService,
		Returns:   returnService,
	}, nil
}
