package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/estimates"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/receipts"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/returns"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InvoicesHandler  *invoices.Handler
	ReceiptsHandler  *receipts.Handler
	EstimatesHandler *estimates.Handler
	ReturnsHandler   *returns.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sales", func(r chi.Router) {
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(r)
		}
		if params.ReceiptsHandler != nil {
			params.ReceiptsHandler.MountRoutes(r)
		}
		if params.EstimatesHandler != nil {
			params.EstimatesHandler.MountRoutes(r)
		}
		if params.ReturnsHandler != nil {
			params.ReturnsHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	return r
}
