package invoices

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/summary", h.PreviewSummary)
	r.Post("/deposit-check", h.CheckDeposit)

	r.Get("/invoices", h.List)
	r.Post("/invoices", h.Create)
	r.Get("/invoices/{id}", h.Show)
	r.Post("/invoices/{id}/finalize", h.Finalize)
	r.Get("/invoices/{id}/edits", h.ListEdits)
	r.Post("/invoices/{id}/edits", h.AppendEdit)
	r.Get("/invoices/{id}/edits/{editID}", h.ShowEdit)
}
