package receipts

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices/{id}/edits/{editID}/receipt", h.GenerateFromEdit)

	r.Get("/receipts", h.List)
	r.Post("/receipts", h.Create)
	r.Get("/receipts/{id}", h.Show)
	r.Post("/receipts/{id}/complete", h.Complete)
}
