package returns

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/credit-notes", h.ListCreditNotes)
	r.Post("/credit-notes", h.CreateCreditNote)
	r.Get("/credit-notes/{id}", h.ShowCreditNote)
	r.Put("/credit-notes/{id}", h.UpdateCreditNote)
	r.Post("/credit-notes/{id}/approve", h.ApproveCreditNote)

	r.Get("/refunds", h.ListRefunds)
	r.Post("/refunds", h.CreateRefund)
	r.Get("/refunds/{id}", h.ShowRefund)
	r.Put("/refunds/{id}", h.UpdateRefund)
	r.Post("/refunds/{id}/refunded", h.MarkRefunded)
}
