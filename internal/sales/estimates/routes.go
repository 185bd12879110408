package estimates

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/estimates", h.List)
	r.Post("/estimates", h.Create)
	r.Get("/estimates/{id}", h.Show)
	r.Put("/estimates/{id}", h.Update)
	r.Post("/estimates/{id}/submit", h.Submit)
	r.Post("/estimates/{id}/accept", h.Accept)
	r.Post("/estimates/{id}/convert", h.Convert)
}
