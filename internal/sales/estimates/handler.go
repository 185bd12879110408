package estimates

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEstimateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.CreateEstimate(r.Context(), NewEstimate{
		CustomerID:  req.CustomerID,
		SalesRepID:  req.SalesRepID,
		Items:       req.Items,
		ValidUntil:  parseDate(req.ValidUntil),
		Message:     req.Message,
		SaveAsDraft: req.SaveAsDraft,
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewEstimateResponse(est))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := estimateID(w, r)
	if !ok {
		return
	}
	var req UpdateEstimateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.UpdateEstimate(r.Context(), id, UpdateEstimate{
		Items:      req.Items,
		ValidUntil: parseDate(req.ValidUntil),
		Message:    req.Message,
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEstimateResponse(est))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, &shared.ValidationError{Field: "customer_id", Message: "must be an integer"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := shared.EstimateStatus(raw)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	estimates, total, err := h.service.ListEstimates(r.Context(), filter)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := ListEstimatesResponse{Estimates: make([]EstimateResponse, 0, len(estimates)), Total: total}
	for _, est := range estimates {
		resp.Estimates = append(resp.Estimates, NewEstimateResponse(est))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := estimateID(w, r)
	if !ok {
		return
	}
	est, err := h.service.GetEstimate(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEstimateResponse(est))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := estimateID(w, r)
	if !ok {
		return
	}
	est, err := h.service.SubmitEstimate(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEstimateResponse(est))
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := estimateID(w, r)
	if !ok {
		return
	}
	est, err := h.service.AcceptEstimate(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEstimateResponse(est))
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := estimateID(w, r)
	if !ok {
		return
	}
	var req ConvertEstimateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := shared.ValidateStruct(req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	est, inv, err := h.service.ConvertEstimate(r.Context(), id, ConvertOptions(req))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ConvertEstimateResponse{
		Estimate: NewEstimateResponse(est),
		Invoice:  invoices.NewInvoiceResponse(inv),
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	var ve *shared.ValidationError
	if !errors.As(err, &ve) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, httpx.ErrConflict) {
		h.logger.Error("estimate request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func estimateID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, &shared.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// parseDate expects input already checked by the datetime validator.
func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.DateOnly, raw)
	return t
}
