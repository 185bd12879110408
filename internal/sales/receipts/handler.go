package receipts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// Handler serves the receipt JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// GenerateFromEdit answers 201 for a new receipt and 200 when the edit was
// already receipted.
func (h *Handler) GenerateFromEdit(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	editID, err := uuid.Parse(chi.URLParam(r, "editID"))
	if err != nil {
		httpx.RespondError(w, &shared.ValidationError{Field: "edit_id", Message: "must be a UUID"})
		return
	}
	rec, existed, err := h.service.GenerateFromEdit(r.Context(), invoiceID, editID)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, GenerateReceiptResponse{Receipt: NewReceiptResponse(rec), AlreadyExisted: existed})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.CreateReceipt(r.Context(), NewReceipt(req))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewReceiptResponse(rec))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := q.Get("invoice_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, &shared.ValidationError{Field: "invoice_id", Message: "must be an integer"})
			return
		}
		filter.InvoiceID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := shared.ReceiptStatus(raw)
		if status != shared.ReceiptStatusDraft && status != shared.ReceiptStatusCompleted {
			httpx.RespondError(w, &shared.ValidationError{Field: "status", Message: "unknown receipt status"})
			return
		}
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	receipts, total, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := ListReceiptsResponse{Receipts: make([]ReceiptResponse, 0, len(receipts)), Total: total}
	for _, rec := range receipts {
		resp.Receipts = append(resp.Receipts, NewReceiptResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewReceiptResponse(rec))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CompleteReceiptRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	rec, err := h.service.CompleteReceipt(r.Context(), id, req.Signature)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewReceiptResponse(rec))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	var ve *shared.ValidationError
	if !errors.As(err, &ve) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrNothingToReceipt) {
		h.logger.Error("receipt request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, &shared.ValidationError{Field: param, Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
