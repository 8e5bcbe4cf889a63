package grn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procura-erp/procura/internal/export"
	"github.com/procura-erp/procura/internal/observability"
	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/internal/workflow"
)

// Handler manages goods receipt endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers goods receipt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/export", h.exportList)
	r.Get("/generate-number", h.generateNumber)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/close", h.close)
	r.Post("/{id}/quality-check", h.qualityCheck)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, size := httpx.PageParams(r)
	poID, _ := strconv.ParseInt(r.URL.Query().Get("poId"), 10, 64)
	filters := ListFilters{
		Status:  r.URL.Query().Get("status"),
		POID:    poID,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	receipts, total, err := h.service.List(r.Context(), filters, size, page*size)
	if err != nil {
		h.logger.Error("list grns", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if receipts == nil {
		receipts = []GRN{}
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(receipts, page, size, total))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	g, err := h.service.CreateFromPO(r.Context(), input, r.URL.Query().Get("actor"))
	if err != nil {
		h.logger.Error("create grn", slog.Any("error", err), slog.Int64("poId", input.POID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	g, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	g, err := h.service.Update(r.Context(), id, input, r.URL.Query().Get("actor"))
	if err != nil {
		h.logger.Error("update grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) generateNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.GenerateNumber(r.Context())
	if err != nil {
		h.logger.Error("generate grn number", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"number": number})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.service.Submit(r.Context(), id, r.URL.Query().Get("actor"))
	h.observe("submit", err)
	if err != nil {
		h.logger.Error("submit grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusPendingApproval)})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.service.Approve(r.Context(), id, r.URL.Query().Get("approvedBy"), time.Now())
	h.observe("approve", err)
	if err != nil {
		h.logger.Error("approve grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusApproved)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, "reject", h.service.Reject, StatusRejected)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, "cancel", h.service.Cancel, StatusCancelled)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.service.Close(r.Context(), id, r.URL.Query().Get("actor"))
	h.observe("close", err)
	if err != nil {
		h.logger.Error("close grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusClosed)})
}

func (h *Handler) qualityCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	passed := r.URL.Query().Get("result") != "FAILED"
	err := h.service.QualityCheck(r.Context(), id, r.URL.Query().Get("actor"), passed, r.URL.Query().Get("reason"))
	h.observe("quality_check", err)
	if err != nil {
		h.logger.Error("quality check grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	status := StatusQualityPassed
	if !passed {
		status = StatusQualityFailed
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) exportList(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	receipts, _, err := h.service.List(r.Context(), filters, 10000, 0)
	if err != nil {
		h.logger.Error("export grns", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	rows := make([][]any, 0, len(receipts))
	for _, g := range receipts {
		rows = append(rows, []any{
			g.Number, g.PONumber, string(g.Status), string(g.Type), g.SupplierName,
			g.ReceivedDate.Format("2006-01-02"), string(g.QualityCheckStatus),
			g.TotalReceivedValue.InexactFloat64(),
		})
	}
	data, err := export.Workbook(export.Sheet{
		Name:    "Goods Receipts",
		Headers: []string{"Number", "PO Number", "Status", "Type", "Supplier", "Received Date", "Quality", "Total Value"},
		Rows:    rows,
	})
	if err != nil {
		h.logger.Error("build grn workbook", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "")
		return
	}
	httpx.Blob(w, export.ContentType, "goods-receipts.xlsx", data)
}

func (h *Handler) reasonAction(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64, actor, reason string) error, final Status) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := fn(r.Context(), id, r.URL.Query().Get("actor"), r.URL.Query().Get("reason"))
	h.observe(name, err)
	if err != nil {
		h.logger.Error(name+" grn", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(final)})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) observe(action string, err error) {
	if h.metrics == nil {
		return
	}
	rejected := errors.Is(err, workflow.ErrTransition) || errors.Is(err, workflow.ErrReasonRequired)
	h.metrics.ObserveTransition("grn", action, err == nil || !rejected)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "grn not found")
	case errors.Is(err, purchaseorder.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase order not found")
	case errors.Is(err, ErrNotEditable):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
