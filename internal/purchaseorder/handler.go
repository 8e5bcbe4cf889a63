package purchaseorder

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
	"github.com/procura-erp/procura/internal/workflow"
	"github.com/procura-erp/procura/report"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	pdf      *report.Client
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pdf *report.Client, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		pdf:      pdf,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/export", h.exportList)
	r.Get("/generate-number", h.generateNumber)
	r.Post("/from-rfp/{rfpId}", h.createFromRFP)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/close", h.close)
	r.Get("/{id}/export/pdf", h.exportPDF)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, size := httpx.PageParams(r)
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplierId"), 10, 64)
	filters := ListFilters{
		Status:     r.URL.Query().Get("status"),
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
		SortBy:     r.URL.Query().Get("sort"),
		SortDir:    r.URL.Query().Get("dir"),
	}
	orders, total, err := h.service.List(r.Context(), filters, size, page*size)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(orders, page, size, total))
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
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) createFromRFP(w http.ResponseWriter, r *http.Request) {
	rfpID, err := strconv.ParseInt(chi.URLParam(r, "rfpId"), 10, 64)
	if err != nil || rfpID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rfpId must be a positive integer")
		return
	}
	po, err := h.service.CreateFromRFP(r.Context(), rfpID, r.URL.Query().Get("raisedBy"))
	if err != nil {
		h.logger.Error("create purchase order from rfp", slog.Any("error", err), slog.Int64("rfpId", rfpID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
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
	po, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) generateNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.GenerateNumber(r.Context())
	if err != nil {
		h.logger.Error("generate po number", slog.Any("error", err))
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
	err := h.service.Submit(r.Context(), id, r.URL.Query().Get("submittedBy"))
	h.observe("submit", err)
	if err != nil {
		h.logger.Error("submit purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusSubmitted)})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	approvalDate := time.Time{}
	if raw := r.URL.Query().Get("approvalDate"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "approvalDate must be YYYY-MM-DD")
			return
		}
		approvalDate = parsed
	}
	err := h.service.Approve(r.Context(), id, r.URL.Query().Get("approvedBy"), approvalDate, r.Header.Get("X-Idempotency-Key"))
	h.observe("approve", err)
	if err != nil {
		h.logger.Error("approve purchase order", slog.Any("error", err), slog.Int64("id", id))
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
		h.logger.Error("close purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusClosed)})
}

func (h *Handler) reasonAction(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64, actor, reason string) error, final Status) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := fn(r.Context(), id, r.URL.Query().Get("actor"), r.URL.Query().Get("reason"))
	h.observe(name, err)
	if err != nil {
		h.logger.Error(name+" purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(final)})
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	html, err := RenderHTML(po)
	if err != nil {
		h.logger.Error("render po html", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render po pdf", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "Export Failed", "pdf renderer unavailable")
		return
	}
	httpx.Blob(w, "application/pdf", po.Number+".pdf", pdf)
}

func (h *Handler) exportList(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	orders, _, err := h.service.List(r.Context(), filters, 10000, 0)
	if err != nil {
		h.logger.Error("export purchase orders", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	rows := make([][]any, 0, len(orders))
	for _, po := range orders {
		rows = append(rows, []any{
			po.Number, string(po.Status), string(po.Type), po.SupplierName,
			po.OrderDate.Format("2006-01-02"), po.DeliveryDate.Format("2006-01-02"),
			po.SubTotal.InexactFloat64(), po.TaxAmount.InexactFloat64(), po.GrandTotal.InexactFloat64(),
		})
	}
	data, err := export.Workbook(export.Sheet{
		Name:    "Purchase Orders",
		Headers: []string{"Number", "Status", "Type", "Supplier", "Order Date", "Delivery Date", "Sub Total", "Tax", "Grand Total"},
		Rows:    rows,
	})
	if err != nil {
		h.logger.Error("build po workbook", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "")
		return
	}
	httpx.Blob(w, export.ContentType, "purchase-orders.xlsx", data)
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
	h.metrics.ObserveTransition("purchaseorder", action, err == nil || !rejected)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase order not found")
	case errors.Is(err, ErrNotEditable):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
