package invoice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procura-erp/procura/internal/export"
	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/observability"
	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/internal/workflow"
)

// Handler manages invoice endpoints.
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

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/export", h.exportList)
	r.Get("/generate-number", h.generateNumber)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/route-approval", h.routeApproval)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/hold", h.hold)
	r.Post("/{id}/resume", h.resume)
	r.Post("/{id}/match", h.match)
	r.Post("/{id}/payments", h.recordPayment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, size := httpx.PageParams(r)
	poID, _ := strconv.ParseInt(r.URL.Query().Get("poId"), 10, 64)
	grnID, _ := strconv.ParseInt(r.URL.Query().Get("grnId"), 10, 64)
	filters := ListFilters{
		Status:  r.URL.Query().Get("status"),
		POID:    poID,
		GRNID:   grnID,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	invoices, total, err := h.service.List(r.Context(), filters, size, page*size)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(invoices, page, size, total))
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
	inv, err := h.service.Create(r.Context(), input, r.URL.Query().Get("actor"))
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
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
	inv, err := h.service.Update(r.Context(), id, input, r.URL.Query().Get("actor"))
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) generateNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.GenerateNumber(r.Context())
	if err != nil {
		h.logger.Error("generate invoice number", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"number": number})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, "submit", func(ctx context.Context, id int64) error {
		return h.service.Submit(ctx, id, r.URL.Query().Get("actor"))
	}, StatusSubmitted)
}

func (h *Handler) routeApproval(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, "route_approval", func(ctx context.Context, id int64) error {
		return h.service.RouteApproval(ctx, id, r.URL.Query().Get("actor"))
	}, StatusPendingApproval)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.service.Approve(r.Context(), id, r.URL.Query().Get("approvedBy"))
	h.observe("approve", err)
	if err != nil {
		h.logger.Error("approve invoice", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(inv.Status)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, "reject", h.service.Reject, StatusRejected)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, "cancel", h.service.Cancel, StatusCancelled)
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, "hold", h.service.Hold, StatusOnHold)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, "resume", func(ctx context.Context, id int64) error {
		return h.service.Resume(ctx, id, r.URL.Query().Get("actor"))
	}, StatusPendingApproval)
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Match(r.Context(), id, r.URL.Query().Get("actor"))
	h.observe("match", err)
	if err != nil {
		h.logger.Error("match invoice", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), id, input, r.URL.Query().Get("actor"))
	h.observe("payment", err)
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) exportList(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	invoices, _, err := h.service.List(r.Context(), filters, 10000, 0)
	if err != nil {
		h.logger.Error("export invoices", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	rows := make([][]any, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, []any{
			inv.Number, inv.SupplierRef, string(inv.Status), string(inv.Type), inv.SupplierName,
			inv.InvoiceDate.Format("2006-01-02"), inv.DueDate.Format("2006-01-02"),
			inv.GrandTotal.InexactFloat64(), inv.PaidAmount.InexactFloat64(), inv.BalanceAmount.InexactFloat64(),
		})
	}
	data, err := export.Workbook(export.Sheet{
		Name:    "Invoices",
		Headers: []string{"Number", "Supplier Ref", "Status", "Type", "Supplier", "Invoice Date", "Due Date", "Grand Total", "Paid", "Balance"},
		Rows:    rows,
	})
	if err != nil {
		h.logger.Error("build invoice workbook", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "")
		return
	}
	httpx.Blob(w, export.ContentType, "invoices.xlsx", data)
}

func (h *Handler) statusAction(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64) error, final Status) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := fn(r.Context(), id)
	h.observe(name, err)
	if err != nil {
		h.logger.Error(name+" invoice", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(final)})
}

func (h *Handler) reasonAction(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64, actor, reason string) error, final Status) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := fn(r.Context(), id, r.URL.Query().Get("actor"), r.URL.Query().Get("reason"))
	h.observe(name, err)
	if err != nil {
		h.logger.Error(name+" invoice", slog.Any("error", err), slog.Int64("id", id))
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
	h.metrics.ObserveTransition("invoice", action, err == nil || !rejected)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	case errors.Is(err, purchaseorder.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase order not found")
	case errors.Is(err, grn.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "grn not found")
	case errors.Is(err, ErrNotEditable):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusConflict, "Overpayment", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
