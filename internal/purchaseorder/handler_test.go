package purchaseorder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(repo *mockRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, newTestService(repo), nil, nil)
	r := chi.NewRouter()
	r.Route("/purchase-orders", h.MountRoutes)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndGet(t *testing.T) {
	repo := newMockRepo()
	handler := newTestHandler(repo)

	rec := doJSON(t, handler, http.MethodPost, "/purchase-orders", draftInput())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, StatusDraft, created.Status)
	assert.True(t, created.GrandTotal.Equal(d("472000")))

	rec = doJSON(t, handler, http.MethodGet, "/purchase-orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerCreateRejectsBadPayload(t *testing.T) {
	handler := newTestHandler(newMockRepo())

	req := httptest.NewRequest(http.MethodPost, "/purchase-orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Structurally valid JSON that fails validation: no supplier, no lines.
	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders", map[string]any{"supplierName": "Acme"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListEnvelope(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	_, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	rec := doJSON(t, newTestHandler(repo), http.MethodGet, "/purchase-orders?page=0&size=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Content       []PurchaseOrder `json:"content"`
		TotalElements int             `json:"totalElements"`
		TotalPages    int             `json:"totalPages"`
		Size          int             `json:"size"`
		Number        int             `json:"number"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Content, 1)
	assert.Equal(t, 1, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 20, page.Size)
	assert.Equal(t, 0, page.Number)
}

func TestHandlerSubmitFlow(t *testing.T) {
	repo := newMockRepo()
	handler := newTestHandler(repo)

	rec := doJSON(t, handler, http.MethodPost, "/purchase-orders", draftInput())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/submit?submittedBy=priya", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"SUBMITTED"}`, rec.Body.String())

	// Resubmitting a submitted order is idempotent.
	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/submit?submittedBy=priya", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"SUBMITTED"}`, rec.Body.String())
}

func TestHandlerApproveValidation(t *testing.T) {
	repo := newMockRepo()
	handler := newTestHandler(repo)

	rec := doJSON(t, handler, http.MethodPost, "/purchase-orders", draftInput())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/approve?approvedBy=boss&approvalDate=01-06-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Approving a draft skips SUBMITTED and must be refused.
	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/approve?approvedBy=boss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/submit?submittedBy=priya", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/approve?approvedBy=boss&approvalDate=2025-06-02", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"APPROVED"}`, rec.Body.String())
}

func TestHandlerRejectRequiresReason(t *testing.T) {
	repo := newMockRepo()
	handler := newTestHandler(repo)

	rec := doJSON(t, handler, http.MethodPost, "/purchase-orders", draftInput())
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/submit?submittedBy=priya", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/reject?actor=boss", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/purchase-orders/1/reject?actor=boss&reason=budget+freeze", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"REJECTED"}`, rec.Body.String())
}

func TestHandlerPathErrors(t *testing.T) {
	handler := newTestHandler(newMockRepo())

	rec := doJSON(t, handler, http.MethodGet, "/purchase-orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/purchase-orders/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
