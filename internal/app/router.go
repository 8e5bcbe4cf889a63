package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/invoice"
	"github.com/procura-erp/procura/internal/masterdata"
	"github.com/procura-erp/procura/internal/observability"
	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	PurchaseOrderHandler *purchaseorder.Handler
	GRNHandler           *grn.Handler
	InvoiceHandler       *invoice.Handler
	MasterDataHandler    *masterdata.Handler
	JobHandler           *jobs.Handler
	Pool                 *pgxpool.Pool
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Procura defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.PurchaseOrderHandler != nil {
		r.Route("/purchaseorder", params.PurchaseOrderHandler.MountRoutes)
	}
	if params.GRNHandler != nil {
		r.Route("/grn", params.GRNHandler.MountRoutes)
	}
	if params.InvoiceHandler != nil {
		r.Route("/invoice", params.InvoiceHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/master", params.MasterDataHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
