package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura/internal/export"
	"github.com/procura-erp/procura/internal/platform/httpx"
)

// Handler manages master data endpoints under /master.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers one CRUD subtree per entity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/countries", h.countryRoutes)
	r.Route("/states", h.stateRoutes)
	r.Route("/cities", h.cityRoutes)
	r.Route("/floors", h.floorRoutes)
	r.Route("/taxes", h.taxRoutes)
}

func (h *Handler) countryRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, size := httpx.PageParams(r)
		out, total, err := h.service.ListCountries(r.Context(), filtersFrom(r, ""), size, page*size)
		h.page(w, err, func() any { return httpx.NewPage(orEmpty(out), page, size, total) })
	})
	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		data, err := h.service.AllCountriesJSON(r.Context())
		h.rawJSON(w, data, err)
	})
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		out, _, err := h.service.ListCountries(r.Context(), filtersFrom(r, ""), 10000, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		rows := make([][]any, 0, len(out))
		for _, c := range out {
			rows = append(rows, []any{c.ID, c.Name, c.Code, c.Active})
		}
		h.workbook(w, "Countries", []string{"ID", "Name", "Code", "Active"}, rows, "countries.xlsx")
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		out, err := h.service.GetCountry(r.Context(), id)
		h.entity(w, http.StatusOK, out, err)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in Country
		if !h.decode(w, r, &in) {
			return
		}
		out, err := h.service.CreateCountry(r.Context(), in, actor(r))
		h.entity(w, http.StatusCreated, out, err)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var in Country
		if !h.decode(w, r, &in) {
			return
		}
		in.ID = id
		out, err := h.service.UpdateCountry(r.Context(), in, actor(r))
		h.entity(w, http.StatusOK, out, err)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		h.deleted(w, h.service.DeleteCountry(r.Context(), id, actor(r)))
	})
}

func (h *Handler) stateRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, size := httpx.PageParams(r)
		out, total, err := h.service.ListStates(r.Context(), filtersFrom(r, "countryId"), size, page*size)
		h.page(w, err, func() any { return httpx.NewPage(orEmpty(out), page, size, total) })
	})
	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		data, err := h.service.AllStatesJSON(r.Context())
		h.rawJSON(w, data, err)
	})
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		out, _, err := h.service.ListStates(r.Context(), filtersFrom(r, "countryId"), 10000, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		rows := make([][]any, 0, len(out))
		for _, s := range out {
			rows = append(rows, []any{s.ID, s.CountryID, s.Name, s.Code, s.Active})
		}
		h.workbook(w, "States", []string{"ID", "Country ID", "Name", "Code", "Active"}, rows, "states.xlsx")
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		out, err := h.service.GetState(r.Context(), id)
		h.entity(w, http.StatusOK, out, err)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in State
		if !h.decode(w, r, &in) {
			return
		}
		out, err := h.service.CreateState(r.Context(), in, actor(r))
		h.entity(w, http.StatusCreated, out, err)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var in State
		if !h.decode(w, r, &in) {
			return
		}
		in.ID = id
		out, err := h.service.UpdateState(r.Context(), in, actor(r))
		h.entity(w, http.StatusOK, out, err)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		h.deleted(w, h.service.DeleteState(r.Context(), id, actor(r)))
	})
}

func (h *Handler) cityRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, size := httpx.PageParams(r)
		out, total, err := h.service.ListCities(r.Context(), filtersFrom(r, "stateId"), size, page*size)
		h.page(w, err, func() any { return httpx.NewPage(orEmpty(out), page, size, total) })
	})
	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		data, err := h.service.AllCitiesJSON(r.Context())
		h.rawJSON(w, data, err)
	})
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		out, _, err := h.service.ListCities(r.Context(), filtersFrom(r, "stateId"), 10000, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		rows := make([][]any, 0, len(out))
		for _, c := range out {
			rows = append(rows, []any{c.ID, c.StateID, c.Name, c.Active})
		}
		h.workbook(w, "Cities", []string{"ID", "State ID", "Name", "Active"}, rows, "cities.xlsx")
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		out, err := h.service.GetCity(r.Context(), id)
		h.entity(w, http.StatusOK, out, err)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in City
		if !h.decode(w, r, &in) {
			return
		}
		out, err := h.service.CreateCity(r.Context(), in, actor(r))
		h.entity(w, http.StatusCreated, out, err)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var in City
		if !h.decode(w, r, &in) {
			return
		}
		in.ID = id
		out, err := h.service.UpdateCity(r.Context(), in, actor(r))
		h.entity(w, http.StatusOK, out, err)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		h.deleted(w, h.service.DeleteCity(r.Context(), id, actor(r)))
	})
}

func (h *Handler) floorRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, size := httpx.PageParams(r)
		out, total, err := h.service.ListFloors(r.Context(), filtersFrom(r, ""), size, page*size)
		h.page(w, err, func() any { return httpx.NewPage(orEmpty(out), page, size, total) })
	})
	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		data, err := h.service.AllFloorsJSON(r.Context())
		h.rawJSON(w, data, err)
	})
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		out, _, err := h.service.ListFloors(r.Context(), filtersFrom(r, ""), 10000, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		rows := make([][]any, 0, len(out))
		for _, f := range out {
			rows = append(rows, []any{f.ID, f.Name, f.Building, f.Active})
		}
		h.workbook(w, "Floors", []string{"ID", "Name", "Building", "Active"}, rows, "floors.xlsx")
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		out, err := h.service.GetFloor(r.Context(), id)
		h.entity(w, http.StatusOK, out, err)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in Floor
		if !h.decode(w, r, &in) {
			return
		}
		out, err := h.service.CreateFloor(r.Context(), in, actor(r))
		h.entity(w, http.StatusCreated, out, err)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var in Floor
		if !h.decode(w, r, &in) {
			return
		}
		in.ID = id
		out, err := h.service.UpdateFloor(r.Context(), in, actor(r))
		h.entity(w, http.StatusOK, out, err)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		h.deleted(w, h.service.DeleteFloor(r.Context(), id, actor(r)))
	})
}

func (h *Handler) taxRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, size := httpx.PageParams(r)
		out, total, err := h.service.ListTaxes(r.Context(), filtersFrom(r, ""), size, page*size)
		h.page(w, err, func() any { return httpx.NewPage(orEmpty(out), page, size, total) })
	})
	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		data, err := h.service.AllTaxesJSON(r.Context())
		h.rawJSON(w, data, err)
	})
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		out, _, err := h.service.ListTaxes(r.Context(), filtersFrom(r, ""), 10000, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		rows := make([][]any, 0, len(out))
		for _, t := range out {
			rows = append(rows, []any{t.ID, t.Name, t.Type, t.Rate.InexactFloat64(), t.Active})
		}
		h.workbook(w, "Taxes", []string{"ID", "Name", "Type", "Rate", "Active"}, rows, "taxes.xlsx")
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		out, err := h.service.GetTax(r.Context(), id)
		h.entity(w, http.StatusOK, out, err)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in Tax
		if !h.decode(w, r, &in) {
			return
		}
		out, err := h.service.CreateTax(r.Context(), in, actor(r))
		h.entity(w, http.StatusCreated, out, err)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var in Tax
		if !h.decode(w, r, &in) {
			return
		}
		in.ID = id
		out, err := h.service.UpdateTax(r.Context(), in, actor(r))
		h.entity(w, http.StatusOK, out, err)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		h.deleted(w, h.service.DeleteTax(r.Context(), id, actor(r)))
	})
}

func filtersFrom(r *http.Request, parentParam string) ListFilters {
	f := ListFilters{Search: r.URL.Query().Get("search")}
	if parentParam != "" {
		f.ParentID, _ = strconv.ParseInt(r.URL.Query().Get(parentParam), 10, 64)
	}
	return f
}

func actor(r *http.Request) string {
	return r.URL.Query().Get("actor")
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (h *Handler) page(w http.ResponseWriter, err error, payload func() any) {
	if err != nil {
		h.logger.Error("list master data", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload())
}

func (h *Handler) rawJSON(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		h.logger.Error("load master data", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) workbook(w http.ResponseWriter, sheet string, headers []string, rows [][]any, filename string) {
	data, err := export.Workbook(export.Sheet{Name: sheet, Headers: headers, Rows: rows})
	if err != nil {
		h.logger.Error("build master data workbook", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "")
		return
	}
	httpx.Blob(w, export.ContentType, filename, data)
}

func (h *Handler) entity(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, status, payload)
}

func (h *Handler) deleted(w http.ResponseWriter, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "entity not found")
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusConflict, "In Use", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
