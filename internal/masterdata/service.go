package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/procura-erp/procura/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps the repository with validation and list-cache maintenance.
type Service struct {
	repo  *Repository
	cache *ListCache
	audit AuditPort
}

// NewService constructs the master data service.
func NewService(repo *Repository, cache *ListCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// Cache keys, one per entity.
const (
	cacheCountries = "countries"
	cacheStates    = "states"
	cacheCities    = "cities"
	cacheFloors    = "floors"
	cacheTaxes     = "taxes"
)

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	return nil
}

// Countries.

func (s *Service) ListCountries(ctx context.Context, filters ListFilters, limit, offset int) ([]Country, int, error) {
	return s.repo.ListCountries(ctx, filters, limit, offset)
}

func (s *Service) AllCountriesJSON(ctx context.Context) ([]byte, error) {
	return s.cache.Get(ctx, cacheCountries, func(ctx context.Context) (any, error) {
		out, err := s.repo.AllCountries(ctx)
		if out == nil {
			out = []Country{}
		}
		return out, err
	})
}

func (s *Service) GetCountry(ctx context.Context, id int64) (Country, error) {
	return s.repo.GetCountry(ctx, id)
}

func (s *Service) CreateCountry(ctx context.Context, c Country, actor string) (Country, error) {
	if err := requireName(c.Name); err != nil {
		return Country{}, err
	}
	c.Active = true
	created, err := s.repo.CreateCountry(ctx, c)
	if err != nil {
		return Country{}, err
	}
	s.invalidate(ctx, actor, "COUNTRY_CREATE", created.ID, cacheCountries)
	return created, nil
}

func (s *Service) UpdateCountry(ctx context.Context, c Country, actor string) (Country, error) {
	if err := requireName(c.Name); err != nil {
		return Country{}, err
	}
	updated, err := s.repo.UpdateCountry(ctx, c)
	if err != nil {
		return Country{}, err
	}
	s.invalidate(ctx, actor, "COUNTRY_UPDATE", c.ID, cacheCountries)
	return updated, nil
}

func (s *Service) DeleteCountry(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteCountry(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor, "COUNTRY_DELETE", id, cacheCountries, cacheStates, cacheCities)
	return nil
}

// States.

func (s *Service) ListStates(ctx context.Context, filters ListFilters, limit, offset int) ([]State, int, error) {
	return s.repo.ListStates(ctx, filters, limit, offset)
}

func (s *Service) AllStatesJSON(ctx context.Context) ([]byte, error) {
	return s.cache.Get(ctx, cacheStates, func(ctx context.Context) (any, error) {
		out, err := s.repo.AllStates(ctx)
		if out == nil {
			out = []State{}
		}
		return out, err
	})
}

func (s *Service) GetState(ctx context.Context, id int64) (State, error) {
	return s.repo.GetState(ctx, id)
}

func (s *Service) CreateState(ctx context.Context, st State, actor string) (State, error) {
	if err := requireName(st.Name); err != nil {
		return State{}, err
	}
	if st.CountryID == 0 {
		return State{}, fmt.Errorf("%w: countryId required", ErrValidation)
	}
	st.Active = true
	created, err := s.repo.CreateState(ctx, st)
	if err != nil {
		return State{}, err
	}
	s.invalidate(ctx, actor, "STATE_CREATE", created.ID, cacheStates)
	return created, nil
}

func (s *Service) UpdateState(ctx context.Context, st State, actor string) (State, error) {
	if err := requireName(st.Name); err != nil {
		return State{}, err
	}
	updated, err := s.repo.UpdateState(ctx, st)
	if err != nil {
		return State{}, err
	}
	s.invalidate(ctx, actor, "STATE_UPDATE", st.ID, cacheStates)
	return updated, nil
}

func (s *Service) DeleteState(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteState(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor, "STATE_DELETE", id, cacheStates, cacheCities)
	return nil
}

// Cities.

func (s *Service) ListCities(ctx context.Context, filters ListFilters, limit, offset int) ([]City, int, error) {
	return s.repo.ListCities(ctx, filters, limit, offset)
}

func (s *Service) AllCitiesJSON(ctx context.Context) ([]byte, error) {
	return s.cache.Get(ctx, cacheCities, func(ctx context.Context) (any, error) {
		out, err := s.repo.AllCities(ctx)
		if out == nil {
			out = []City{}
		}
		return out, err
	})
}

func (s *Service) GetCity(ctx context.Context, id int64) (City, error) {
	return s.repo.GetCity(ctx, id)
}

func (s *Service) CreateCity(ctx context.Context, c City, actor string) (City, error) {
	if err := requireName(c.Name); err != nil {
		return City{}, err
	}
	if c.StateID == 0 {
		return City{}, fmt.Errorf("%w: stateId required", ErrValidation)
	}
	c.Active = true
	created, err := s.repo.CreateCity(ctx, c)
	if err != nil {
		return City{}, err
	}
	s.invalidate(ctx, actor, "CITY_CREATE", created.ID, cacheCities)
	return created, nil
}

func (s *Service) UpdateCity(ctx context.Context, c City, actor string) (City, error) {
	if err := requireName(c.Name); err != nil {
		return City{}, err
	}
	updated, err := s.repo.UpdateCity(ctx, c)
	if err != nil {
		return City{}, err
	}
	s.invalidate(ctx, actor, "CITY_UPDATE", c.ID, cacheCities)
	return updated, nil
}

func (s *Service) DeleteCity(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteCity(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor, "CITY_DELETE", id, cacheCities)
	return nil
}

// Floors.

func (s *Service) ListFloors(ctx context.Context, filters ListFilters, limit, offset int) ([]Floor, int, error) {
	return s.repo.ListFloors(ctx, filters, limit, offset)
}

func (s *Service) AllFloorsJSON(ctx context.Context) ([]byte, error) {
	return s.cache.Get(ctx, cacheFloors, func(ctx context.Context) (any, error) {
		out, err := s.repo.AllFloors(ctx)
		if out == nil {
			out = []Floor{}
		}
		return out, err
	})
}

func (s *Service) GetFloor(ctx context.Context, id int64) (Floor, error) {
	return s.repo.GetFloor(ctx, id)
}

func (s *Service) CreateFloor(ctx context.Context, f Floor, actor string) (Floor, error) {
	if err := requireName(f.Name); err != nil {
		return Floor{}, err
	}
	f.Active = true
	created, err := s.repo.CreateFloor(ctx, f)
	if err != nil {
		return Floor{}, err
	}
	s.invalidate(ctx, actor, "FLOOR_CREATE", created.ID, cacheFloors)
	return created, nil
}

func (s *Service) UpdateFloor(ctx context.Context, f Floor, actor string) (Floor, error) {
	if err := requireName(f.Name); err != nil {
		return Floor{}, err
	}
	updated, err := s.repo.UpdateFloor(ctx, f)
	if err != nil {
		return Floor{}, err
	}
	s.invalidate(ctx, actor, "FLOOR_UPDATE", f.ID, cacheFloors)
	return updated, nil
}

func (s *Service) DeleteFloor(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteFloor(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor, "FLOOR_DELETE", id, cacheFloors)
	return nil
}

// Taxes.

func (s *Service) ListTaxes(ctx context.Context, filters ListFilters, limit, offset int) ([]Tax, int, error) {
	return s.repo.ListTaxes(ctx, filters, limit, offset)
}

func (s *Service) AllTaxesJSON(ctx context.Context) ([]byte, error) {
	return s.cache.Get(ctx, cacheTaxes, func(ctx context.Context) (any, error) {
		out, err := s.repo.AllTaxes(ctx)
		if out == nil {
			out = []Tax{}
		}
		return out, err
	})
}

func (s *Service) GetTax(ctx context.Context, id int64) (Tax, error) {
	return s.repo.GetTax(ctx, id)
}

func (s *Service) CreateTax(ctx context.Context, t Tax, actor string) (Tax, error) {
	if err := requireName(t.Name); err != nil {
		return Tax{}, err
	}
	if t.Rate.IsNegative() {
		return Tax{}, fmt.Errorf("%w: rate must not be negative", ErrValidation)
	}
	t.Active = true
	created, err := s.repo.CreateTax(ctx, t)
	if err != nil {
		return Tax{}, err
	}
	s.invalidate(ctx, actor, "TAX_CREATE", created.ID, cacheTaxes)
	return created, nil
}

func (s *Service) UpdateTax(ctx context.Context, t Tax, actor string) (Tax, error) {
	if err := requireName(t.Name); err != nil {
		return Tax{}, err
	}
	if t.Rate.IsNegative() {
		return Tax{}, fmt.Errorf("%w: rate must not be negative", ErrValidation)
	}
	updated, err := s.repo.UpdateTax(ctx, t)
	if err != nil {
		return Tax{}, err
	}
	s.invalidate(ctx, actor, "TAX_UPDATE", t.ID, cacheTaxes)
	return updated, nil
}

func (s *Service) DeleteTax(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteTax(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor, "TAX_DELETE", id, cacheTaxes)
	return nil
}

func (s *Service) invalidate(ctx context.Context, actor, action string, entityID int64, keys ...string) {
	s.cache.Invalidate(ctx, keys...)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "masterdata", EntityID: fmt.Sprintf("%d", entityID)})
	}
}
