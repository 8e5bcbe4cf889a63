// Package masterdata manages the reference entities the procurement documents
// point at: countries, states, cities, floors and tax codes.
package masterdata

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Country is a top level geography entity.
type Country struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State belongs to a country.
type State struct {
	ID        int64     `json:"id"`
	CountryID int64     `json:"countryId"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// City belongs to a state.
type City struct {
	ID        int64     `json:"id"`
	StateID   int64     `json:"stateId"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Floor is a delivery location within a building.
type Floor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Building  string    `json:"building"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tax is a named tax code with its percentage rate.
type Tax struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Rate      decimal.Decimal `json:"rate"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ListFilters narrows master data list queries. ParentID filters states by
// country and cities by state; the other entities ignore it.
type ListFilters struct {
	Search   string
	ParentID int64
}

var (
	ErrNotFound   = errors.New("masterdata: not found")
	ErrValidation = errors.New("masterdata: validation failed")
	ErrDuplicate  = errors.New("masterdata: duplicate entry")
	ErrInUse      = errors.New("masterdata: entity is referenced and cannot be deleted")
)
