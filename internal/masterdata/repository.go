package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for all master entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrInUse
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) count(ctx context.Context, table, where string, args []any) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	var total int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func listClauses(filters ListFilters, parentColumn string) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if parentColumn != "" && filters.ParentID != 0 {
		args = append(args, filters.ParentID)
		where = append(where, fmt.Sprintf("%s = $%d", parentColumn, len(args)))
	}
	return strings.Join(where, " AND "), args
}

// Countries.

func (r *Repository) ListCountries(ctx context.Context, filters ListFilters, limit, offset int) ([]Country, int, error) {
	where, args := listClauses(filters, "")
	total, err := r.count(ctx, "countries", where, args)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, name, code, active, created_at, updated_at FROM countries
WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *Repository) AllCountries(ctx context.Context) ([]Country, error) {
	out, _, err := r.ListCountries(ctx, ListFilters{}, 10000, 0)
	return out, err
}

func (r *Repository) GetCountry(ctx context.Context, id int64) (Country, error) {
	var c Country
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, active, created_at, updated_at FROM countries WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Code, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Country{}, translate(err)
	}
	return c, nil
}

func (r *Repository) CreateCountry(ctx context.Context, c Country) (Country, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO countries (name, code, active, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`, c.Name, c.Code, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Country{}, translate(err)
	}
	return c, nil
}

func (r *Repository) UpdateCountry(ctx context.Context, c Country) (Country, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE countries SET name=$1, code=$2, active=$3, updated_at=NOW() WHERE id=$4`,
		c.Name, c.Code, c.Active, c.ID)
	if err != nil {
		return Country{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return Country{}, ErrNotFound
	}
	return r.GetCountry(ctx, c.ID)
}

func (r *Repository) DeleteCountry(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM countries WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// States.

func (r *Repository) ListStates(ctx context.Context, filters ListFilters, limit, offset int) ([]State, int, error) {
	where, args := listClauses(filters, "country_id")
	total, err := r.count(ctx, "states", where, args)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, country_id, name, code, active, created_at, updated_at FROM states
WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []State
	for rows.Next() {
		var s State
		if err := rows.Scan(&s.ID, &s.CountryID, &s.Name, &s.Code, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *Repository) AllStates(ctx context.Context) ([]State, error) {
	out, _, err := r.ListStates(ctx, ListFilters{}, 10000, 0)
	return out, err
}

func (r *Repository) GetState(ctx context.Context, id int64) (State, error) {
	var s State
	err := r.pool.QueryRow(ctx, `SELECT id, country_id, name, code, active, created_at, updated_at FROM states WHERE id=$1`, id).
		Scan(&s.ID, &s.CountryID, &s.Name, &s.Code, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return State{}, translate(err)
	}
	return s, nil
}

func (r *Repository) CreateState(ctx context.Context, s State) (State, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO states (country_id, name, code, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`, s.CountryID, s.Name, s.Code, s.Active).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return State{}, translate(err)
	}
	return s, nil
}

func (r *Repository) UpdateState(ctx context.Context, s State) (State, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE states SET country_id=$1, name=$2, code=$3, active=$4, updated_at=NOW() WHERE id=$5`,
		s.CountryID, s.Name, s.Code, s.Active, s.ID)
	if err != nil {
		return State{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return State{}, ErrNotFound
	}
	return r.GetState(ctx, s.ID)
}

func (r *Repository) DeleteState(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM states WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cities.

func (r *Repository) ListCities(ctx context.Context, filters ListFilters, limit, offset int) ([]City, int, error) {
	where, args := listClauses(filters, "state_id")
	total, err := r.count(ctx, "cities", where, args)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, state_id, name, active, created_at, updated_at FROM cities
WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.StateID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *Repository) AllCities(ctx context.Context) ([]City, error) {
	out, _, err := r.ListCities(ctx, ListFilters{}, 10000, 0)
	return out, err
}

func (r *Repository) GetCity(ctx context.Context, id int64) (City, error) {
	var c City
	err := r.pool.QueryRow(ctx, `SELECT id, state_id, name, active, created_at, updated_at FROM cities WHERE id=$1`, id).
		Scan(&c.ID, &c.StateID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return City{}, translate(err)
	}
	return c, nil
}

func (r *Repository) CreateCity(ctx context.Context, c City) (City, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO cities (state_id, name, active, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`, c.StateID, c.Name, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return City{}, translate(err)
	}
	return c, nil
}

func (r *Repository) UpdateCity(ctx context.Context, c City) (City, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE cities SET state_id=$1, name=$2, active=$3, updated_at=NOW() WHERE id=$4`,
		c.StateID, c.Name, c.Active, c.ID)
	if err != nil {
		return City{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return City{}, ErrNotFound
	}
	return r.GetCity(ctx, c.ID)
}

func (r *Repository) DeleteCity(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cities WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Floors.

func (r *Repository) ListFloors(ctx context.Context, filters ListFilters, limit, offset int) ([]Floor, int, error) {
	where, args := listClauses(filters, "")
	total, err := r.count(ctx, "floors", where, args)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, name, building, active, created_at, updated_at FROM floors
WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Floor
	for rows.Next() {
		var f Floor
		if err := rows.Scan(&f.ID, &f.Name, &f.Building, &f.Active, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

func (r *Repository) AllFloors(ctx context.Context) ([]Floor, error) {
	out, _, err := r.ListFloors(ctx, ListFilters{}, 10000, 0)
	return out, err
}

func (r *Repository) GetFloor(ctx context.Context, id int64) (Floor, error) {
	var f Floor
	err := r.pool.QueryRow(ctx, `SELECT id, name, building, active, created_at, updated_at FROM floors WHERE id=$1`, id).
		Scan(&f.ID, &f.Name, &f.Building, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Floor{}, translate(err)
	}
	return f, nil
}

func (r *Repository) CreateFloor(ctx context.Context, f Floor) (Floor, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO floors (name, building, active, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`, f.Name, f.Building, f.Active).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Floor{}, translate(err)
	}
	return f, nil
}

func (r *Repository) UpdateFloor(ctx context.Context, f Floor) (Floor, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE floors SET name=$1, building=$2, active=$3, updated_at=NOW() WHERE id=$4`,
		f.Name, f.Building, f.Active, f.ID)
	if err != nil {
		return Floor{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return Floor{}, ErrNotFound
	}
	return r.GetFloor(ctx, f.ID)
}

func (r *Repository) DeleteFloor(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM floors WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Taxes.

func (r *Repository) ListTaxes(ctx context.Context, filters ListFilters, limit, offset int) ([]Tax, int, error) {
	where, args := listClauses(filters, "")
	total, err := r.count(ctx, "taxes", where, args)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, name, type, rate, active, created_at, updated_at FROM taxes
WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Tax
	for rows.Next() {
		var t Tax
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Rate, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *Repository) AllTaxes(ctx context.Context) ([]Tax, error) {
	out, _, err := r.ListTaxes(ctx, ListFilters{}, 10000, 0)
	return out, err
}

func (r *Repository) GetTax(ctx context.Context, id int64) (Tax, error) {
	var t Tax
	err := r.pool.QueryRow(ctx, `SELECT id, name, type, rate, active, created_at, updated_at FROM taxes WHERE id=$1`, id).
		Scan(&t.ID, &t.Name, &t.Type, &t.Rate, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tax{}, translate(err)
	}
	return t, nil
}

func (r *Repository) CreateTax(ctx context.Context, t Tax) (Tax, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO taxes (name, type, rate, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`, t.Name, t.Type, t.Rate, t.Active).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tax{}, translate(err)
	}
	return t, nil
}

func (r *Repository) UpdateTax(ctx context.Context, t Tax) (Tax, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE taxes SET name=$1, type=$2, rate=$3, active=$4, updated_at=NOW() WHERE id=$5`,
		t.Name, t.Type, t.Rate, t.Active, t.ID)
	if err != nil {
		return Tax{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return Tax{}, ErrNotFound
	}
	return r.GetTax(ctx, t.ID)
}

func (r *Repository) DeleteTax(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM taxes WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
