package rfp

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed quotation reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetQuotation returns a quotation with its lines.
func (r *Repository) GetQuotation(ctx context.Context, id int64) (Quotation, []QuotationLine, error) {
	const header = `SELECT id, number, supplier_id, supplier_name, status, payment_terms, valid_until, created_at
FROM rfp_quotations WHERE id = $1`
	var q Quotation
	var status string
	err := r.pool.QueryRow(ctx, header, id).Scan(&q.ID, &q.Number, &q.SupplierID, &q.SupplierName, &status, &q.PaymentTerms, &q.ValidUntil, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, nil, ErrNotFound
		}
		return Quotation{}, nil, err
	}
	q.Status = Status(status)

	const lineQuery = `SELECT id, quotation_id, item_name, item_code, qty, unit_price, uom, tax1_type, tax1_rate, tax2_type, tax2_rate
FROM rfp_quotation_lines WHERE quotation_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, lineQuery, id)
	if err != nil {
		return Quotation{}, nil, err
	}
	defer rows.Close()
	var lines []QuotationLine
	for rows.Next() {
		var l QuotationLine
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ItemName, &l.ItemCode, &l.Qty, &l.UnitPrice, &l.UOM, &l.Tax1Type, &l.Tax1Rate, &l.Tax2Type, &l.Tax2Rate); err != nil {
			return Quotation{}, nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return Quotation{}, nil, err
	}
	return q, lines, nil
}

// ListApproved returns approved quotations for PO derivation pickers.
func (r *Repository) ListApproved(ctx context.Context, limit int) ([]Quotation, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, number, supplier_id, supplier_name, status, payment_terms, valid_until, created_at
FROM rfp_quotations WHERE status = 'APPROVED' ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quotations []Quotation
	for rows.Next() {
		var q Quotation
		var status string
		if err := rows.Scan(&q.ID, &q.Number, &q.SupplierID, &q.SupplierName, &status, &q.PaymentTerms, &q.ValidUntil, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.Status = Status(status)
		quotations = append(quotations, q)
	}
	return quotations, rows.Err()
}
