package purchaseorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const headerColumns = `id, number, status, type, supplier_id, supplier_name, order_date, delivery_date,
payment_terms, raised_by, approved_by, approved_at, status_reason, quotation_id,
is_grn_created, is_invoice_created, sub_total, tax_amount, discount_amount, freight_charges,
grand_total, created_at, updated_at`

func scanHeader(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status, orderType string
	var approvedBy, statusReason *string
	err := row.Scan(&po.ID, &po.Number, &status, &orderType, &po.SupplierID, &po.SupplierName,
		&po.OrderDate, &po.DeliveryDate, &po.PaymentTerms, &po.RaisedBy, &approvedBy, &po.ApprovedAt,
		&statusReason, &po.QuotationID, &po.IsGRNCreated, &po.IsInvoiceCreated, &po.SubTotal,
		&po.TaxAmount, &po.DiscountAmount, &po.FreightCharges, &po.GrandTotal, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	po.Type = OrderType(orderType)
	if approvedBy != nil {
		po.ApprovedBy = *approvedBy
	}
	if statusReason != nil {
		po.StatusReason = *statusReason
	}
	return po, nil
}

// Get returns the purchase order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	query := fmt.Sprintf("SELECT %s FROM purchase_orders WHERE id = $1", headerColumns)
	po, err := scanHeader(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items
	return po, nil
}

func (r *Repository) items(ctx context.Context, poID int64) ([]Item, error) {
	const query = `SELECT id, po_id, item_name, item_code, description, quantity, unit_price, uom,
tax1_type, tax1_rate, tax1_amount, tax2_type, tax2_rate, tax2_amount,
total_amount, grand_total, received_quantity, pending_quantity, invoiced_quantity
FROM purchase_order_items WHERE po_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.POID, &it.ItemName, &it.ItemCode, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.UOM,
			&it.Tax1Type, &it.Tax1Rate, &it.Tax1Amount, &it.Tax2Type, &it.Tax2Rate, &it.Tax2Amount,
			&it.TotalAmount, &it.GrandTotal, &it.ReceivedQuantity, &it.PendingQuantity, &it.InvoicedQuantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns a page of purchase orders and the total matching count.
// Items are not hydrated on list pages.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(filters.Status))
	}
	if filters.SupplierID != 0 {
		where = append(where, "supplier_id = "+arg(filters.SupplierID))
	}
	if filters.Search != "" {
		where = append(where, "(number ILIKE "+arg("%"+filters.Search+"%")+" OR supplier_name ILIKE "+arg("%"+filters.Search+"%")+")")
	}

	countQuery := "SELECT COUNT(*) FROM purchase_orders WHERE " + strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "number", "order_date", "grand_total", "status":
		sortBy = filters.SortBy
	}
	sortDir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		sortDir = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM purchase_orders WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s",
		headerColumns, strings.Join(where, " AND "), sortBy, sortDir, arg(limit), arg(offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}

// NextSequence allocates the next per-fiscal-year document number.
func (r *Repository) NextSequence(ctx context.Context, fiscalYear string) (int64, error) {
	const query = `INSERT INTO document_sequences (doc_type, fiscal_year, last_value)
VALUES ('PO', $1, 1)
ON CONFLICT (doc_type, fiscal_year)
DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, fiscalYear).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *txRepo) CreateHeader(ctx context.Context, po PurchaseOrder) (int64, error) {
	const query = `INSERT INTO purchase_orders
(number, status, type, supplier_id, supplier_name, order_date, delivery_date, payment_terms, raised_by,
 quotation_id, sub_total, tax_amount, discount_amount, freight_charges, grand_total, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),NOW())
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, po.Number, string(po.Status), string(po.Type), po.SupplierID, po.SupplierName,
		po.OrderDate, po.DeliveryDate, po.PaymentTerms, po.RaisedBy, po.QuotationID,
		po.SubTotal, po.TaxAmount, po.DiscountAmount, po.FreightCharges, po.GrandTotal).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateHeader(ctx context.Context, po PurchaseOrder) error {
	const query = `UPDATE purchase_orders SET
type=$1, supplier_id=$2, supplier_name=$3, order_date=$4, delivery_date=$5, payment_terms=$6,
raised_by=$7, quotation_id=$8, sub_total=$9, tax_amount=$10, discount_amount=$11,
freight_charges=$12, grand_total=$13, updated_at=NOW()
WHERE id=$14`
	_, err := t.tx.Exec(ctx, query, string(po.Type), po.SupplierID, po.SupplierName, po.OrderDate, po.DeliveryDate,
		po.PaymentTerms, po.RaisedBy, po.QuotationID, po.SubTotal, po.TaxAmount, po.DiscountAmount,
		po.FreightCharges, po.GrandTotal, po.ID)
	return err
}

func (t *txRepo) ReplaceItems(ctx context.Context, poID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE po_id = $1`, poID); err != nil {
		return err
	}
	const query = `INSERT INTO purchase_order_items
(po_id, item_name, item_code, description, quantity, unit_price, uom,
 tax1_type, tax1_rate, tax1_amount, tax2_type, tax2_rate, tax2_amount,
 total_amount, grand_total, received_quantity, pending_quantity, invoiced_quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	for _, it := range items {
		if _, err := t.tx.Exec(ctx, query, poID, it.ItemName, it.ItemCode, it.Description,
			it.Quantity, it.UnitPrice, it.UOM,
			it.Tax1Type, it.Tax1Rate, it.Tax1Amount, it.Tax2Type, it.Tax2Rate, it.Tax2Amount,
			it.TotalAmount, it.GrandTotal, it.ReceivedQuantity, it.PendingQuantity, it.InvoicedQuantity); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	const query = `UPDATE purchase_orders SET status=$1, status_reason=NULLIF($2,''), updated_at=NOW() WHERE id=$3`
	tag, err := t.tx.Exec(ctx, query, string(status), reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error {
	const query = `UPDATE purchase_orders SET approved_by=$1, approved_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := t.tx.Exec(ctx, query, approvedBy, approvedAt, id)
	return err
}

func (t *txRepo) SetGRNCreated(ctx context.Context, id int64, created bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET is_grn_created=$1, updated_at=NOW() WHERE id=$2`, created, id)
	return err
}

func (t *txRepo) SetInvoiceCreated(ctx context.Context, id int64, created bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET is_invoice_created=$1, updated_at=NOW() WHERE id=$2`, created, id)
	return err
}

func (t *txRepo) UpdateItemProgress(ctx context.Context, itemID int64, received, pending, invoiced decimal.Decimal) error {
	const query = `UPDATE purchase_order_items SET received_quantity=$1, pending_quantity=$2, invoiced_quantity=$3 WHERE id=$4`
	_, err := t.tx.Exec(ctx, query, received, pending, invoiced, itemID)
	return err
}
