package grn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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

const headerColumns = `id, number, status, type, po_id, po_number, supplier_id, supplier_name,
received_date, delivery_challan_no, vehicle_no, transporter_name, status_reason,
approved_by, approved_at, quality_check_status, total_received_value, created_at, updated_at`

func scanHeader(row pgx.Row) (GRN, error) {
	var g GRN
	var status, grnType, quality string
	var approvedBy, statusReason *string
	err := row.Scan(&g.ID, &g.Number, &status, &grnType, &g.POID, &g.PONumber, &g.SupplierID, &g.SupplierName,
		&g.ReceivedDate, &g.DeliveryChallanNo, &g.VehicleNo, &g.TransporterName, &statusReason,
		&approvedBy, &g.ApprovedAt, &quality, &g.TotalReceivedValue, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return GRN{}, err
	}
	g.Status = Status(status)
	g.Type = GRNType(grnType)
	g.QualityCheckStatus = QualityStatus(quality)
	if approvedBy != nil {
		g.ApprovedBy = *approvedBy
	}
	if statusReason != nil {
		g.StatusReason = *statusReason
	}
	return g, nil
}

// Get returns the goods receipt with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (GRN, error) {
	query := fmt.Sprintf("SELECT %s FROM grns WHERE id = $1", headerColumns)
	g, err := scanHeader(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, ErrNotFound
		}
		return GRN{}, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return GRN{}, err
	}
	g.Items = items
	return g, nil
}

func (r *Repository) items(ctx context.Context, grnID int64) ([]Item, error) {
	const query = `SELECT id, grn_id, po_item_id, item_name, item_code, uom,
po_quantity, received_quantity, accepted_quantity, rejected_quantity, pending_quantity,
unit_price, total_value, quality_status, batch_no, serial_no, storage_location, remarks
FROM grn_items WHERE grn_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		var quality string
		if err := rows.Scan(&it.ID, &it.GRNID, &it.POItemID, &it.ItemName, &it.ItemCode, &it.UOM,
			&it.POQuantity, &it.ReceivedQuantity, &it.AcceptedQuantity, &it.RejectedQuantity, &it.PendingQuantity,
			&it.UnitPrice, &it.TotalValue, &quality, &it.BatchNo, &it.SerialNo, &it.StorageLocation, &it.Remarks); err != nil {
			return nil, err
		}
		it.QualityStatus = QualityStatus(quality)
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns a page of goods receipts and the total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]GRN, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(filters.Status))
	}
	if filters.POID != 0 {
		where = append(where, "po_id = "+arg(filters.POID))
	}
	if filters.Search != "" {
		where = append(where, "(number ILIKE "+arg("%"+filters.Search+"%")+" OR po_number ILIKE "+arg("%"+filters.Search+"%")+" OR supplier_name ILIKE "+arg("%"+filters.Search+"%")+")")
	}

	countQuery := "SELECT COUNT(*) FROM grns WHERE " + strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "number", "received_date", "total_received_value", "status":
		sortBy = filters.SortBy
	}
	sortDir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		sortDir = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM grns WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s",
		headerColumns, strings.Join(where, " AND "), sortBy, sortDir, arg(limit), arg(offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var receipts []GRN
	for rows.Next() {
		g, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, g)
	}
	return receipts, total, rows.Err()
}

// NextSequence allocates the next per-fiscal-year document number.
func (r *Repository) NextSequence(ctx context.Context, fiscalYear string) (int64, error) {
	const query = `INSERT INTO document_sequences (doc_type, fiscal_year, last_value)
VALUES ('GRN', $1, 1)
ON CONFLICT (doc_type, fiscal_year)
DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, fiscalYear).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *txRepo) CreateHeader(ctx context.Context, g GRN) (int64, error) {
	const query = `INSERT INTO grns
(number, status, type, po_id, po_number, supplier_id, supplier_name, received_date,
 delivery_challan_no, vehicle_no, transporter_name, quality_check_status, total_received_value,
 created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, g.Number, string(g.Status), string(g.Type), g.POID, g.PONumber,
		g.SupplierID, g.SupplierName, g.ReceivedDate, g.DeliveryChallanNo, g.VehicleNo, g.TransporterName,
		string(g.QualityCheckStatus), g.TotalReceivedValue).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateHeader(ctx context.Context, g GRN) error {
	const query = `UPDATE grns SET
type=$1, received_date=$2, delivery_challan_no=$3, vehicle_no=$4, transporter_name=$5,
total_received_value=$6, updated_at=NOW()
WHERE id=$7`
	_, err := t.tx.Exec(ctx, query, string(g.Type), g.ReceivedDate, g.DeliveryChallanNo, g.VehicleNo,
		g.TransporterName, g.TotalReceivedValue, g.ID)
	return err
}

func (t *txRepo) ReplaceItems(ctx context.Context, grnID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM grn_items WHERE grn_id = $1`, grnID); err != nil {
		return err
	}
	const query = `INSERT INTO grn_items
(grn_id, po_item_id, item_name, item_code, uom, po_quantity, received_quantity,
 accepted_quantity, rejected_quantity, pending_quantity, unit_price, total_value,
 quality_status, batch_no, serial_no, storage_location, remarks)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	for _, it := range items {
		if _, err := t.tx.Exec(ctx, query, grnID, it.POItemID, it.ItemName, it.ItemCode, it.UOM,
			it.POQuantity, it.ReceivedQuantity, it.AcceptedQuantity, it.RejectedQuantity, it.PendingQuantity,
			it.UnitPrice, it.TotalValue, string(it.QualityStatus), it.BatchNo, it.SerialNo,
			it.StorageLocation, it.Remarks); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	const query = `UPDATE grns SET status=$1, status_reason=NULLIF($2,''), updated_at=NOW() WHERE id=$3`
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
	const query = `UPDATE grns SET approved_by=$1, approved_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := t.tx.Exec(ctx, query, approvedBy, approvedAt, id)
	return err
}

func (t *txRepo) SetQualityStatus(ctx context.Context, id int64, status QualityStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE grns SET quality_check_status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return err
}
