package po

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrail/cargotrail/internal/platform/db"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = fmt.Errorf("po: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertPO(ctx context.Context, p PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteContainerLinesForPO(ctx context.Context, poID int64) error
	DeleteShipmentLinesForPO(ctx context.Context, poID int64) error
	DeleteLinesForPO(ctx context.Context, poID int64) error
	DeletePO(ctx context.Context, poID int64) error
	DeleteContainerLinesForLine(ctx context.Context, lineID int64) error
	DeleteShipmentLinesForLine(ctx context.Context, lineID int64) error
	DeleteLine(ctx context.Context, lineID int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) InsertPO(ctx context.Context, p PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO purchase_orders (po_number, site, supplier, brand, po_date, lc_status, lc_number, lc_date, incoterm, last_updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		p.PONumber, p.Site, p.Supplier, p.Brand, p.PODate, p.LCStatus, p.LCNumber, p.LCDate, p.Incoterm, p.LastUpdatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO purchase_order_lines (po_id, sap_item_line, article, qty, balance_qty, total_value, category_mapping_id, last_updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		line.POID, line.SAPItemLine, line.Article, line.Qty, line.BalanceQty, line.TotalValue, line.CategoryMappingID, line.LastUpdatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) DeleteContainerLinesForPO(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `
DELETE FROM container_lines cl
USING shipment_po_lines sl, purchase_order_lines pl
WHERE cl.shipment_po_line_id = sl.id AND sl.po_line_id = pl.id AND pl.po_id = $1`, poID)
	return err
}

func (t *txRepo) DeleteShipmentLinesForPO(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `
DELETE FROM shipment_po_lines sl
USING purchase_order_lines pl
WHERE sl.po_line_id = pl.id AND pl.po_id = $1`, poID)
	return err
}

func (t *txRepo) DeleteLinesForPO(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE po_id=$1`, poID)
	return err
}

func (t *txRepo) DeletePO(ctx context.Context, poID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, poID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteContainerLinesForLine(ctx context.Context, lineID int64) error {
	_, err := t.tx.Exec(ctx, `
DELETE FROM container_lines cl
USING shipment_po_lines sl
WHERE cl.shipment_po_line_id = sl.id AND sl.po_line_id = $1`, lineID)
	return err
}

func (t *txRepo) DeleteShipmentLinesForLine(ctx context.Context, lineID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM shipment_po_lines WHERE po_line_id=$1`, lineID)
	return err
}

func (t *txRepo) DeleteLine(ctx context.Context, lineID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE id=$1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilters narrows PO listings.
type ListFilters struct {
	Brands   []string
	Supplier string
	Search   string
}

// ListPOs returns purchase orders matching filters, newest first.
func (r *Repository) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	if len(filters.Brands) > 0 {
		where += fmt.Sprintf(" AND brand = ANY($%d)", idx)
		args = append(args, filters.Brands)
		idx++
	}
	if filters.Supplier != "" {
		where += fmt.Sprintf(" AND supplier = $%d", idx)
		args = append(args, filters.Supplier)
		idx++
	}
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (po_number ILIKE $%d OR supplier ILIKE $%d)", idx, idx)
		args = append(args, "%"+filters.Search+"%")
		idx++
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `
SELECT id, po_number, site, supplier, brand, po_date, COALESCE(lc_status,''), COALESCE(lc_number,''), lc_date, COALESCE(incoterm,''), COALESCE(last_updated_by,''), created_at, updated_at
FROM purchase_orders` + where + fmt.Sprintf(" ORDER BY po_date DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		var p PurchaseOrder
		if err := rows.Scan(&p.ID, &p.PONumber, &p.Site, &p.Supplier, &p.Brand, &p.PODate, &p.LCStatus, &p.LCNumber, &p.LCDate, &p.Incoterm, &p.LastUpdatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetPO returns a purchase order and its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []Line, error) {
	var p PurchaseOrder
	err := r.pool.QueryRow(ctx, `
SELECT id, po_number, site, supplier, brand, po_date, COALESCE(lc_status,''), COALESCE(lc_number,''), lc_date, COALESCE(incoterm,''), COALESCE(last_updated_by,''), created_at, updated_at
FROM purchase_orders WHERE id=$1`, id).
		Scan(&p.ID, &p.PONumber, &p.Site, &p.Supplier, &p.Brand, &p.PODate, &p.LCStatus, &p.LCNumber, &p.LCDate, &p.Incoterm, &p.LastUpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, po_id, COALESCE(sap_item_line,''), article, qty, balance_qty, total_value, category_mapping_id, COALESCE(last_updated_by,'')
FROM purchase_order_lines WHERE po_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.POID, &line.SAPItemLine, &line.Article, &line.Qty, &line.BalanceQty, &line.TotalValue, &line.CategoryMappingID, &line.LastUpdatedBy); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, nil, err
	}
	return p, lines, nil
}

// ListLinesWithBalance returns lines with available balance, brand-scoped
// when brands is non-nil.
func (r *Repository) ListLinesWithBalance(ctx context.Context, brands []string) ([]LineWithBalance, error) {
	query := `
SELECT pl.id, pl.po_id, COALESCE(pl.sap_item_line,''), pl.article, pl.qty, pl.balance_qty, pl.total_value, pl.category_mapping_id, COALESCE(pl.last_updated_by,''),
       p.po_number, p.brand, p.supplier, p.po_date
FROM purchase_order_lines pl
JOIN purchase_orders p ON p.id = pl.po_id
WHERE pl.balance_qty > 0`
	args := []any{}
	if len(brands) > 0 {
		query += ` AND p.brand = ANY($1)`
		args = append(args, brands)
	}
	query += ` ORDER BY p.po_date DESC, pl.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LineWithBalance
	for rows.Next() {
		var l LineWithBalance
		if err := rows.Scan(&l.ID, &l.POID, &l.SAPItemLine, &l.Article, &l.Qty, &l.BalanceQty, &l.TotalValue, &l.CategoryMappingID, &l.LastUpdatedBy, &l.PONumber, &l.Brand, &l.Supplier, &l.PODate); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReferencingShipments lists shipment numbers whose lines draw on the PO.
func (r *Repository) ReferencingShipments(ctx context.Context, poID int64) ([]string, error) {
	return r.scanStrings(ctx, `
SELECT DISTINCT s.shipment_number
FROM shipments s
JOIN shipment_po_lines sl ON sl.shipment_id = s.id
JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
WHERE pl.po_id = $1
ORDER BY s.shipment_number`, poID)
}

// ReferencingContainers lists container numbers holding quantity from the PO.
func (r *Repository) ReferencingContainers(ctx context.Context, poID int64) ([]string, error) {
	return r.scanStrings(ctx, `
SELECT DISTINCT c.container_number
FROM containers c
JOIN container_lines cl ON cl.container_id = c.id
JOIN shipment_po_lines sl ON sl.id = cl.shipment_po_line_id
JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
WHERE pl.po_id = $1
ORDER BY c.container_number`, poID)
}

// LineReferencingShipments lists shipment numbers drawing on one PO line.
func (r *Repository) LineReferencingShipments(ctx context.Context, lineID int64) ([]string, error) {
	return r.scanStrings(ctx, `
SELECT DISTINCT s.shipment_number
FROM shipments s
JOIN shipment_po_lines sl ON sl.shipment_id = s.id
WHERE sl.po_line_id = $1
ORDER BY s.shipment_number`, lineID)
}

// LineReferencingContainers lists container numbers holding quantity from one PO line.
func (r *Repository) LineReferencingContainers(ctx context.Context, lineID int64) ([]string, error) {
	return r.scanStrings(ctx, `
SELECT DISTINCT c.container_number
FROM containers c
JOIN container_lines cl ON cl.container_id = c.id
JOIN shipment_po_lines sl ON sl.id = cl.shipment_po_line_id
WHERE sl.po_line_id = $1
ORDER BY c.container_number`, lineID)
}

func (r *Repository) scanStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ExistingPONumbers returns which of the given numbers already exist.
func (r *Repository) ExistingPONumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	if len(numbers) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT po_number FROM purchase_orders WHERE po_number = ANY($1)`, numbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = struct{}{}
	}
	return out, rows.Err()
}

// BrandTypeMap loads the brand-type code to brand-name mapping.
func (r *Repository) BrandTypeMap(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT brand_type, brand_name FROM brand_types`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var t, name string
		if err := rows.Scan(&t, &name); err != nil {
			return nil, err
		}
		out[t] = name
	}
	return out, rows.Err()
}

// CategoryPrefixMap loads category code prefixes to mapping ids.
func (r *Repository) CategoryPrefixMap(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT cat_code, id FROM category_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var code string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, err
		}
		out[code] = id
	}
	return out, rows.Err()
}

// InsertUploadRows stages spreadsheet rows for later import.
func (r *Repository) InsertUploadRows(ctx context.Context, uploadRows []UploadRow) error {
	for _, u := range uploadRows {
		_, err := r.pool.Exec(ctx, `
INSERT INTO po_uploads (purchase_order, item, po_type, pgr, vendor_supplying_site, article, short_text, mdse_cat, site, sloc, doc_date, quantity, net_price, qty_to_be_delivered, value_to_be_delivered, upload_batch, uploaded_by, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			u.PurchaseOrder, u.Item, u.Type, u.PGR, u.VendorSupplyingSite, u.Article, u.ShortText, u.MdseCat, u.Site, u.SLoc, u.DocDate, u.Quantity, u.NetPrice, u.QtyToBeDelivered, u.ValueToBeDelivered, u.UploadBatch, u.UploadedBy, u.UploadedAt)
		if err != nil {
			return fmt.Errorf("po: stage upload row %s/%s: %w", u.PurchaseOrder, u.Item, err)
		}
	}
	return nil
}

// UploadRowsForBatch returns staged rows for a batch in upload order.
func (r *Repository) UploadRowsForBatch(ctx context.Context, batchID string) ([]UploadRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, purchase_order, item, po_type, pgr, vendor_supplying_site, article, COALESCE(short_text,''), mdse_cat, site, COALESCE(sloc,''), doc_date, quantity, net_price, qty_to_be_delivered, value_to_be_delivered, upload_batch, uploaded_by, uploaded_at
FROM po_uploads WHERE upload_batch=$1 ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UploadRow
	for rows.Next() {
		var u UploadRow
		if err := rows.Scan(&u.ID, &u.PurchaseOrder, &u.Item, &u.Type, &u.PGR, &u.VendorSupplyingSite, &u.Article, &u.ShortText, &u.MdseCat, &u.Site, &u.SLoc, &u.DocDate, &u.Quantity, &u.NetPrice, &u.QtyToBeDelivered, &u.ValueToBeDelivered, &u.UploadBatch, &u.UploadedBy, &u.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListBatches summarises staged batches, newest first.
func (r *Repository) ListBatches(ctx context.Context) ([]BatchSummary, error) {
	rows, err := r.pool.Query(ctx, `
SELECT upload_batch, COUNT(DISTINCT purchase_order), MIN(uploaded_at), uploaded_by
FROM po_uploads
GROUP BY upload_batch, uploaded_by
ORDER BY MIN(uploaded_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BatchSummary
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.BatchID, &b.UniquePOs, &b.UploadedAt, &b.UploadedBy); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
