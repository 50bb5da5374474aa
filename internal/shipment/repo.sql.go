package shipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cargotrail/cargotrail/internal/platform/db"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = fmt.Errorf("shipment: %w", shared.ErrNotFound)

const shipmentColumns = `id, shipment_number, COALESCE(mode_of_transport,''), COALESCE(shipping_line,''), COALESCE(bl_number,''),
COALESCE(pod,''), COALESCE(destination_country,''), COALESCE(origin_port,''), COALESCE(origin_country,''),
COALESCE(freight_cost,0), COALESCE(saber_saddad,0), COALESCE(custom_duties,0), COALESCE(demurrage_charges,0), COALESCE(penalties,0),
COALESCE(other_charges,0), COALESCE(yard_charges,0), COALESCE(do_port_charges,0), COALESCE(clearance_transport_charges,0),
COALESCE(inspection_charges,0), COALESCE(mawani_charges,0), COALESCE(value_dec_by_cc,0), COALESCE(cost_remarks,''),
COALESCE(cc_agent,''), COALESCE(cc_agent_invoice,''), COALESCE(biyan_number,''), COALESCE(saddad_number,''),
container_deadline, ecc_date, eta_wh, eta_origin, etd_origin, eta_destination, etd_destination,
COALESCE(created_by,''), created_at, COALESCE(last_updated_by,''), updated_at`

func scanShipment(row pgx.Row) (Shipment, error) {
	var s Shipment
	err := row.Scan(&s.ID, &s.ShipmentNumber, &s.ModeOfTransport, &s.ShippingLine, &s.BLNumber,
		&s.POD, &s.DestinationCountry, &s.OriginPort, &s.OriginCountry,
		&s.Costs.FreightCost, &s.Costs.SaberSADDAD, &s.Costs.CustomDuties, &s.Costs.DemurrageCharges, &s.Costs.Penalties,
		&s.Costs.OtherCharges, &s.Costs.YardCharges, &s.Costs.DOPortCharges, &s.Costs.ClearanceTransportCharges,
		&s.Costs.InspectionCharges, &s.Costs.MAWANICharges, &s.ValueDecByCC, &s.CostRemarks,
		&s.CCAgent, &s.CcAgentInvoice, &s.BiyanNumber, &s.SADDADNumber,
		&s.ContainerDeadline, &s.ECCDate, &s.ETAWH, &s.ETAOrigin, &s.ETDOrigin, &s.ETADestination, &s.ETDDestination,
		&s.CreatedBy, &s.CreatedAt, &s.LastUpdatedBy, &s.UpdatedAt)
	return s, err
}

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
	InsertShipment(ctx context.Context, s Shipment) (int64, error)
	InsertPOLine(ctx context.Context, line POLine) (int64, error)
	DecrementBalance(ctx context.Context, poLineID, qty int64) (bool, error)
	RestoreBalance(ctx context.Context, poLineID, qty int64) error
	POLinesForShipment(ctx context.Context, shipmentID int64) ([]POLine, error)
	GetPOLine(ctx context.Context, lineID int64) (POLine, error)
	DeletePOLine(ctx context.Context, lineID int64) error
	DeletePOLinesForShipment(ctx context.Context, shipmentID int64) error
	DeleteShipment(ctx context.Context, shipmentID int64) error
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

func (t *txRepo) InsertShipment(ctx context.Context, s Shipment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO shipments (shipment_number, mode_of_transport, shipping_line, bl_number, pod, destination_country, origin_port, origin_country,
	cc_agent, container_deadline, ecc_date, eta_wh, eta_origin, etd_origin, eta_destination, etd_destination, created_by, last_updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
RETURNING id`,
		s.ShipmentNumber, s.ModeOfTransport, s.ShippingLine, s.BLNumber, s.POD, s.DestinationCountry, s.OriginPort, s.OriginCountry,
		s.CCAgent, s.ContainerDeadline, s.ECCDate, s.ETAWH, s.ETAOrigin, s.ETDOrigin, s.ETADestination, s.ETDDestination, s.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertPOLine(ctx context.Context, line POLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO shipment_po_lines (shipment_id, po_line_id, qty_shipped, ecc_date, last_updated_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		line.ShipmentID, line.POLineID, line.QtyShipped, line.ECCDate, line.LastUpdatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: po line %d is already on this shipment", shared.ErrConflict, line.POLineID)
		}
		return 0, err
	}
	return id, nil
}

// DecrementBalance claims quantity from a PO line. The conditional UPDATE is
// the whole balance invariant: zero rows means the balance was insufficient
// and nothing changed.
func (t *txRepo) DecrementBalance(ctx context.Context, poLineID, qty int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
UPDATE purchase_order_lines
SET balance_qty = balance_qty - $1
WHERE id = $2 AND balance_qty >= $1`, qty, poLineID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) RestoreBalance(ctx context.Context, poLineID, qty int64) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE purchase_order_lines
SET balance_qty = balance_qty + $1
WHERE id = $2`, qty, poLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shipment: restore balance: po line %d missing", poLineID)
	}
	return nil
}

func (t *txRepo) POLinesForShipment(ctx context.Context, shipmentID int64) ([]POLine, error) {
	return scanPOLines(t.tx.Query(ctx, `
SELECT id, shipment_id, po_line_id, qty_shipped, ecc_date, COALESCE(last_updated_by,''), updated_at
FROM shipment_po_lines WHERE shipment_id=$1 ORDER BY id`, shipmentID))
}

func (t *txRepo) GetPOLine(ctx context.Context, lineID int64) (POLine, error) {
	var line POLine
	err := t.tx.QueryRow(ctx, `
SELECT id, shipment_id, po_line_id, qty_shipped, ecc_date, COALESCE(last_updated_by,''), updated_at
FROM shipment_po_lines WHERE id=$1`, lineID).
		Scan(&line.ID, &line.ShipmentID, &line.POLineID, &line.QtyShipped, &line.ECCDate, &line.LastUpdatedBy, &line.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return POLine{}, ErrNotFound
	}
	return line, err
}

func (t *txRepo) DeletePOLine(ctx context.Context, lineID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shipment_po_lines WHERE id=$1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeletePOLinesForShipment(ctx context.Context, shipmentID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM shipment_po_lines WHERE shipment_id=$1`, shipmentID)
	return err
}

func (t *txRepo) DeleteShipment(ctx context.Context, shipmentID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shipments WHERE id=$1`, shipmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPOLines(rows pgx.Rows, err error) ([]POLine, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.ShipmentID, &line.POLineID, &line.QtyShipped, &line.ECCDate, &line.LastUpdatedBy, &line.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// ListFilters narrows shipment listings.
type ListFilters struct {
	Brands []string
	Mode   string
	Search string
}

// List returns shipments matching filters, newest first. Brand scope goes
// through the PO chain since shipments carry no brand of their own.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Shipment, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	if len(filters.Brands) > 0 {
		where += fmt.Sprintf(` AND EXISTS (
 SELECT 1 FROM shipment_po_lines sl
 JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
 JOIN purchase_orders p ON p.id = pl.po_id
 WHERE sl.shipment_id = shipments.id AND p.brand = ANY($%d))`, idx)
		args = append(args, filters.Brands)
		idx++
	}
	if filters.Mode != "" {
		where += fmt.Sprintf(" AND mode_of_transport = $%d", idx)
		args = append(args, filters.Mode)
		idx++
	}
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (shipment_number ILIKE $%d OR bl_number ILIKE $%d)", idx, idx)
		args = append(args, "%"+filters.Search+"%")
		idx++
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + shipmentColumns + ` FROM shipments` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Get returns a shipment and its PO lines.
func (r *Repository) Get(ctx context.Context, id int64) (Shipment, []POLine, error) {
	s, err := scanShipment(r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, nil, ErrNotFound
		}
		return Shipment{}, nil, err
	}
	lines, err := scanPOLines(r.pool.Query(ctx, `
SELECT id, shipment_id, po_line_id, qty_shipped, ecc_date, COALESCE(last_updated_by,''), updated_at
FROM shipment_po_lines WHERE shipment_id=$1 ORDER BY id`, id))
	if err != nil {
		return Shipment{}, nil, err
	}
	return s, lines, nil
}

// NumberExists reports whether a shipment number is already taken.
func (r *Repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE shipment_number=$1)`, number).Scan(&exists)
	return exists, err
}

// POLineExists reports whether a (shipment, po line) pair is already linked.
func (r *Repository) POLineExists(ctx context.Context, shipmentID, poLineID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipment_po_lines WHERE shipment_id=$1 AND po_line_id=$2)`, shipmentID, poLineID).Scan(&exists)
	return exists, err
}

// ContainerCount counts containers assigned to the shipment.
func (r *Repository) ContainerCount(ctx context.Context, shipmentID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM containers WHERE shipment_id=$1`, shipmentID).Scan(&n)
	return n, err
}

// ContainerLineCount counts container lines drawing on one shipment PO line.
func (r *Repository) ContainerLineCount(ctx context.Context, shipmentPOLineID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM container_lines WHERE shipment_po_line_id=$1`, shipmentPOLineID).Scan(&n)
	return n, err
}

// UpdateDetails updates header, milestone and reference fields.
func (r *Repository) UpdateDetails(ctx context.Context, s Shipment) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE shipments SET
	mode_of_transport=$2, shipping_line=$3, bl_number=$4, pod=$5, destination_country=$6,
	origin_port=$7, origin_country=$8, cc_agent=$9, cc_agent_invoice=$10, biyan_number=$11, saddad_number=$12,
	container_deadline=$13, ecc_date=$14, eta_wh=$15, eta_origin=$16, etd_origin=$17, eta_destination=$18, etd_destination=$19,
	last_updated_by=$20, updated_at=NOW()
WHERE id=$1`,
		s.ID, s.ModeOfTransport, s.ShippingLine, s.BLNumber, s.POD, s.DestinationCountry,
		s.OriginPort, s.OriginCountry, s.CCAgent, s.CcAgentInvoice, s.BiyanNumber, s.SADDADNumber,
		s.ContainerDeadline, s.ECCDate, s.ETAWH, s.ETAOrigin, s.ETDOrigin, s.ETADestination, s.ETDDestination,
		s.LastUpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCosts replaces the cost columns.
func (r *Repository) UpdateCosts(ctx context.Context, id int64, costs Costs, valueDecByCC decimal.Decimal, remarks, actor string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE shipments SET
	freight_cost=$2, saber_saddad=$3, custom_duties=$4, demurrage_charges=$5, penalties=$6,
	other_charges=$7, yard_charges=$8, do_port_charges=$9, clearance_transport_charges=$10,
	inspection_charges=$11, mawani_charges=$12, value_dec_by_cc=$13, cost_remarks=$14,
	last_updated_by=$15, updated_at=NOW()
WHERE id=$1`,
		id, costs.FreightCost, costs.SaberSADDAD, costs.CustomDuties, costs.DemurrageCharges, costs.Penalties,
		costs.OtherCharges, costs.YardCharges, costs.DOPortCharges, costs.ClearanceTransportCharges,
		costs.InspectionCharges, costs.MAWANICharges, valueDecByCC, remarks, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateClearanceNumbers sets Biyan/SADDAD references when provided.
func (r *Repository) UpdateClearanceNumbers(ctx context.Context, id int64, biyan, saddad *string, actor string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE shipments SET
	biyan_number = COALESCE($2, biyan_number),
	saddad_number = COALESCE($3, saddad_number),
	last_updated_by=$4, updated_at=NOW()
WHERE id=$1`, id, biyan, saddad, actor)
	return err
}

// Invoices

// ListInvoices returns invoices for a shipment.
func (r *Repository) ListInvoices(ctx context.Context, shipmentID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, shipment_id, invoice_number, invoice_value, COALESCE(document_path,''), created_by, created_at, updated_by, updated_at
FROM invoices WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.ShipmentID, &inv.InvoiceNumber, &inv.InvoiceValue, &inv.DocumentPath, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedBy, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// InsertInvoice adds an invoice.
func (r *Repository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO invoices (shipment_id, invoice_number, invoice_value, document_path, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id`, inv.ShipmentID, inv.InvoiceNumber, inv.InvoiceValue, inv.DocumentPath, inv.CreatedBy).Scan(&id)
	return id, err
}

// UpdateInvoice updates number, value and document path.
func (r *Repository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE invoices SET invoice_number=$2, invoice_value=$3, document_path=$4, updated_by=$5, updated_at=NOW()
WHERE id=$1`, inv.ID, inv.InvoiceNumber, inv.InvoiceValue, inv.DocumentPath, inv.UpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInvoice removes an invoice.
func (r *Repository) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Non-PO items

// ListNonPOItems returns non-PO cargo for a shipment.
func (r *Repository) ListNonPOItems(ctx context.Context, shipmentID int64) ([]NonPOItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, shipment_id, supplier, po_number, sap_item_line, article, qty, value, brand
FROM non_po_items WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NonPOItem
	for rows.Next() {
		var item NonPOItem
		if err := rows.Scan(&item.ID, &item.ShipmentID, &item.Supplier, &item.PONumber, &item.SAPItemLine, &item.Article, &item.Qty, &item.Value, &item.Brand); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// InsertNonPOItem adds a non-PO item.
func (r *Repository) InsertNonPOItem(ctx context.Context, item NonPOItem) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO non_po_items (shipment_id, supplier, po_number, sap_item_line, article, qty, value, brand)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`, item.ShipmentID, item.Supplier, item.PONumber, item.SAPItemLine, item.Article, item.Qty, item.Value, item.Brand).Scan(&id)
	return id, err
}

// DeleteNonPOItem removes a non-PO item.
func (r *Repository) DeleteNonPOItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM non_po_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
