package reports

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the report projections against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// latestStatus resolves the current status of one entity track. Ties on
// status_date go to the highest id.
const latestStatus = `
SELECT sh.status FROM status_history sh
WHERE sh.entity_type = %s AND sh.entity_id = %s
ORDER BY sh.status_date DESC, sh.id DESC LIMIT 1`

func latestStatusExpr(kind, idColumn string) string {
	return "(" + fmt.Sprintf(latestStatus, kind, idColumn) + ")"
}

// TrackingRows walks the full PO to container chain in one query, left
// joining each downstream level so POs without shipments still appear.
func (r *Repository) TrackingRows(ctx context.Context, f TrackingFilters) ([]TrackingRow, int64, error) {
	where := " WHERE true"
	args := []any{}
	idx := 1
	if len(f.Brands) > 0 {
		where += fmt.Sprintf(" AND p.brand = ANY($%d)", idx)
		args = append(args, f.Brands)
		idx++
	}
	if f.Supplier != "" {
		where += fmt.Sprintf(" AND p.supplier = $%d", idx)
		args = append(args, f.Supplier)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (p.po_number ILIKE $%d OR s.shipment_number ILIKE $%d OR c.container_number ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	from := `
FROM purchase_orders p
JOIN purchase_order_lines pl ON pl.po_id = p.id
LEFT JOIN shipment_po_lines sl ON sl.po_line_id = pl.id
LEFT JOIN shipments s ON s.id = sl.shipment_id
LEFT JOIN container_lines cl ON cl.shipment_po_line_id = sl.id
LEFT JOIN containers c ON c.id = cl.container_id`

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
SELECT p.id, pl.id, sl.shipment_id, cl.shipment_po_line_id, cl.container_id,
	p.po_number, COALESCE(p.supplier,''), COALESCE(p.brand,''), p.po_date, COALESCE(p.incoterm,''),
	COALESCE(pl.article,''), COALESCE(cm.cat_name,''), pl.qty, pl.balance_qty, COALESCE(pl.total_value,0),
	COALESCE(s.shipment_number,''), COALESCE(s.mode_of_transport,''), COALESCE(s.shipping_line,''), COALESCE(s.bl_number,''),
	sl.qty_shipped, s.eta_wh, s.eta_destination,
	COALESCE(c.container_number,''), cl.qty_in_container, c.ata_wh,
	COALESCE(` + latestStatusExpr("'Purchase Order'", "p.id") + `, ''),
	COALESCE(` + latestStatusExpr("'Shipment'", "s.id") + `, ''),
	COALESCE(` + latestStatusExpr("'Container'", "c.id") + `, ''),
	COALESCE(` + latestStatusExpr("'Planed-Container'", "c.id") + `, '')` +
		from + `
LEFT JOIN category_mappings cm ON cm.id = pl.category_mapping_id` + where +
		fmt.Sprintf(" ORDER BY p.po_date DESC, p.id DESC, pl.id, sl.id, cl.id LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []TrackingRow
	for rows.Next() {
		var t TrackingRow
		if err := rows.Scan(&t.POID, &t.POLineID, &t.ShipmentID, &t.ShipmentPOLineID, &t.ContainerID,
			&t.PONumber, &t.Supplier, &t.Brand, &t.PODate, &t.Incoterm,
			&t.Article, &t.Category, &t.Qty, &t.BalanceQty, &t.TotalValue,
			&t.ShipmentNumber, &t.ModeOfTransport, &t.ShippingLine, &t.BLNumber,
			&t.QtyShipped, &t.ETAWH, &t.ETADestination,
			&t.ContainerNumber, &t.QtyInContainer, &t.ATAWH,
			&t.POStatus, &t.ShipmentStatus, &t.ContainerStatus, &t.PlannedContainerStatus); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

const costSumColumns = `
COALESCE(SUM(s.freight_cost),0) AS freight_cost, COALESCE(SUM(s.saber_saddad),0) AS saber_saddad,
COALESCE(SUM(s.custom_duties),0) AS custom_duties, COALESCE(SUM(s.demurrage_charges),0) AS demurrage_charges,
COALESCE(SUM(s.penalties),0) AS penalties, COALESCE(SUM(s.other_charges),0) AS other_charges,
COALESCE(SUM(s.yard_charges),0) AS yard_charges, COALESCE(SUM(s.do_port_charges),0) AS do_port_charges,
COALESCE(SUM(s.clearance_transport_charges),0) AS clearance_transport_charges,
COALESCE(SUM(s.inspection_charges),0) AS inspection_charges, COALESCE(SUM(s.mawani_charges),0) AS mawani_charges`

// CostByBrand sums each shipment's expenses once, attributed to the brand of
// the POs it carries. A shipment carrying several brands counts under each.
func (r *Repository) CostByBrand(ctx context.Context, brands []string) ([]CostByBrandRow, error) {
	where := ""
	args := []any{}
	if len(brands) > 0 {
		where = " WHERE p.brand = ANY($1)"
		args = append(args, brands)
	}
	query := `
WITH ship_brands AS (
	SELECT DISTINCT s.id AS shipment_id, p.brand
	FROM shipments s
	JOIN shipment_po_lines sl ON sl.shipment_id = s.id
	JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
	JOIN purchase_orders p ON p.id = pl.po_id` + where + `
), costs AS (
	SELECT sb.brand, ` + costSumColumns + `, COUNT(DISTINCT s.id) AS num_shipments
	FROM ship_brands sb
	JOIN shipments s ON s.id = sb.shipment_id
	GROUP BY sb.brand
), cont AS (
	SELECT sb.brand, COUNT(DISTINCT c.id) AS num_containers
	FROM ship_brands sb
	LEFT JOIN containers c ON c.shipment_id = sb.shipment_id
	GROUP BY sb.brand
), arts AS (
	SELECT sb.brand, COALESCE(SUM(sl.qty_shipped), 0) AS num_articles
	FROM ship_brands sb
	JOIN shipment_po_lines sl ON sl.shipment_id = sb.shipment_id
	GROUP BY sb.brand
)
SELECT costs.*, COALESCE(cont.num_containers, 0), COALESCE(arts.num_articles, 0)
FROM costs
LEFT JOIN cont USING (brand)
LEFT JOIN arts USING (brand)
ORDER BY costs.brand`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostByBrandRow
	for rows.Next() {
		var row CostByBrandRow
		if err := rows.Scan(&row.Brand,
			&row.FreightCost, &row.SaberSADDAD, &row.CustomDuties,
			&row.DemurrageCharges, &row.Penalties, &row.OtherCharges,
			&row.YardCharges, &row.DOPortCharges, &row.ClearanceTransportCharges,
			&row.InspectionCharges, &row.MAWANICharges,
			&row.NumShipments, &row.NumContainers, &row.NumArticles); err != nil {
			return nil, err
		}
		row.TotalExpense = sumCosts(row)
		if row.NumContainers > 0 {
			row.CostPerContainer = row.TotalExpense.DivRound(decimalFromInt(row.NumContainers), 2)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CostByShipment breaks expenses down per shipment number.
func (r *Repository) CostByShipment(ctx context.Context, shipmentNumbers []string) ([]CostByShipmentRow, error) {
	where := ""
	args := []any{}
	if len(shipmentNumbers) > 0 {
		where = " WHERE s.shipment_number = ANY($1)"
		args = append(args, shipmentNumbers)
	}
	query := `
SELECT s.shipment_number, COALESCE(s.bl_number,''), ` + costSumColumns + `
FROM shipments s` + where + `
GROUP BY s.id, s.shipment_number, s.bl_number
ORDER BY s.shipment_number`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostByShipmentRow
	for rows.Next() {
		var row CostByShipmentRow
		if err := rows.Scan(&row.ShipmentNumber, &row.BLNumber,
			&row.FreightCost, &row.SaberSADDAD, &row.CustomDuties,
			&row.DemurrageCharges, &row.Penalties, &row.OtherCharges,
			&row.YardCharges, &row.DOPortCharges, &row.ClearanceTransportCharges,
			&row.InspectionCharges, &row.MAWANICharges); err != nil {
			return nil, err
		}
		row.TotalExpense = row.FreightCost.Add(row.SaberSADDAD).Add(row.CustomDuties).
			Add(row.DemurrageCharges).Add(row.Penalties).Add(row.OtherCharges).
			Add(row.YardCharges).Add(row.DOPortCharges).Add(row.ClearanceTransportCharges).
			Add(row.InspectionCharges).Add(row.MAWANICharges)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LeadTimeByBrand averages day spans between chain milestones per brand.
func (r *Repository) LeadTimeByBrand(ctx context.Context, brands []string) ([]LeadTimeRow, error) {
	where := ""
	args := []any{}
	if len(brands) > 0 {
		where = " AND p.brand = ANY($1)"
		args = append(args, brands)
	}
	query := `
SELECT p.brand,
	COALESCE(AVG(EXTRACT(EPOCH FROM (s.created_at - p.po_date)) / 86400) FILTER (WHERE s.created_at IS NOT NULL AND p.po_date IS NOT NULL), 0),
	COALESCE(AVG(EXTRACT(EPOCH FROM (c.ata_dest_port - s.created_at)) / 86400) FILTER (WHERE c.ata_dest_port IS NOT NULL AND s.created_at IS NOT NULL), 0),
	COALESCE(AVG(EXTRACT(EPOCH FROM (c.ata_wh - c.ata_dest_port)) / 86400) FILTER (WHERE c.ata_wh IS NOT NULL AND c.ata_dest_port IS NOT NULL), 0),
	COALESCE(AVG(EXTRACT(EPOCH FROM (c.ata_wh - p.po_date)) / 86400) FILTER (WHERE c.ata_wh IS NOT NULL AND p.po_date IS NOT NULL), 0)
FROM purchase_orders p
JOIN purchase_order_lines pl ON pl.po_id = p.id
LEFT JOIN shipment_po_lines sl ON sl.po_line_id = pl.id
LEFT JOIN shipments s ON s.id = sl.shipment_id
LEFT JOIN container_lines cl ON cl.shipment_po_line_id = sl.id
LEFT JOIN containers c ON c.id = cl.container_id
WHERE p.brand <> ''` + where + `
GROUP BY p.brand
ORDER BY p.brand`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeadTimeRow
	for rows.Next() {
		var row LeadTimeRow
		if err := rows.Scan(&row.Brand, &row.POToShipmentDays, &row.ShipmentToPortDays,
			&row.PortToWarehouseDays, &row.POToWarehouseDays); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FulfillmentByBrand compares ordered qty against delivered and in-transit
// shipped qty per brand. Delivered qty is the contained quantity of
// containers whose latest status is Delivered.
func (r *Repository) FulfillmentByBrand(ctx context.Context, brands []string) ([]FulfillmentRow, error) {
	where := ""
	args := []any{}
	if len(brands) > 0 {
		where = " AND p.brand = ANY($1)"
		args = append(args, brands)
	}
	query := `
WITH latest_container AS (
	SELECT DISTINCT ON (entity_id) entity_id, status
	FROM status_history
	WHERE entity_type = 'Container'
	ORDER BY entity_id, status_date DESC, id DESC
), line_totals AS (
	SELECT p.brand, SUM(pl.qty) AS total_qty, SUM(pl.balance_qty) AS open_qty
	FROM purchase_orders p
	JOIN purchase_order_lines pl ON pl.po_id = p.id
	WHERE p.brand <> ''` + where + `
	GROUP BY p.brand
), contained AS (
	SELECT p.brand,
		SUM(CASE WHEN lc.status = 'Delivered' THEN cl.qty_in_container ELSE 0 END) AS delivered_qty,
		SUM(CASE WHEN lc.status IS DISTINCT FROM 'Delivered' THEN cl.qty_in_container ELSE 0 END) AS intransit_qty
	FROM container_lines cl
	JOIN shipment_po_lines sl ON sl.id = cl.shipment_po_line_id
	JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
	JOIN purchase_orders p ON p.id = pl.po_id
	LEFT JOIN latest_container lc ON lc.entity_id = cl.container_id
	WHERE p.brand <> ''` + where + `
	GROUP BY p.brand
)
SELECT lt.brand, lt.total_qty, lt.open_qty, COALESCE(c.delivered_qty, 0), COALESCE(c.intransit_qty, 0)
FROM line_totals lt
LEFT JOIN contained c USING (brand)
ORDER BY lt.brand`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FulfillmentRow
	for rows.Next() {
		var row FulfillmentRow
		if err := rows.Scan(&row.Brand, &row.TotalQty, &row.OpenQty, &row.DeliveredQty, &row.InTransitQty); err != nil {
			return nil, err
		}
		fillPercentages(&row)
		out = append(out, row)
	}
	return out, rows.Err()
}

// PlanStagePairs returns the raw (actual stage, planned status, count) cells
// for containers that carry both an actual and a planned status track.
func (r *Repository) PlanStagePairs(ctx context.Context, brands []string) ([]PlanStagePair, error) {
	where := ""
	args := []any{}
	if len(brands) > 0 {
		where = " AND p.brand = ANY($1)"
		args = append(args, brands)
	}
	query := `
WITH latest_actual AS (
	SELECT DISTINCT ON (entity_id) entity_id, status
	FROM status_history WHERE entity_type = 'Container'
	ORDER BY entity_id, status_date DESC, id DESC
), latest_plan AS (
	SELECT DISTINCT ON (entity_id) entity_id, status
	FROM status_history WHERE entity_type = 'Planed-Container'
	ORDER BY entity_id, status_date DESC, id DESC
)
SELECT la.status, lp.status, COUNT(DISTINCT c.id)
FROM containers c
JOIN latest_actual la ON la.entity_id = c.id
JOIN latest_plan lp ON lp.entity_id = c.id
JOIN shipments s ON s.id = c.shipment_id
JOIN shipment_po_lines sl ON sl.shipment_id = s.id
JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
JOIN purchase_orders p ON p.id = pl.po_id
WHERE true` + where + `
GROUP BY la.status, lp.status`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlanStagePair
	for rows.Next() {
		var p PlanStagePair
		if err := rows.Scan(&p.Stage, &p.PlanStatus, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ShipmentStatusCounts groups shipments by their latest ledger status.
func (r *Repository) ShipmentStatusCounts(ctx context.Context, brands []string) ([]StatusCount, error) {
	where := ""
	args := []any{}
	if len(brands) > 0 {
		where = " AND p.brand = ANY($1)"
		args = append(args, brands)
	}
	query := `
WITH latest AS (
	SELECT DISTINCT ON (entity_id) entity_id, status
	FROM status_history WHERE entity_type = 'Shipment'
	ORDER BY entity_id, status_date DESC, id DESC
)
SELECT l.status, COUNT(DISTINCT l.entity_id)
FROM latest l
JOIN shipment_po_lines sl ON sl.shipment_id = l.entity_id
JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
JOIN purchase_orders p ON p.id = pl.po_id
WHERE true` + where + `
GROUP BY l.status
ORDER BY COUNT(DISTINCT l.entity_id) DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// UpcomingETA lists shipments arriving within the lookahead window, soonest
// first. Shipments with no containers still appear.
func (r *Repository) UpcomingETA(ctx context.Context, brands []string, daysAhead int, now time.Time) ([]UpcomingETARow, error) {
	cutoff := now.AddDate(0, 0, daysAhead)
	args := []any{now, cutoff}
	where := ""
	if len(brands) > 0 {
		where = " AND p.brand = ANY($3)"
		args = append(args, brands)
	}
	query := `
SELECT s.shipment_number, s.eta_destination, COALESCE(s.origin_port,''), COALESCE(s.pod,''),
	COALESCE(s.bl_number,''), COALESCE(p.brand,''), COUNT(DISTINCT c.id)
FROM shipments s
JOIN shipment_po_lines sl ON sl.shipment_id = s.id
JOIN purchase_order_lines pl ON pl.id = sl.po_line_id
JOIN purchase_orders p ON p.id = pl.po_id
LEFT JOIN containers c ON c.shipment_id = s.id
WHERE s.eta_destination IS NOT NULL AND s.eta_destination >= $1 AND s.eta_destination <= $2` + where + `
GROUP BY s.shipment_number, s.eta_destination, s.origin_port, s.pod, s.bl_number, p.brand
ORDER BY s.eta_destination`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UpcomingETARow
	for rows.Next() {
		var row UpcomingETARow
		if err := rows.Scan(&row.ShipmentNumber, &row.ETA, &row.OriginPort, &row.DestCountry,
			&row.BLNumber, &row.Brand, &row.Containers); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func sumCosts(row CostByBrandRow) decimal.Decimal {
	total := row.FreightCost
	for _, d := range []decimal.Decimal{
		row.SaberSADDAD, row.CustomDuties, row.DemurrageCharges, row.Penalties,
		row.OtherCharges, row.YardCharges, row.DOPortCharges,
		row.ClearanceTransportCharges, row.InspectionCharges, row.MAWANICharges,
	} {
		total = total.Add(d)
	}
	return total
}

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func fillPercentages(row *FulfillmentRow) {
	if row.TotalQty == 0 {
		return
	}
	total := float64(row.TotalQty)
	row.OpenPct = roundPct(float64(row.OpenQty) / total * 100)
	row.DeliveredPct = roundPct(float64(row.DeliveredQty) / total * 100)
	row.InTransitPct = roundPct(float64(row.InTransitQty) / total * 100)
}

func roundPct(v float64) float64 {
	return math.Round(v*10) / 10
}
