package container

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
var ErrNotFound = fmt.Errorf("container: %w", shared.ErrNotFound)

const containerColumns = `id, shipment_id, container_number, COALESCE(container_type,''),
cc_date, ata_origin, atd_origin, ata_dest_port, atd_dest_port, ata_wh, yard_in_date, yard_out_date,
COALESCE(remarks,''), COALESCE(updated_by,''), updated_at`

func scanContainer(row pgx.Row) (Container, error) {
	var c Container
	err := row.Scan(&c.ID, &c.ShipmentID, &c.ContainerNumber, &c.ContainerType,
		&c.CCDate, &c.ATAOrigin, &c.ATDOrigin, &c.ATADestPort, &c.ATDDestPort, &c.ATAWH, &c.YardInDate, &c.YardOutDate,
		&c.Remarks, &c.UpdatedBy, &c.UpdatedAt)
	return c, err
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
	ContainersForShipment(ctx context.Context, shipmentID int64) ([]Container, error)
	InsertContainer(ctx context.Context, c Container) (int64, error)
	UpdateContainer(ctx context.Context, c Container) error
	DeleteContainer(ctx context.Context, id int64) error
	UpsertLine(ctx context.Context, line Line) error
	DeleteLinesExcept(ctx context.Context, containerID int64, keep []int64) error
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

func (t *txRepo) ContainersForShipment(ctx context.Context, shipmentID int64) ([]Container, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+containerColumns+` FROM containers WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertContainer(ctx context.Context, c Container) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO containers (shipment_id, container_number, container_type, cc_date, ata_origin, atd_origin, ata_dest_port, atd_dest_port, ata_wh, yard_in_date, yard_out_date, remarks, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`,
		c.ShipmentID, c.ContainerNumber, c.ContainerType, c.CCDate, c.ATAOrigin, c.ATDOrigin, c.ATADestPort, c.ATDDestPort, c.ATAWH, c.YardInDate, c.YardOutDate, c.Remarks, c.UpdatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateContainer(ctx context.Context, c Container) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE containers SET container_number=$2, container_type=$3, cc_date=$4, ata_origin=$5, atd_origin=$6,
	ata_dest_port=$7, atd_dest_port=$8, ata_wh=$9, yard_in_date=$10, yard_out_date=$11, remarks=$12,
	updated_by=$13, updated_at=NOW()
WHERE id=$1`,
		c.ID, c.ContainerNumber, c.ContainerType, c.CCDate, c.ATAOrigin, c.ATDOrigin,
		c.ATADestPort, c.ATDDestPort, c.ATAWH, c.YardInDate, c.YardOutDate, c.Remarks, c.UpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteContainer(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM container_lines WHERE container_id=$1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM containers WHERE id=$1`, id)
	return err
}

func (t *txRepo) UpsertLine(ctx context.Context, line Line) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO container_lines (container_id, shipment_po_line_id, qty_in_container)
VALUES ($1, $2, $3)
ON CONFLICT (container_id, shipment_po_line_id) DO UPDATE SET qty_in_container = EXCLUDED.qty_in_container`,
		line.ContainerID, line.ShipmentPOLineID, line.QtyInContainer)
	return err
}

func (t *txRepo) DeleteLinesExcept(ctx context.Context, containerID int64, keep []int64) error {
	if len(keep) == 0 {
		_, err := t.tx.Exec(ctx, `DELETE FROM container_lines WHERE container_id=$1`, containerID)
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM container_lines WHERE container_id=$1 AND NOT (shipment_po_line_id = ANY($2))`, containerID, keep)
	return err
}

// Get returns a container and its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Container, []Line, error) {
	c, err := scanContainer(r.pool.QueryRow(ctx, `SELECT `+containerColumns+` FROM containers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Container{}, nil, ErrNotFound
		}
		return Container{}, nil, err
	}
	lines, err := r.linesForContainer(ctx, id)
	if err != nil {
		return Container{}, nil, err
	}
	return c, lines, nil
}

// ListForShipment returns a shipment's containers with their lines.
func (r *Repository) ListForShipment(ctx context.Context, shipmentID int64) ([]Container, map[int64][]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+containerColumns+` FROM containers WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var out []Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	lines := make(map[int64][]Line, len(out))
	for _, c := range out {
		ls, err := r.linesForContainer(ctx, c.ID)
		if err != nil {
			return nil, nil, err
		}
		lines[c.ID] = ls
	}
	return out, lines, nil
}

func (r *Repository) linesForContainer(ctx context.Context, containerID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, container_id, shipment_po_line_id, qty_in_container
FROM container_lines WHERE container_id=$1 ORDER BY id`, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.ContainerID, &line.ShipmentPOLineID, &line.QtyInContainer); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// ContainedVsShipped reports per shipment PO line how much of the shipped
// quantity is placed in containers.
func (r *Repository) ContainedVsShipped(ctx context.Context, shipmentID int64) ([]LineTotals, error) {
	rows, err := r.pool.Query(ctx, `
SELECT sl.id, sl.qty_shipped, COALESCE(SUM(cl.qty_in_container), 0)
FROM shipment_po_lines sl
LEFT JOIN container_lines cl ON cl.shipment_po_line_id = sl.id
WHERE sl.shipment_id = $1
GROUP BY sl.id, sl.qty_shipped
ORDER BY sl.id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LineTotals
	for rows.Next() {
		var t LineTotals
		if err := rows.Scan(&t.ShipmentPOLineID, &t.QtyShipped, &t.QtyContained); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ContainerIDsForShipment lists container ids for one shipment.
func (r *Repository) ContainerIDsForShipment(ctx context.Context, shipmentID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM containers WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ShipmentIDForContainer resolves the parent shipment.
func (r *Repository) ShipmentIDForContainer(ctx context.Context, containerID int64) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT shipment_id FROM containers WHERE id=$1`, containerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
