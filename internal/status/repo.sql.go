package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a ledger row and returns its id.
func (r *Repository) Append(ctx context.Context, row Row) (int64, error) {
	if !row.Ref.Kind.Valid() {
		return 0, fmt.Errorf("status: unknown entity kind %q", row.Ref.Kind)
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO status_history (entity_type, entity_id, status, status_date, updated_by, comments)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		string(row.Ref.Kind), row.Ref.ID, row.Status, row.StatusDate, row.UpdatedBy, row.Comments).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("status: append %s: %w", row.Ref, err)
	}
	return id, nil
}

// Latest returns the current status row for the entity. The second return
// is false when the entity has no ledger rows yet.
func (r *Repository) Latest(ctx context.Context, ref EntityRef) (Row, bool, error) {
	var row Row
	var entityType string
	err := r.pool.QueryRow(ctx, `
SELECT id, entity_type, entity_id, status, status_date, COALESCE(updated_by,''), COALESCE(comments,'')
FROM status_history
WHERE entity_type=$1 AND entity_id=$2
ORDER BY status_date DESC, id DESC
LIMIT 1`, string(ref.Kind), ref.ID).
		Scan(&row.ID, &entityType, &row.Ref.ID, &row.Status, &row.StatusDate, &row.UpdatedBy, &row.Comments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, false, nil
		}
		return Row{}, false, fmt.Errorf("status: latest %s: %w", ref, err)
	}
	row.Ref.Kind = Kind(entityType)
	return row, true, nil
}

// LatestBatch resolves the current status for many entities of one kind in a
// single grouped query. Entities without ledger rows are absent from the map.
func (r *Repository) LatestBatch(ctx context.Context, kind Kind, ids []int64) (map[int64]Row, error) {
	if len(ids) == 0 {
		return map[int64]Row{}, nil
	}
	rows, err := r.pool.Query(ctx, `
SELECT sh.id, sh.entity_id, sh.status, sh.status_date, COALESCE(sh.updated_by,''), COALESCE(sh.comments,'')
FROM status_history sh
JOIN (
	SELECT entity_id, MAX(status_date) AS max_date
	FROM status_history
	WHERE entity_type=$1 AND entity_id = ANY($2)
	GROUP BY entity_id
) latest ON latest.entity_id = sh.entity_id AND latest.max_date = sh.status_date
WHERE sh.entity_type=$1
ORDER BY sh.entity_id, sh.id`, string(kind), ids)
	if err != nil {
		return nil, fmt.Errorf("status: latest batch %s: %w", kind, err)
	}
	defer rows.Close()
	out := make(map[int64]Row, len(ids))
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Ref.ID, &row.Status, &row.StatusDate, &row.UpdatedBy, &row.Comments); err != nil {
			return nil, err
		}
		row.Ref.Kind = kind
		// Rows arrive in id order per entity, so the last one wins the tie.
		out[row.Ref.ID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns all ledger rows for the entity, newest first.
func (r *Repository) History(ctx context.Context, ref EntityRef) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, entity_id, status, status_date, COALESCE(updated_by,''), COALESCE(comments,'')
FROM status_history
WHERE entity_type=$1 AND entity_id=$2
ORDER BY status_date DESC, id DESC`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("status: history %s: %w", ref, err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Ref.ID, &row.Status, &row.StatusDate, &row.UpdatedBy, &row.Comments); err != nil {
			return nil, err
		}
		row.Ref.Kind = ref.Kind
		out = append(out, row)
	}
	return out, rows.Err()
}
