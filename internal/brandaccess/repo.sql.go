package brandaccess

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = fmt.Errorf("brandaccess: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser returns a user with their brand scope.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, username, COALESCE(full_name,''), role, created_at, updated_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	brands, err := r.userBrands(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.Brands = brands
	return u, nil
}

// GetUserByUsername resolves a user by login name.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return r.GetUser(ctx, id)
}

func (r *Repository) userBrands(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT brand FROM user_brands WHERE user_id=$1 ORDER BY brand`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var brands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// RolePermissions returns deduplicated permission names for a role.
func (r *Repository) RolePermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT p.name
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role = $1
ORDER BY p.name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// SetUserBrands replaces the brand scope for a user.
func (r *Repository) SetUserBrands(ctx context.Context, userID int64, brands []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM user_brands WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for _, b := range brands {
		if _, err := tx.Exec(ctx, `INSERT INTO user_brands (user_id, brand) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, b); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListPermissions returns all permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description,'') FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
