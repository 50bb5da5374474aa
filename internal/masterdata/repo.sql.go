package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// ErrNotFound marks missing masterdata rows.
var ErrNotFound = fmt.Errorf("masterdata: %w", shared.ErrNotFound)

// Repository persists lookup tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListLookup(ctx context.Context, kind LookupKind) ([]Lookup, error) {
	table, ok := lookupTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY name`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lookup
	for rows.Next() {
		var l Lookup
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) InsertLookup(ctx context.Context, kind LookupKind, name string) (int64, error) {
	table, ok := lookupTables[kind]
	if !ok {
		return 0, fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`, table),
		name).Scan(&id)
	return id, err
}

func (r *Repository) UpdateLookup(ctx context.Context, kind LookupKind, id int64, name string) error {
	table, ok := lookupTables[kind]
	if !ok {
		return fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2`, table), name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteLookup(ctx context.Context, kind LookupKind, id int64) error {
	table, ok := lookupTables[kind]
	if !ok {
		return fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListBrandTypes(ctx context.Context) ([]BrandType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, brand_type, brand_name FROM brand_types ORDER BY brand_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BrandType
	for rows.Next() {
		var b BrandType
		if err := rows.Scan(&b.ID, &b.BrandType, &b.BrandName); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertBrandType(ctx context.Context, b BrandType) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO brand_types (brand_type, brand_name) VALUES ($1, $2)
ON CONFLICT (brand_type) DO UPDATE SET brand_name = EXCLUDED.brand_name
RETURNING id`, b.BrandType, b.BrandName).Scan(&id)
	return id, err
}

func (r *Repository) DeleteBrandType(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM brand_types WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListCategoryMappings(ctx context.Context, sda bool) ([]CategoryMapping, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, cat_code, COALESCE(cat_name,''), COALESCE(cat_desc,''), COALESCE(sub_cat,''), sda
FROM category_mappings WHERE sda = $1 ORDER BY cat_code`, sda)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryMapping
	for rows.Next() {
		var c CategoryMapping
		if err := rows.Scan(&c.ID, &c.CatCode, &c.CatName, &c.CatDesc, &c.SubCat, &c.SDA); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertCategoryMapping(ctx context.Context, c CategoryMapping) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO category_mappings (cat_code, cat_name, cat_desc, sub_cat, sda)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cat_code, sda) DO UPDATE SET
	cat_name = EXCLUDED.cat_name, cat_desc = EXCLUDED.cat_desc, sub_cat = EXCLUDED.sub_cat
RETURNING id`, c.CatCode, c.CatName, c.CatDesc, c.SubCat, c.SDA).Scan(&id)
	return id, err
}

func (r *Repository) DeleteCategoryMapping(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM category_mappings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListArticleWeights(ctx context.Context) ([]ArticleWeight, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, article, COALESCE(weight_kg,0) FROM article_weights ORDER BY article`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ArticleWeight
	for rows.Next() {
		var a ArticleWeight
		if err := rows.Scan(&a.ID, &a.Article, &a.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) GetArticleWeight(ctx context.Context, article string) (ArticleWeight, error) {
	var a ArticleWeight
	err := r.pool.QueryRow(ctx, `SELECT id, article, COALESCE(weight_kg,0) FROM article_weights WHERE article = $1`, article).
		Scan(&a.ID, &a.Article, &a.WeightKg)
	if errors.Is(err, pgx.ErrNoRows) {
		return ArticleWeight{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) UpsertArticleWeight(ctx context.Context, a ArticleWeight) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO article_weights (article, weight_kg) VALUES ($1, $2)
ON CONFLICT (article) DO UPDATE SET weight_kg = EXCLUDED.weight_kg
RETURNING id`, a.Article, a.WeightKg).Scan(&id)
	return id, err
}

func (r *Repository) DeleteArticleWeight(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM article_weights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
