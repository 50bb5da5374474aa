package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	ListLookup(ctx context.Context, kind LookupKind) ([]Lookup, error)
	InsertLookup(ctx context.Context, kind LookupKind, name string) (int64, error)
	UpdateLookup(ctx context.Context, kind LookupKind, id int64, name string) error
	DeleteLookup(ctx context.Context, kind LookupKind, id int64) error

	ListBrandTypes(ctx context.Context) ([]BrandType, error)
	UpsertBrandType(ctx context.Context, b BrandType) (int64, error)
	DeleteBrandType(ctx context.Context, id int64) error

	ListCategoryMappings(ctx context.Context, sda bool) ([]CategoryMapping, error)
	UpsertCategoryMapping(ctx context.Context, c CategoryMapping) (int64, error)
	DeleteCategoryMapping(ctx context.Context, id int64) error

	ListArticleWeights(ctx context.Context) ([]ArticleWeight, error)
	UpsertArticleWeight(ctx context.Context, a ArticleWeight) (int64, error)
	DeleteArticleWeight(ctx context.Context, id int64) error
}

// Service validates and forwards lookup mutations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListLookup(ctx context.Context, kind LookupKind) ([]Lookup, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	return s.repo.ListLookup(ctx, kind)
}

func (s *Service) SaveLookup(ctx context.Context, kind LookupKind, id int64, name string) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if id > 0 {
		return id, s.repo.UpdateLookup(ctx, kind, id, name)
	}
	return s.repo.InsertLookup(ctx, kind, name)
}

func (s *Service) DeleteLookup(ctx context.Context, kind LookupKind, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown lookup %q", shared.ErrValidation, kind)
	}
	return s.repo.DeleteLookup(ctx, kind, id)
}

func (s *Service) ListBrandTypes(ctx context.Context) ([]BrandType, error) {
	return s.repo.ListBrandTypes(ctx)
}

func (s *Service) SaveBrandType(ctx context.Context, b BrandType) (int64, error) {
	b.BrandType = strings.TrimSpace(b.BrandType)
	b.BrandName = strings.TrimSpace(b.BrandName)
	if b.BrandType == "" || b.BrandName == "" {
		return 0, fmt.Errorf("%w: brand type and name are required", shared.ErrValidation)
	}
	return s.repo.UpsertBrandType(ctx, b)
}

func (s *Service) DeleteBrandType(ctx context.Context, id int64) error {
	return s.repo.DeleteBrandType(ctx, id)
}

func (s *Service) ListCategoryMappings(ctx context.Context, sda bool) ([]CategoryMapping, error) {
	return s.repo.ListCategoryMappings(ctx, sda)
}

// SaveCategoryMapping upserts a mapping. The prefix is normalised to three
// upper case characters, matching how the import resolves it.
func (s *Service) SaveCategoryMapping(ctx context.Context, c CategoryMapping) (int64, error) {
	c.CatCode = strings.ToUpper(strings.TrimSpace(c.CatCode))
	if len(c.CatCode) != 3 {
		return 0, fmt.Errorf("%w: cat code must be exactly three characters", shared.ErrValidation)
	}
	return s.repo.UpsertCategoryMapping(ctx, c)
}

func (s *Service) DeleteCategoryMapping(ctx context.Context, id int64) error {
	return s.repo.DeleteCategoryMapping(ctx, id)
}

func (s *Service) ListArticleWeights(ctx context.Context) ([]ArticleWeight, error) {
	return s.repo.ListArticleWeights(ctx)
}

func (s *Service) SaveArticleWeight(ctx context.Context, a ArticleWeight) (int64, error) {
	a.Article = strings.TrimSpace(a.Article)
	if a.Article == "" {
		return 0, fmt.Errorf("%w: article is required", shared.ErrValidation)
	}
	if a.WeightKg.IsNegative() {
		return 0, fmt.Errorf("%w: weight cannot be negative", shared.ErrValidation)
	}
	return s.repo.UpsertArticleWeight(ctx, a)
}

func (s *Service) DeleteArticleWeight(ctx context.Context, id int64) error {
	return s.repo.DeleteArticleWeight(ctx, id)
}
