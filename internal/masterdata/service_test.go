package masterdata

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cargotrail/cargotrail/internal/shared"
)

type fakeRepo struct {
	nextID  int64
	lookups map[LookupKind]map[int64]string
	brands  map[int64]BrandType
	cats    map[int64]CategoryMapping
	weights map[int64]ArticleWeight
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:  1,
		lookups: map[LookupKind]map[int64]string{},
		brands:  map[int64]BrandType{},
		cats:    map[int64]CategoryMapping{},
		weights: map[int64]ArticleWeight{},
	}
}

func (f *fakeRepo) ListLookup(ctx context.Context, kind LookupKind) ([]Lookup, error) {
	var out []Lookup
	for id, name := range f.lookups[kind] {
		out = append(out, Lookup{ID: id, Name: name})
	}
	return out, nil
}

func (f *fakeRepo) InsertLookup(ctx context.Context, kind LookupKind, name string) (int64, error) {
	if f.lookups[kind] == nil {
		f.lookups[kind] = map[int64]string{}
	}
	id := f.nextID
	f.nextID++
	f.lookups[kind][id] = name
	return id, nil
}

func (f *fakeRepo) UpdateLookup(ctx context.Context, kind LookupKind, id int64, name string) error {
	if _, ok := f.lookups[kind][id]; !ok {
		return ErrNotFound
	}
	f.lookups[kind][id] = name
	return nil
}

func (f *fakeRepo) DeleteLookup(ctx context.Context, kind LookupKind, id int64) error {
	if _, ok := f.lookups[kind][id]; !ok {
		return ErrNotFound
	}
	delete(f.lookups[kind], id)
	return nil
}

func (f *fakeRepo) ListBrandTypes(ctx context.Context) ([]BrandType, error) { return nil, nil }

func (f *fakeRepo) UpsertBrandType(ctx context.Context, b BrandType) (int64, error) {
	id := f.nextID
	f.nextID++
	b.ID = id
	f.brands[id] = b
	return id, nil
}

func (f *fakeRepo) DeleteBrandType(ctx context.Context, id int64) error { return nil }

func (f *fakeRepo) ListCategoryMappings(ctx context.Context, sda bool) ([]CategoryMapping, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertCategoryMapping(ctx context.Context, c CategoryMapping) (int64, error) {
	id := f.nextID
	f.nextID++
	c.ID = id
	f.cats[id] = c
	return id, nil
}

func (f *fakeRepo) DeleteCategoryMapping(ctx context.Context, id int64) error { return nil }

func (f *fakeRepo) ListArticleWeights(ctx context.Context) ([]ArticleWeight, error) { return nil, nil }

func (f *fakeRepo) UpsertArticleWeight(ctx context.Context, a ArticleWeight) (int64, error) {
	id := f.nextID
	f.nextID++
	a.ID = id
	f.weights[id] = a
	return id, nil
}

func (f *fakeRepo) DeleteArticleWeight(ctx context.Context, id int64) error { return nil }

func TestSaveLookupRejectsUnknownKindAndBlankName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.SaveLookup(context.Background(), "not_a_table", 0, "FOB")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SaveLookup(context.Background(), KindIncoterm, 0, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaveLookupInsertsThenUpdates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	id, err := svc.SaveLookup(context.Background(), KindIncoterm, 0, "FOB")
	require.NoError(t, err)
	require.Positive(t, id)

	_, err = svc.SaveLookup(context.Background(), KindIncoterm, id, "CIF")
	require.NoError(t, err)
	require.Equal(t, "CIF", repo.lookups[KindIncoterm][id])
}

func TestSaveCategoryMappingNormalisesPrefix(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	id, err := svc.SaveCategoryMapping(context.Background(), CategoryMapping{CatCode: " tow ", CatName: "Towels"})
	require.NoError(t, err)
	require.Equal(t, "TOW", repo.cats[id].CatCode)

	_, err = svc.SaveCategoryMapping(context.Background(), CategoryMapping{CatCode: "TOWEL", CatName: "Towels"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaveArticleWeightRejectsNegative(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.SaveArticleWeight(context.Background(), ArticleWeight{Article: "POP-123456", WeightKg: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SaveArticleWeight(context.Background(), ArticleWeight{Article: "", WeightKg: decimal.NewFromInt(2)})
	require.ErrorIs(t, err, shared.ErrValidation)
}
