package po

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cargotrail/cargotrail/internal/shared"
)

type fakeRepo struct {
	pos        map[int64]PurchaseOrder
	lines      map[int64]Line
	nextPOID   int64
	nextLineID int64

	shipmentsByPO   map[int64][]string
	containersByPO  map[int64][]string
	shipmentsByLine map[int64][]string

	brandTypes map[string]string
	categories map[string]int64
	uploads    []UploadRow

	deletedPOs   []int64
	deletedLines []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		pos:             map[int64]PurchaseOrder{},
		lines:           map[int64]Line{},
		shipmentsByPO:   map[int64][]string{},
		containersByPO:  map[int64][]string{},
		shipmentsByLine: map[int64][]string{},
		brandTypes:      map[string]string{},
		categories:      map[string]int64{},
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) InsertPO(_ context.Context, p PurchaseOrder) (int64, error) {
	f.nextPOID++
	p.ID = f.nextPOID
	f.pos[p.ID] = p
	return p.ID, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, line Line) (int64, error) {
	f.nextLineID++
	line.ID = f.nextLineID
	f.lines[line.ID] = line
	return line.ID, nil
}

func (f *fakeRepo) DeleteContainerLinesForPO(context.Context, int64) error  { return nil }
func (f *fakeRepo) DeleteShipmentLinesForPO(context.Context, int64) error  { return nil }
func (f *fakeRepo) DeleteContainerLinesForLine(context.Context, int64) error { return nil }
func (f *fakeRepo) DeleteShipmentLinesForLine(context.Context, int64) error  { return nil }

func (f *fakeRepo) DeleteLinesForPO(_ context.Context, poID int64) error {
	for id, line := range f.lines {
		if line.POID == poID {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeRepo) DeletePO(_ context.Context, poID int64) error {
	if _, ok := f.pos[poID]; !ok {
		return ErrNotFound
	}
	delete(f.pos, poID)
	f.deletedPOs = append(f.deletedPOs, poID)
	return nil
}

func (f *fakeRepo) DeleteLine(_ context.Context, lineID int64) error {
	if _, ok := f.lines[lineID]; !ok {
		return ErrNotFound
	}
	delete(f.lines, lineID)
	f.deletedLines = append(f.deletedLines, lineID)
	return nil
}

func (f *fakeRepo) ListPOs(_ context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, p := range f.pos {
		if len(filters.Brands) > 0 && !contains(filters.Brands, p.Brand) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (f *fakeRepo) GetPO(_ context.Context, id int64) (PurchaseOrder, []Line, error) {
	p, ok := f.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	var lines []Line
	for _, line := range f.lines {
		if line.POID == id {
			lines = append(lines, line)
		}
	}
	return p, lines, nil
}

func (f *fakeRepo) ListLinesWithBalance(_ context.Context, brands []string) ([]LineWithBalance, error) {
	var out []LineWithBalance
	for _, line := range f.lines {
		if line.BalanceQty <= 0 {
			continue
		}
		p := f.pos[line.POID]
		if len(brands) > 0 && !contains(brands, p.Brand) {
			continue
		}
		out = append(out, LineWithBalance{Line: line, PONumber: p.PONumber, Brand: p.Brand, Supplier: p.Supplier})
	}
	return out, nil
}

func (f *fakeRepo) ReferencingShipments(_ context.Context, poID int64) ([]string, error) {
	return f.shipmentsByPO[poID], nil
}

func (f *fakeRepo) ReferencingContainers(_ context.Context, poID int64) ([]string, error) {
	return f.containersByPO[poID], nil
}

func (f *fakeRepo) LineReferencingShipments(_ context.Context, lineID int64) ([]string, error) {
	return f.shipmentsByLine[lineID], nil
}

func (f *fakeRepo) LineReferencingContainers(context.Context, int64) ([]string, error) {
	return nil, nil
}

func (f *fakeRepo) ExistingPONumbers(_ context.Context, numbers []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, p := range f.pos {
		for _, n := range numbers {
			if p.PONumber == n {
				out[n] = struct{}{}
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) BrandTypeMap(context.Context) (map[string]string, error) {
	return f.brandTypes, nil
}

func (f *fakeRepo) CategoryPrefixMap(context.Context) (map[string]int64, error) {
	return f.categories, nil
}

func (f *fakeRepo) InsertUploadRows(_ context.Context, rows []UploadRow) error {
	f.uploads = append(f.uploads, rows...)
	return nil
}

func (f *fakeRepo) UploadRowsForBatch(_ context.Context, batchID string) ([]UploadRow, error) {
	var out []UploadRow
	for _, u := range f.uploads {
		if u.UploadBatch == batchID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListBatches(context.Context) ([]BatchSummary, error) { return nil, nil }

var testRctx = shared.RequestContext{Actor: "tester", Role: "logistics", AllowedBrands: []string{"ACME"}}

func TestCreateWithLinesStartsBalanceAtQty(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	id, err := svc.CreateWithLines(context.Background(), testRctx, CreateInput{
		PO: PurchaseOrder{PONumber: "4500001", Supplier: "ACME Mills", Brand: "ACME", PODate: time.Now()},
		Lines: []Line{
			{Article: "TOWEL-40", Qty: 100, BalanceQty: 55, TotalValue: decimal.NewFromInt(2500)},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.EqualValues(t, 100, lines[0].BalanceQty)
}

func TestCreateWithLinesRejectsDuplicateNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	in := CreateInput{
		PO:    PurchaseOrder{PONumber: "4500002", Supplier: "ACME Mills", Brand: "ACME", PODate: time.Now()},
		Lines: []Line{{Article: "TOWEL-40", Qty: 10}},
	}
	_, err := svc.CreateWithLines(context.Background(), testRctx, in)
	require.NoError(t, err)

	_, err = svc.CreateWithLines(context.Background(), testRctx, in)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteRequiresConfirmationWhenReferenced(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	id, err := svc.CreateWithLines(context.Background(), testRctx, CreateInput{
		PO:    PurchaseOrder{PONumber: "4500003", Supplier: "ACME Mills", Brand: "ACME", PODate: time.Now()},
		Lines: []Line{{Article: "TOWEL-40", Qty: 10}},
	})
	require.NoError(t, err)
	repo.shipmentsByPO[id] = []string{"RFT1234"}
	repo.containersByPO[id] = []string{"MSKU7012456"}

	impact, err := svc.Delete(context.Background(), testRctx, id, false)
	require.ErrorIs(t, err, shared.ErrConfirmationRequired)
	require.Equal(t, []string{"RFT1234"}, impact.Shipments)
	require.Equal(t, []string{"MSKU7012456"}, impact.Containers)
	require.Empty(t, repo.deletedPOs, "delete must not proceed without confirmation")

	_, err = svc.Delete(context.Background(), testRctx, id, true)
	require.NoError(t, err)
	require.Equal(t, []int64{id}, repo.deletedPOs)
}

func TestDeleteUnreferencedNeedsNoConfirmation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	id, err := svc.CreateWithLines(context.Background(), testRctx, CreateInput{
		PO:    PurchaseOrder{PONumber: "4500004", Supplier: "ACME Mills", Brand: "ACME", PODate: time.Now()},
		Lines: []Line{{Article: "TOWEL-40", Qty: 10}},
	})
	require.NoError(t, err)

	impact, err := svc.Delete(context.Background(), testRctx, id, false)
	require.NoError(t, err)
	require.True(t, impact.Empty())

	_, _, err = svc.Get(context.Background(), id)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestImportBatchResolvesBrandAndCategory(t *testing.T) {
	repo := newFakeRepo()
	repo.brandTypes["ZTEX"] = "ACME"
	repo.categories["TOW"] = 42
	podate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	repo.uploads = []UploadRow{
		{PurchaseOrder: "4600001", Item: "10", Type: "ZTEX", VendorSupplyingSite: "ACME Mills", Article: "TOWEL-40", MdseCat: "TOW123", Site: "R101", DocDate: podate, QtyToBeDelivered: 80, ValueToBeDelivered: decimal.NewFromInt(1600), UploadBatch: "b1"},
		{PurchaseOrder: "4600001", Item: "20", Type: "ZTEX", VendorSupplyingSite: "ACME Mills", Article: "TOWEL-50", MdseCat: "BED999", Site: "R101", DocDate: podate, QtyToBeDelivered: 40, ValueToBeDelivered: decimal.NewFromInt(900), UploadBatch: "b1"},
		{PurchaseOrder: "4600002", Item: "10", Type: "ZUNK", VendorSupplyingSite: "Nova Traders", Article: "SHEET-1", MdseCat: "BED999", Site: "R102", DocDate: podate, QtyToBeDelivered: 25, ValueToBeDelivered: decimal.NewFromInt(500), UploadBatch: "b1"},
	}
	svc := NewService(repo, nil, nil)

	result, err := svc.ImportBatch(context.Background(), testRctx, "b1")
	require.NoError(t, err)
	require.Equal(t, 2, result.POsCreated)
	require.Equal(t, 3, result.LinesCreated)
	require.Empty(t, result.POsSkipped)

	var first, second PurchaseOrder
	for _, p := range repo.pos {
		switch p.PONumber {
		case "4600001":
			first = p
		case "4600002":
			second = p
		}
	}
	require.Equal(t, "ACME", first.Brand)
	// Unmapped brand type falls back to the raw merchandise category.
	require.Equal(t, "BED999", second.Brand)

	for _, line := range repo.lines {
		require.EqualValues(t, line.Qty, line.BalanceQty)
		if line.Article == "TOWEL-40" {
			require.NotNil(t, line.CategoryMappingID)
			require.EqualValues(t, 42, *line.CategoryMappingID)
		}
		if line.Article == "TOWEL-50" {
			require.Nil(t, line.CategoryMappingID)
		}
	}
}

func TestImportBatchSkipsExistingPONumbers(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	_, err := svc.CreateWithLines(context.Background(), testRctx, CreateInput{
		PO:    PurchaseOrder{PONumber: "4600010", Supplier: "ACME Mills", Brand: "ACME", PODate: time.Now()},
		Lines: []Line{{Article: "TOWEL-40", Qty: 10}},
	})
	require.NoError(t, err)
	repo.uploads = []UploadRow{
		{PurchaseOrder: "4600010", Item: "10", Article: "TOWEL-40", MdseCat: "TOW", QtyToBeDelivered: 99, UploadBatch: "b2"},
		{PurchaseOrder: "4600011", Item: "10", Article: "SHEET-1", MdseCat: "BED", QtyToBeDelivered: 5, UploadBatch: "b2"},
	}

	result, err := svc.ImportBatch(context.Background(), testRctx, "b2")
	require.NoError(t, err)
	require.Equal(t, 1, result.POsCreated)
	require.Equal(t, []string{"4600010"}, result.POsSkipped)
}

func TestImportBatchUnknownBatch(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)
	_, err := svc.ImportBatch(context.Background(), testRctx, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFixArticleBackfillsFromShortText(t *testing.T) {
	require.Equal(t, "TOWEL-40", fixArticle("TOWEL-40", "Bath towel"))
	require.Equal(t, "POP-Bath tow", fixArticle("", "Bath towel"))
	require.Equal(t, "POP-Bath tow", fixArticle("nan", "Bath towel"))
	generated := fixArticle("", "")
	require.Regexp(t, `^POP-\d{6}$`, generated)
}
