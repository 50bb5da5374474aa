package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargotrail/cargotrail/internal/shared"
)

func TestPivotPlanStageShapesMatrix(t *testing.T) {
	pairs := []PlanStagePair{
		{Stage: "IN-Transit", PlanStatus: "Planed RDC", Count: 3},
		{Stage: "IN-Transit", PlanStatus: "Planed DTC Delivery", Count: 2},
		{Stage: "Under Clearance", PlanStatus: "Planed RDC", Count: 1},
		{Stage: "Under Clearance", PlanStatus: "Planed XYZ", Count: 4},
	}
	m := PivotPlanStage(pairs)

	require.Equal(t, int64(5), m.RowTotals["IN-Transit"])
	require.Equal(t, int64(5), m.RowTotals["Under Clearance"])
	require.Equal(t, int64(3), m.Rows["IN-Transit"]["Planed RDC"])
	require.Equal(t, int64(4), m.Rows["Under Clearance"]["Planed XYZ"])

	// Known warehouse columns come first in their pinned order, unknown
	// columns trail alphabetically.
	require.Equal(t, []string{"Planed DTC Delivery", "Planed RDC", "Planed XYZ"}, m.PlanColumns)
}

func TestPivotPlanStageEmptyInput(t *testing.T) {
	m := PivotPlanStage(nil)
	require.Empty(t, m.Rows)
	require.Empty(t, m.PlanColumns)
}

func TestScopedBrandsIntersectsWithVisibility(t *testing.T) {
	scoped := shared.RequestContext{Actor: "u", Role: "logistics", AllowedBrands: []string{"ACME", "ZEN"}}

	require.Equal(t, []string{"ACME", "ZEN"}, scopedBrands(scoped, nil))
	require.Equal(t, []string{"ACME"}, scopedBrands(scoped, []string{"ACME", "OTHER"}))
	// A request entirely outside the visible set falls back to the scope.
	require.Equal(t, []string{"ACME", "ZEN"}, scopedBrands(scoped, []string{"OTHER"}))

	admin := shared.RequestContext{Actor: "root", Role: "admin"}
	require.Equal(t, []string{"ANY"}, scopedBrands(admin, []string{"ANY"}))
	require.Nil(t, scopedBrands(admin, nil))
}

func TestFillPercentagesRounding(t *testing.T) {
	row := FulfillmentRow{TotalQty: 3, OpenQty: 1, DeliveredQty: 1, InTransitQty: 1}
	fillPercentages(&row)
	require.InDelta(t, 33.3, row.OpenPct, 0.001)
	require.InDelta(t, 33.3, row.DeliveredPct, 0.001)

	zero := FulfillmentRow{}
	fillPercentages(&zero)
	require.Zero(t, zero.DeliveredPct)
}

type fakeReportsRepo struct {
	trackingCalls int
	planPairs     []PlanStagePair
}

func (f *fakeReportsRepo) TrackingRows(ctx context.Context, filters TrackingFilters) ([]TrackingRow, int64, error) {
	f.trackingCalls++
	return []TrackingRow{{PONumber: "4500000001", Brand: filters.Brands[0]}}, 1, nil
}

func (f *fakeReportsRepo) CostByBrand(ctx context.Context, brands []string) ([]CostByBrandRow, error) {
	return []CostByBrandRow{{Brand: "ACME"}}, nil
}

func (f *fakeReportsRepo) CostByShipment(ctx context.Context, numbers []string) ([]CostByShipmentRow, error) {
	return nil, nil
}

func (f *fakeReportsRepo) LeadTimeByBrand(ctx context.Context, brands []string) ([]LeadTimeRow, error) {
	return nil, nil
}

func (f *fakeReportsRepo) FulfillmentByBrand(ctx context.Context, brands []string) ([]FulfillmentRow, error) {
	return nil, nil
}

func (f *fakeReportsRepo) PlanStagePairs(ctx context.Context, brands []string) ([]PlanStagePair, error) {
	return f.planPairs, nil
}

func (f *fakeReportsRepo) ShipmentStatusCounts(ctx context.Context, brands []string) ([]StatusCount, error) {
	return nil, nil
}

func (f *fakeReportsRepo) UpcomingETA(ctx context.Context, brands []string, daysAhead int, now time.Time) ([]UpcomingETARow, error) {
	return nil, nil
}

func TestTrackingAppliesBrandScope(t *testing.T) {
	repo := &fakeReportsRepo{}
	svc := NewService(repo, nil)

	rctx := shared.RequestContext{Actor: "u", Role: "logistics", AllowedBrands: []string{"ACME"}}
	rows, total, err := svc.Tracking(context.Background(), rctx, TrackingFilters{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "ACME", rows[0].Brand)
}

func TestPlanStageGoesThroughPivot(t *testing.T) {
	repo := &fakeReportsRepo{planPairs: []PlanStagePair{
		{Stage: "IN-Transit", PlanStatus: "Planed RDC", Count: 2},
	}}
	svc := NewService(repo, nil)

	rctx := shared.RequestContext{Actor: "u", Role: "logistics", AllowedBrands: []string{"ACME"}}
	m, err := svc.PlanStage(context.Background(), rctx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Planed RDC"}, m.PlanColumns)
	require.Equal(t, int64(2), m.RowTotals["IN-Transit"])
}
