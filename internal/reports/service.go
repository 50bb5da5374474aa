package reports

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// RepositoryPort exposes the projection queries the service relies on.
type RepositoryPort interface {
	TrackingRows(ctx context.Context, f TrackingFilters) ([]TrackingRow, int64, error)
	CostByBrand(ctx context.Context, brands []string) ([]CostByBrandRow, error)
	CostByShipment(ctx context.Context, shipmentNumbers []string) ([]CostByShipmentRow, error)
	LeadTimeByBrand(ctx context.Context, brands []string) ([]LeadTimeRow, error)
	FulfillmentByBrand(ctx context.Context, brands []string) ([]FulfillmentRow, error)
	PlanStagePairs(ctx context.Context, brands []string) ([]PlanStagePair, error)
	ShipmentStatusCounts(ctx context.Context, brands []string) ([]StatusCount, error)
	UpcomingETA(ctx context.Context, brands []string, daysAhead int, now time.Time) ([]UpcomingETARow, error)
}

// Service coordinates report query execution with the cache layer.
// Concurrent builds of the same key collapse into one repository call.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Invalidate bumps the cache version after a mutating domain operation.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) fetch(ctx context.Context, dest interface{}, keyParts []string, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return err
	}
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		var payload json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &payload, loader); err != nil {
			return nil, err
		}
		return payload, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

// scopedBrands resolves the effective brand filter: an explicit request
// filter intersected with the caller's visibility, or the visibility alone.
func scopedBrands(rctx shared.RequestContext, requested []string) []string {
	allowed := rctx.BrandFilter()
	if allowed == nil {
		return requested
	}
	if len(requested) == 0 {
		return allowed
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, b := range allowed {
		allowedSet[b] = struct{}{}
	}
	var out []string
	for _, b := range requested {
		if _, ok := allowedSet[b]; ok {
			out = append(out, b)
		}
	}
	if out == nil {
		// Nothing visible intersects the request. Keep the caller scoped.
		return allowed
	}
	return out
}

// Tracking returns the paginated freight tracking listing. The listing is
// not cached: it changes on every mutation and is already one query.
func (s *Service) Tracking(ctx context.Context, rctx shared.RequestContext, f TrackingFilters) ([]TrackingRow, int64, error) {
	f.Brands = scopedBrands(rctx, f.Brands)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 50
	}
	return s.repo.TrackingRows(ctx, f)
}

// CostByBrand returns the cached per-brand expense aggregation.
func (s *Service) CostByBrand(ctx context.Context, rctx shared.RequestContext, brands []string) ([]CostByBrandRow, error) {
	brands = scopedBrands(rctx, brands)
	var out []CostByBrandRow
	err := s.fetch(ctx, &out, []string{"reports", "cost_by_brand", brandsToken(brands)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.CostByBrand(ctx, brands)
	})
	return out, err
}

// CostByShipment returns the per-shipment expense breakdown.
func (s *Service) CostByShipment(ctx context.Context, shipmentNumbers []string) ([]CostByShipmentRow, error) {
	var out []CostByShipmentRow
	err := s.fetch(ctx, &out, []string{"reports", "cost_by_shipment", brandsToken(shipmentNumbers)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.CostByShipment(ctx, shipmentNumbers)
	})
	return out, err
}

// LeadTimeByBrand returns average milestone spans per brand.
func (s *Service) LeadTimeByBrand(ctx context.Context, rctx shared.RequestContext, brands []string) ([]LeadTimeRow, error) {
	brands = scopedBrands(rctx, brands)
	var out []LeadTimeRow
	err := s.fetch(ctx, &out, []string{"reports", "leadtime", brandsToken(brands)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.LeadTimeByBrand(ctx, brands)
	})
	return out, err
}

// FulfillmentByBrand returns ordered vs delivered vs in-transit per brand.
func (s *Service) FulfillmentByBrand(ctx context.Context, rctx shared.RequestContext, brands []string) ([]FulfillmentRow, error) {
	brands = scopedBrands(rctx, brands)
	var out []FulfillmentRow
	err := s.fetch(ctx, &out, []string{"reports", "fulfillment", brandsToken(brands)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.FulfillmentByBrand(ctx, brands)
	})
	return out, err
}

// PlanStage returns the pivoted planned-vs-actual container matrix.
func (s *Service) PlanStage(ctx context.Context, rctx shared.RequestContext, brands []string) (PlanStageMatrix, error) {
	brands = scopedBrands(rctx, brands)
	var out PlanStageMatrix
	err := s.fetch(ctx, &out, []string{"reports", "plan_stage", brandsToken(brands)}, func(ctx context.Context) (interface{}, error) {
		pairs, err := s.repo.PlanStagePairs(ctx, brands)
		if err != nil {
			return nil, err
		}
		return PivotPlanStage(pairs), nil
	})
	return out, err
}

// ShipmentStatusCounts returns latest-status shipment counts.
func (s *Service) ShipmentStatusCounts(ctx context.Context, rctx shared.RequestContext, brands []string) ([]StatusCount, error) {
	brands = scopedBrands(rctx, brands)
	var out []StatusCount
	err := s.fetch(ctx, &out, []string{"reports", "shipment_status", brandsToken(brands)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.ShipmentStatusCounts(ctx, brands)
	})
	return out, err
}

// UpcomingETA lists shipments arriving within daysAhead days.
func (s *Service) UpcomingETA(ctx context.Context, rctx shared.RequestContext, brands []string, daysAhead int) ([]UpcomingETARow, error) {
	brands = scopedBrands(rctx, brands)
	if daysAhead <= 0 {
		daysAhead = 7
	}
	now := time.Now()
	var out []UpcomingETARow
	key := []string{"reports", "upcoming_eta", brandsToken(brands), strconv.Itoa(daysAhead), now.Format("2006-01-02")}
	err := s.fetch(ctx, &out, key, func(ctx context.Context) (interface{}, error) {
		return s.repo.UpcomingETA(ctx, brands, daysAhead, now)
	})
	return out, err
}
