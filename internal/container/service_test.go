package container

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/status"
)

type fakeRepo struct {
	nextID     int64
	containers map[int64]Container
	lines      map[int64]map[int64]int64
	shipped    map[int64]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:     1,
		containers: map[int64]Container{},
		lines:      map[int64]map[int64]int64{},
		shipped:    map[int64]int64{},
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) ContainersForShipment(ctx context.Context, shipmentID int64) ([]Container, error) {
	var out []Container
	for _, c := range f.containers {
		if c.ShipmentID == shipmentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) InsertContainer(ctx context.Context, c Container) (int64, error) {
	c.ID = f.nextID
	f.nextID++
	f.containers[c.ID] = c
	f.lines[c.ID] = map[int64]int64{}
	return c.ID, nil
}

func (f *fakeRepo) UpdateContainer(ctx context.Context, c Container) error {
	f.containers[c.ID] = c
	if f.lines[c.ID] == nil {
		f.lines[c.ID] = map[int64]int64{}
	}
	return nil
}

func (f *fakeRepo) DeleteContainer(ctx context.Context, id int64) error {
	delete(f.containers, id)
	delete(f.lines, id)
	return nil
}

func (f *fakeRepo) UpsertLine(ctx context.Context, line Line) error {
	if f.lines[line.ContainerID] == nil {
		f.lines[line.ContainerID] = map[int64]int64{}
	}
	f.lines[line.ContainerID][line.ShipmentPOLineID] = line.QtyInContainer
	return nil
}

func (f *fakeRepo) DeleteLinesExcept(ctx context.Context, containerID int64, keep []int64) error {
	keepSet := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	for lineID := range f.lines[containerID] {
		if _, ok := keepSet[lineID]; !ok {
			delete(f.lines[containerID], lineID)
		}
	}
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Container, []Line, error) {
	c, ok := f.containers[id]
	if !ok {
		return Container{}, nil, ErrNotFound
	}
	var lines []Line
	for lineID, qty := range f.lines[id] {
		lines = append(lines, Line{ContainerID: id, ShipmentPOLineID: lineID, QtyInContainer: qty})
	}
	return c, lines, nil
}

func (f *fakeRepo) ListForShipment(ctx context.Context, shipmentID int64) ([]Container, map[int64][]Line, error) {
	containers, _ := f.ContainersForShipment(ctx, shipmentID)
	lines := make(map[int64][]Line)
	for _, c := range containers {
		_, ls, _ := f.Get(ctx, c.ID)
		lines[c.ID] = ls
	}
	return containers, lines, nil
}

func (f *fakeRepo) ContainedVsShipped(ctx context.Context, shipmentID int64) ([]LineTotals, error) {
	contained := map[int64]int64{}
	for id, c := range f.containers {
		if c.ShipmentID != shipmentID {
			continue
		}
		for lineID, qty := range f.lines[id] {
			contained[lineID] += qty
		}
	}
	var out []LineTotals
	for lineID, shipped := range f.shipped {
		out = append(out, LineTotals{ShipmentPOLineID: lineID, QtyShipped: shipped, QtyContained: contained[lineID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShipmentPOLineID < out[j].ShipmentPOLineID })
	return out, nil
}

func (f *fakeRepo) ContainerIDsForShipment(ctx context.Context, shipmentID int64) ([]int64, error) {
	containers, _ := f.ContainersForShipment(ctx, shipmentID)
	ids := make([]int64, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (f *fakeRepo) ShipmentIDForContainer(ctx context.Context, containerID int64) (int64, bool, error) {
	c, ok := f.containers[containerID]
	if !ok {
		return 0, false, nil
	}
	return c.ShipmentID, true, nil
}

type trackedWrite struct {
	ref status.EntityRef
	st  string
	at  time.Time
}

type fakeStatuses struct {
	writes []trackedWrite
}

func (f *fakeStatuses) WriteAt(ctx context.Context, ref status.EntityRef, st string, date time.Time, actor, comment string) (status.Row, error) {
	f.writes = append(f.writes, trackedWrite{ref: ref, st: st, at: date})
	return status.Row{Ref: ref, Status: st, StatusDate: date}, nil
}

var testRctx = shared.RequestContext{Actor: "tester", Role: "logistics", AllowedBrands: []string{"ACME"}}

func TestSyncInsertsAndUpdatesSubmittedContainers(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	result, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
	})
	require.NoError(t, err)
	require.Len(t, result.ContainerIDs, 1)

	ata := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err = svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ID: result.ContainerIDs[0], ContainerNumber: "MSCU1111111", ATAWH: &ata, Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 12}}},
	})
	require.NoError(t, err)

	c, lines, err := svc.Get(context.Background(), result.ContainerIDs[0])
	require.NoError(t, err)
	require.NotNil(t, c.ATAWH)
	require.Equal(t, ata, *c.ATAWH)
	require.Len(t, lines, 1)
	require.Equal(t, int64(12), lines[0].QtyInContainer)
}

func TestSyncDeletesOmittedContainersWithLines(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	result, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
		{ContainerNumber: "MSCU2222222", Lines: []LineForm{{ShipmentPOLineID: 2, QtyInContainer: 5}}},
	})
	require.NoError(t, err)
	keep := result.ContainerIDs[0]
	dropped := result.ContainerIDs[1]

	result, err = svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ID: keep, ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"MSCU2222222"}, result.Deleted)

	_, _, err = svc.Get(context.Background(), dropped)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSyncReconcilesLinesDroppingMissingOnes(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	result, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{
			{ShipmentPOLineID: 1, QtyInContainer: 10},
			{ShipmentPOLineID: 2, QtyInContainer: 4},
		}},
	})
	require.NoError(t, err)

	_, err = svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ID: result.ContainerIDs[0], ContainerNumber: "MSCU1111111", Lines: []LineForm{
			{ShipmentPOLineID: 2, QtyInContainer: 6},
		}},
	})
	require.NoError(t, err)

	_, lines, err := svc.Get(context.Background(), result.ContainerIDs[0])
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int64(2), lines[0].ShipmentPOLineID)
	require.Equal(t, int64(6), lines[0].QtyInContainer)
}

func TestSyncMatchesExistingContainersByNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	first, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
	})
	require.NoError(t, err)

	// Resubmitting the same number without the id must update, not duplicate.
	second, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
	})
	require.NoError(t, err)
	require.Equal(t, first.ContainerIDs, second.ContainerIDs)
	require.Empty(t, second.Deleted)
}

func TestSyncWritesActualAndPlannedTracks(t *testing.T) {
	repo := newFakeRepo()
	statuses := &fakeStatuses{}
	svc := NewService(repo, statuses, nil, nil)

	at := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	planned := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	result, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{
			ContainerNumber:   "MSCU1111111",
			Lines:             []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}},
			Status:            status.StatusUnderClearance,
			StatusDate:        &at,
			PlannedStatus:     status.StatusDelivered,
			PlannedStatusDate: &planned,
		},
	})
	require.NoError(t, err)
	require.Len(t, statuses.writes, 2)

	actual := statuses.writes[0]
	require.Equal(t, status.ContainerRef(result.ContainerIDs[0]), actual.ref)
	require.Equal(t, status.StatusUnderClearance, actual.st)
	require.Equal(t, at, actual.at)

	plan := statuses.writes[1]
	require.Equal(t, status.PlannedContainerRef(result.ContainerIDs[0]), plan.ref)
	require.Equal(t, status.StatusDelivered, plan.st)
	require.Equal(t, planned, plan.at)
}

func TestSyncSkipsStatusWritesWhenBlank(t *testing.T) {
	repo := newFakeRepo()
	statuses := &fakeStatuses{}
	svc := NewService(repo, statuses, nil, nil)

	_, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 10}}},
	})
	require.NoError(t, err)
	require.Empty(t, statuses.writes)
}

func TestSyncReportsContainedVsShippedWithoutEnforcing(t *testing.T) {
	repo := newFakeRepo()
	repo.shipped[1] = 10
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	// Over-containing is reported back, not rejected.
	result, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 14}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Totals, 1)
	require.Equal(t, int64(10), result.Totals[0].QtyShipped)
	require.Equal(t, int64(14), result.Totals[0].QtyContained)
}

func TestSyncRejectsBlankNumberAndNonPositiveQty(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	_, err := svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{{ContainerNumber: "  "}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SyncShipmentContainers(context.Background(), testRctx, 7, []Form{
		{ContainerNumber: "MSCU1111111", Lines: []LineForm{{ShipmentPOLineID: 1, QtyInContainer: 0}}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
