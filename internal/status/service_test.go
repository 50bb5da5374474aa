package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memLedger struct {
	rows   []Row
	nextID int64
}

func (m *memLedger) Append(_ context.Context, row Row) (int64, error) {
	m.nextID++
	row.ID = m.nextID
	m.rows = append(m.rows, row)
	return row.ID, nil
}

func (m *memLedger) Latest(_ context.Context, ref EntityRef) (Row, bool, error) {
	var best Row
	found := false
	for _, row := range m.rows {
		if row.Ref != ref {
			continue
		}
		if !found || row.StatusDate.After(best.StatusDate) ||
			(row.StatusDate.Equal(best.StatusDate) && row.ID > best.ID) {
			best = row
			found = true
		}
	}
	return best, found, nil
}

func (m *memLedger) LatestBatch(ctx context.Context, kind Kind, ids []int64) (map[int64]Row, error) {
	out := make(map[int64]Row, len(ids))
	for _, id := range ids {
		row, ok, err := m.Latest(ctx, EntityRef{Kind: kind, ID: id})
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = row
		}
	}
	return out, nil
}

func (m *memLedger) History(_ context.Context, ref EntityRef) ([]Row, error) {
	var out []Row
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Ref == ref {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memLedger) statuses(ref EntityRef) []string {
	var out []string
	for _, row := range m.rows {
		if row.Ref == ref {
			out = append(out, row.Status)
		}
	}
	return out
}

type memContainers struct {
	byShipment map[int64][]int64
}

func (m *memContainers) ContainerIDsForShipment(_ context.Context, shipmentID int64) ([]int64, error) {
	return m.byShipment[shipmentID], nil
}

func (m *memContainers) ShipmentIDForContainer(_ context.Context, containerID int64) (int64, bool, error) {
	for sid, ids := range m.byShipment {
		for _, id := range ids {
			if id == containerID {
				return sid, true, nil
			}
		}
	}
	return 0, false, nil
}

func newCascadingService(ledger *memLedger, containers *memContainers) *Service {
	svc := NewService(ledger, nil)
	svc.Register(
		ShipmentTransitCascade{Containers: containers, Writer: svc},
		AllDeliveredCascade{Containers: containers, Ledger: ledger, Writer: svc},
	)
	return svc
}

func TestCurrentStatusIsMaxDateNotInsertionOrder(t *testing.T) {
	ledger := &memLedger{}
	svc := NewService(ledger, nil)
	ctx := context.Background()
	ref := ContainerRef(5)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.WriteAt(ctx, ref, StatusInTransit, base, "ops", "")
	require.NoError(t, err)
	_, err = svc.WriteAt(ctx, ref, StatusDelivered, base.Add(48*time.Hour), "ops", "")
	require.NoError(t, err)
	_, err = svc.WriteAt(ctx, ref, StatusUnderClearance, base.Add(24*time.Hour), "ops", "")
	require.NoError(t, err)

	row, ok, err := svc.Current(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusDelivered, row.Status)
}

func TestEqualDatesResolveToHighestID(t *testing.T) {
	ledger := &memLedger{}
	svc := NewService(ledger, nil)
	ctx := context.Background()
	ref := ShipmentRef(9)
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	_, err := svc.WriteAt(ctx, ref, "Booked", at, "ops", "")
	require.NoError(t, err)
	_, err = svc.WriteAt(ctx, ref, "Vessel sailing", at, "ops", "")
	require.NoError(t, err)

	row, ok, err := svc.Current(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Vessel sailing", row.Status)
}

func TestPlannedTrackIndependentOfActualTrack(t *testing.T) {
	ledger := &memLedger{}
	svc := NewService(ledger, nil)
	ctx := context.Background()

	_, err := svc.Write(ctx, ContainerRef(7), StatusInTransit, "ops", "")
	require.NoError(t, err)
	_, err = svc.Write(ctx, PlannedContainerRef(7), "Planed RDC", "ops", "")
	require.NoError(t, err)

	actual, ok, err := svc.Current(ctx, ContainerRef(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusInTransit, actual.Status)

	planned, ok, err := svc.Current(ctx, PlannedContainerRef(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Planed RDC", planned.Status)
}

func TestSailingCascadesToContainers(t *testing.T) {
	ledger := &memLedger{}
	containers := &memContainers{byShipment: map[int64][]int64{1: {11, 12, 13}}}
	svc := newCascadingService(ledger, containers)
	ctx := context.Background()

	shipRow, err := svc.Write(ctx, ShipmentRef(1), "Vessel sailing", "ops", "")
	require.NoError(t, err)

	for _, id := range []int64{11, 12, 13} {
		row, ok, err := svc.Current(ctx, ContainerRef(id))
		require.NoError(t, err)
		require.True(t, ok, "container %d has no status", id)
		require.Equal(t, StatusInTransit, row.Status)
		require.False(t, row.StatusDate.Before(shipRow.StatusDate))
	}
}

func TestUnderClearanceCascadesToContainers(t *testing.T) {
	ledger := &memLedger{}
	containers := &memContainers{byShipment: map[int64][]int64{2: {21, 22}}}
	svc := newCascadingService(ledger, containers)
	ctx := context.Background()

	_, err := svc.Write(ctx, ShipmentRef(2), "Shipment under clearance", "ops", "")
	require.NoError(t, err)

	for _, id := range []int64{21, 22} {
		row, ok, err := svc.Current(ctx, ContainerRef(id))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, StatusUnderClearance, row.Status)
	}
}

func TestAllDeliveredMarksShipmentDelivered(t *testing.T) {
	ledger := &memLedger{}
	containers := &memContainers{byShipment: map[int64][]int64{3: {31, 32}}}
	svc := newCascadingService(ledger, containers)
	ctx := context.Background()

	_, err := svc.Write(ctx, ContainerRef(31), StatusDelivered, "ops", "")
	require.NoError(t, err)

	_, ok, err := svc.Current(ctx, ShipmentRef(3))
	require.NoError(t, err)
	require.False(t, ok, "shipment marked delivered while a container is pending")

	_, err = svc.Write(ctx, ContainerRef(32), StatusDelivered, "ops", "")
	require.NoError(t, err)

	row, ok, err := svc.Current(ctx, ShipmentRef(3))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusDelivered, row.Status)
}

func TestAllDeliveredDoesNotDuplicateShipmentRow(t *testing.T) {
	ledger := &memLedger{}
	containers := &memContainers{byShipment: map[int64][]int64{4: {41}}}
	svc := newCascadingService(ledger, containers)
	ctx := context.Background()

	_, err := svc.Write(ctx, ContainerRef(41), StatusDelivered, "ops", "")
	require.NoError(t, err)
	_, err = svc.Write(ctx, ContainerRef(41), StatusDelivered, "ops", "")
	require.NoError(t, err)

	require.Equal(t, []string{StatusDelivered}, ledger.statuses(ShipmentRef(4)))
}

func TestPlannedWriteDoesNotTriggerDeliveryCheck(t *testing.T) {
	ledger := &memLedger{}
	containers := &memContainers{byShipment: map[int64][]int64{5: {51}}}
	svc := newCascadingService(ledger, containers)
	ctx := context.Background()

	_, err := svc.Write(ctx, ContainerRef(51), StatusDelivered, "ops", "")
	require.NoError(t, err)
	// The shipment is delivered now; a later planned-track write must not
	// re-open or duplicate anything.
	_, err = svc.Write(ctx, PlannedContainerRef(51), "Planed JDC", "ops", "")
	require.NoError(t, err)

	require.Equal(t, []string{StatusDelivered}, ledger.statuses(ShipmentRef(5)))
}

func TestWriteRejectsEmptyStatusAndUnknownKind(t *testing.T) {
	svc := NewService(&memLedger{}, nil)
	ctx := context.Background()

	_, err := svc.Write(ctx, ShipmentRef(1), "  ", "ops", "")
	require.Error(t, err)

	_, err = svc.Write(ctx, EntityRef{Kind: "Warehouse", ID: 1}, "Open", "ops", "")
	require.Error(t, err)
}
