package shipment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/status"
)

type fakeRepo struct {
	balances  map[int64]int64
	shipments map[int64]Shipment
	lines     map[int64]POLine
	numbers   map[string]bool

	containerCount     map[int64]int
	containerLineCount map[int64]int

	nextShipmentID int64
	nextLineID     int64

	biyan  map[int64]string
	saddad map[int64]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		balances:           map[int64]int64{},
		shipments:          map[int64]Shipment{},
		lines:              map[int64]POLine{},
		numbers:            map[string]bool{},
		containerCount:     map[int64]int{},
		containerLineCount: map[int64]int{},
		biyan:              map[int64]string{},
		saddad:             map[int64]string{},
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed callback rolls back like a real transaction.
	balances := make(map[int64]int64, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}
	shipments := make(map[int64]Shipment, len(f.shipments))
	for k, v := range f.shipments {
		shipments[k] = v
	}
	lines := make(map[int64]POLine, len(f.lines))
	for k, v := range f.lines {
		lines[k] = v
	}
	if err := fn(ctx, f); err != nil {
		f.balances = balances
		f.shipments = shipments
		f.lines = lines
		return err
	}
	return nil
}

func (f *fakeRepo) InsertShipment(_ context.Context, s Shipment) (int64, error) {
	f.nextShipmentID++
	s.ID = f.nextShipmentID
	f.shipments[s.ID] = s
	f.numbers[s.ShipmentNumber] = true
	return s.ID, nil
}

func (f *fakeRepo) InsertPOLine(_ context.Context, line POLine) (int64, error) {
	f.nextLineID++
	line.ID = f.nextLineID
	f.lines[line.ID] = line
	return line.ID, nil
}

func (f *fakeRepo) DecrementBalance(_ context.Context, poLineID, qty int64) (bool, error) {
	if f.balances[poLineID] < qty {
		return false, nil
	}
	f.balances[poLineID] -= qty
	return true, nil
}

func (f *fakeRepo) RestoreBalance(_ context.Context, poLineID, qty int64) error {
	f.balances[poLineID] += qty
	return nil
}

func (f *fakeRepo) POLinesForShipment(_ context.Context, shipmentID int64) ([]POLine, error) {
	var out []POLine
	for _, line := range f.lines {
		if line.ShipmentID == shipmentID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPOLine(_ context.Context, lineID int64) (POLine, error) {
	line, ok := f.lines[lineID]
	if !ok {
		return POLine{}, ErrNotFound
	}
	return line, nil
}

func (f *fakeRepo) DeletePOLine(_ context.Context, lineID int64) error {
	if _, ok := f.lines[lineID]; !ok {
		return ErrNotFound
	}
	delete(f.lines, lineID)
	return nil
}

func (f *fakeRepo) DeletePOLinesForShipment(_ context.Context, shipmentID int64) error {
	for id, line := range f.lines {
		if line.ShipmentID == shipmentID {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeRepo) DeleteShipment(_ context.Context, shipmentID int64) error {
	if _, ok := f.shipments[shipmentID]; !ok {
		return ErrNotFound
	}
	delete(f.shipments, shipmentID)
	return nil
}

func (f *fakeRepo) List(context.Context, int, int, ListFilters) ([]Shipment, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Shipment, []POLine, error) {
	s, ok := f.shipments[id]
	if !ok {
		return Shipment{}, nil, ErrNotFound
	}
	lines, _ := f.POLinesForShipment(context.Background(), id)
	return s, lines, nil
}

func (f *fakeRepo) NumberExists(_ context.Context, number string) (bool, error) {
	return f.numbers[number], nil
}

func (f *fakeRepo) POLineExists(_ context.Context, shipmentID, poLineID int64) (bool, error) {
	for _, line := range f.lines {
		if line.ShipmentID == shipmentID && line.POLineID == poLineID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ContainerCount(_ context.Context, shipmentID int64) (int, error) {
	return f.containerCount[shipmentID], nil
}

func (f *fakeRepo) ContainerLineCount(_ context.Context, lineID int64) (int, error) {
	return f.containerLineCount[lineID], nil
}

func (f *fakeRepo) UpdateDetails(_ context.Context, s Shipment) error {
	if _, ok := f.shipments[s.ID]; !ok {
		return ErrNotFound
	}
	f.shipments[s.ID] = s
	return nil
}

func (f *fakeRepo) UpdateCosts(_ context.Context, id int64, costs Costs, _ decimal.Decimal, remarks, actor string) error {
	s, ok := f.shipments[id]
	if !ok {
		return ErrNotFound
	}
	s.Costs = costs
	s.CostRemarks = remarks
	s.LastUpdatedBy = actor
	f.shipments[id] = s
	return nil
}

func (f *fakeRepo) UpdateClearanceNumbers(_ context.Context, id int64, biyan, saddad *string, _ string) error {
	if _, ok := f.shipments[id]; !ok {
		return ErrNotFound
	}
	if biyan != nil {
		f.biyan[id] = *biyan
	}
	if saddad != nil {
		f.saddad[id] = *saddad
	}
	return nil
}

func (f *fakeRepo) ListInvoices(context.Context, int64) ([]Invoice, error)   { return nil, nil }
func (f *fakeRepo) InsertInvoice(context.Context, Invoice) (int64, error)   { return 1, nil }
func (f *fakeRepo) UpdateInvoice(context.Context, Invoice) error            { return nil }
func (f *fakeRepo) DeleteInvoice(context.Context, int64) error              { return nil }
func (f *fakeRepo) ListNonPOItems(context.Context, int64) ([]NonPOItem, error) { return nil, nil }
func (f *fakeRepo) InsertNonPOItem(context.Context, NonPOItem) (int64, error)  { return 1, nil }
func (f *fakeRepo) DeleteNonPOItem(context.Context, int64) error               { return nil }

type statusCall struct {
	ref status.EntityRef
	st  string
}

type fakeStatuses struct {
	calls []statusCall
}

func (f *fakeStatuses) Write(_ context.Context, ref status.EntityRef, st, _, _ string) (status.Row, error) {
	f.calls = append(f.calls, statusCall{ref: ref, st: st})
	return status.Row{Ref: ref, Status: st}, nil
}

func (f *fakeStatuses) WriteAt(ctx context.Context, ref status.EntityRef, st string, _ time.Time, actor, comment string) (status.Row, error) {
	return f.Write(ctx, ref, st, actor, comment)
}

var testRctx = shared.RequestContext{Actor: "tester", Role: "logistics", AllowedBrands: []string{"ACME"}}

func TestCreateClaimsBalanceAndWritesInitialStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	statuses := &fakeStatuses{}
	svc := NewService(repo, statuses, nil, nil)

	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(created.ShipmentNumber, "RFT"))
	require.EqualValues(t, 40, repo.balances[1])

	require.Len(t, statuses.calls, 1)
	require.Equal(t, status.ShipmentRef(created.ID), statuses.calls[0].ref)
	require.Equal(t, status.StatusStocksNotReady, statuses.calls[0].st)
}

func TestCreateRejectsOverclaimAndRollsBack(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	repo.balances[2] = 10
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	_, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}, {POLineID: 2, QtyShipped: 50}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.EqualValues(t, 100, repo.balances[1], "failed creation must not leak a partial claim")
	require.EqualValues(t, 10, repo.balances[2])
	require.Empty(t, repo.shipments)
}

func TestCreateRejectsSamePOLineTwice(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	svc := NewService(repo, &fakeStatuses{}, nil, nil)

	_, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 30}, {POLineID: 1, QtyShipped: 20}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.EqualValues(t, 100, repo.balances[1], "rejected creation must not claim balance")
	require.Empty(t, repo.shipments)
	require.Empty(t, repo.lines)
}

func TestAddLineRejectsDuplicateAndOverclaim(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	statuses := &fakeStatuses{}
	svc := NewService(repo, statuses, nil, nil)
	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}},
	})
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), testRctx, created.ID, LineInput{POLineID: 1, QtyShipped: 10})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.EqualValues(t, 40, repo.balances[1], "duplicate line must not change balance")

	repo.balances[2] = 30
	_, err = svc.AddLine(context.Background(), testRctx, created.ID, LineInput{POLineID: 2, QtyShipped: 50})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.EqualValues(t, 30, repo.balances[2])

	_, err = svc.AddLine(context.Background(), testRctx, created.ID, LineInput{POLineID: 2, QtyShipped: 30})
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.balances[2])
}

func TestRemoveLineRestoresBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	svc := NewService(repo, &fakeStatuses{}, nil, nil)
	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 40, repo.balances[1])

	var lineID int64
	for id := range repo.lines {
		lineID = id
	}
	require.NoError(t, svc.RemoveLine(context.Background(), testRctx, lineID))
	require.EqualValues(t, 100, repo.balances[1])
	_, _, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err, "shipment itself survives a line removal")
}

func TestRemoveLineRefusedWhileContained(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	svc := NewService(repo, &fakeStatuses{}, nil, nil)
	_, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}},
	})
	require.NoError(t, err)
	var lineID int64
	for id := range repo.lines {
		lineID = id
	}
	repo.containerLineCount[lineID] = 2

	err = svc.RemoveLine(context.Background(), testRctx, lineID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.EqualValues(t, 40, repo.balances[1], "guarded removal must not restore balance")
}

func TestReverseRestoresEveryLine(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	repo.balances[2] = 50
	svc := NewService(repo, &fakeStatuses{}, nil, nil)
	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}, {POLineID: 2, QtyShipped: 20}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reverse(context.Background(), testRctx, created.ID))
	require.EqualValues(t, 100, repo.balances[1])
	require.EqualValues(t, 50, repo.balances[2])
	_, _, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReverseRefusedWhileContainersAssigned(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	svc := NewService(repo, &fakeStatuses{}, nil, nil)
	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 60}},
	})
	require.NoError(t, err)
	repo.containerCount[created.ID] = 1

	err = svc.Reverse(context.Background(), testRctx, created.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.EqualValues(t, 40, repo.balances[1])
}

func TestGenerateNumberRegeneratesOnCollision(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeStatuses{}, nil, nil)
	first, err := svc.generateNumber(context.Background())
	require.NoError(t, err)
	repo.numbers[first] = true

	second, err := svc.generateNumber(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.True(t, strings.HasPrefix(second, "RFT"))
}

func TestUpdateStatusesWritesThroughLedger(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 100
	statuses := &fakeStatuses{}
	svc := NewService(repo, statuses, nil, nil)
	created, err := svc.Create(context.Background(), testRctx, CreateInput{
		Header: Shipment{ModeOfTransport: "SEA"},
		Lines:  []LineInput{{POLineID: 1, QtyShipped: 10}},
	})
	require.NoError(t, err)
	statuses.calls = nil

	biyan := "BN-100"
	result, err := svc.UpdateStatuses(context.Background(), testRctx, []StatusUpdate{
		{ShipmentID: created.ID, Status: "Vessel sailing", BiyanNumber: &biyan},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated)
	require.Empty(t, result.Failed)
	require.Len(t, statuses.calls, 1)
	require.Equal(t, "Vessel sailing", statuses.calls[0].st)
	require.Equal(t, "BN-100", repo.biyan[created.ID])
}
