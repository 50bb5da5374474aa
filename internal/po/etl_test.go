package po

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cargotrail/cargotrail/internal/shared"
)

func buildUploadWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, col := range uploadColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, col))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestIngestSpreadsheetStagesRows(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	buf := buildUploadWorkbook(t, [][]any{
		{"4700001", "10", "ZTEX", "P01", "ACME Mills", "TOWEL-40", "Bath towel", "TOW123", "R101", "0001", "15.01.2026", 100, "25.50", 80, "2040.00"},
		{"4700001", "20", "ZTEX", "P01", "ACME Mills", "", "Hand towel classic", "TOW124", "R101", "0001", "15.01.2026", 50, "12.00", 50, "600.00"},
	})

	batchID, staged, err := svc.IngestSpreadsheet(context.Background(), testRctx, buf)
	require.NoError(t, err)
	require.NotEmpty(t, batchID)
	require.Len(t, staged, 2)
	require.Len(t, repo.uploads, 2)

	first := repo.uploads[0]
	require.Equal(t, "4700001", first.PurchaseOrder)
	require.Equal(t, batchID, first.UploadBatch)
	require.Equal(t, "tester", first.UploadedBy)
	require.EqualValues(t, 80, first.QtyToBeDelivered)
	require.Equal(t, "2040", first.ValueToBeDelivered.String())
	require.Equal(t, 2026, first.DocDate.Year())

	// Blank article backfilled from the short text.
	require.Equal(t, "POP-Hand tow", repo.uploads[1].Article)
}

func TestIngestSpreadsheetRejectsEmptyWorkbook(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	buf := buildUploadWorkbook(t, nil)

	_, _, err := svc.IngestSpreadsheet(context.Background(), testRctx, buf)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.uploads)
}

func TestIngestSpreadsheetRejectsBadDate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	buf := buildUploadWorkbook(t, [][]any{
		{"4700002", "10", "ZTEX", "P01", "ACME Mills", "TOWEL-40", "Bath towel", "TOW123", "R101", "0001", "not a date", 1, "1", 1, "1"},
	})

	_, _, err := svc.IngestSpreadsheet(context.Background(), testRctx, buf)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "row 2")
}
