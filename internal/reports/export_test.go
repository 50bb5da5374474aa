package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestExportTrackingWritesHeaderAndRows(t *testing.T) {
	poDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f := ExportTracking([]TrackingRow{
		{
			PONumber:       "4500000001",
			Brand:          "ACME",
			PODate:         &poDate,
			Qty:            100,
			BalanceQty:     40,
			TotalValue:     decimal.NewFromInt(2040),
			ShipmentNumber: "RFT12345678",
			POStatus:       "Open",
		},
	})
	sheet := "Freight Tracking"

	head, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "PO Number", head)

	po, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	require.Equal(t, "4500000001", po)

	date, err := f.GetCellValue(sheet, "D2")
	require.NoError(t, err)
	require.Equal(t, "2026-01-15", date)

	shp, err := f.GetCellValue(sheet, "J2")
	require.NoError(t, err)
	require.Equal(t, "RFT12345678", shp)
}

func TestExportExpensesAppendsTotalsRow(t *testing.T) {
	f := ExportExpenses([]CostByShipmentRow{
		{ShipmentNumber: "RFT1", FreightCost: decimal.NewFromInt(100), TotalExpense: decimal.NewFromInt(100)},
		{ShipmentNumber: "RFT2", FreightCost: decimal.NewFromInt(250), TotalExpense: decimal.NewFromInt(250)},
	})
	sheet := "Shipment Expenses"

	label, err := f.GetCellValue(sheet, "A4")
	require.NoError(t, err)
	require.Equal(t, "Total", label)

	total, err := f.GetCellValue(sheet, "N4")
	require.NoError(t, err)
	require.Equal(t, "350.00", total)
}
