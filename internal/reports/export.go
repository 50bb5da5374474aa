package reports

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopspring/decimal"
)

var trackingHeaders = []string{
	"PO Number", "Supplier", "Brand", "PO Date", "Article", "Category",
	"Qty", "Balance Qty", "Total Value",
	"Shipment", "Mode", "Shipping Line", "BL Number", "Qty Shipped",
	"ETA WH", "ETA Destination",
	"Container", "Qty In Container", "ATA WH",
	"PO Status", "Shipment Status", "Container Status", "Planned Status",
}

var expenseHeaders = []string{
	"Shipment", "BL Number", "Freight Cost", "Saber/SADDAD", "Custom Duties",
	"Demurrage", "Penalties", "Other Charges", "Yard Charges", "DO/Port Charges",
	"Clearance Transport", "Inspection", "MAWANI", "Total",
}

var printer = message.NewPrinter(language.English)

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	return style
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	style := headerStyle(f)
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setDate(f *excelize.File, sheet, cell string, t *time.Time) {
	if t == nil {
		return
	}
	f.SetCellValue(sheet, cell, t.Format("2006-01-02"))
}

func setInt(f *excelize.File, sheet, cell string, v *int64) {
	if v == nil {
		return
	}
	f.SetCellValue(sheet, cell, *v)
}

// ExportTracking renders the freight tracking listing as a workbook.
func ExportTracking(rows []TrackingRow) *excelize.File {
	f := excelize.NewFile()
	sheet := "Freight Tracking"
	f.SetSheetName("Sheet1", sheet)
	writeHeader(f, sheet, trackingHeaders)

	for i, t := range rows {
		row := i + 2
		cell := func(col int) string {
			name, _ := excelize.ColumnNumberToName(col)
			return fmt.Sprintf("%s%d", name, row)
		}
		f.SetCellValue(sheet, cell(1), t.PONumber)
		f.SetCellValue(sheet, cell(2), t.Supplier)
		f.SetCellValue(sheet, cell(3), t.Brand)
		setDate(f, sheet, cell(4), t.PODate)
		f.SetCellValue(sheet, cell(5), t.Article)
		f.SetCellValue(sheet, cell(6), t.Category)
		f.SetCellValue(sheet, cell(7), t.Qty)
		f.SetCellValue(sheet, cell(8), t.BalanceQty)
		f.SetCellValue(sheet, cell(9), t.TotalValue.InexactFloat64())
		f.SetCellValue(sheet, cell(10), t.ShipmentNumber)
		f.SetCellValue(sheet, cell(11), t.ModeOfTransport)
		f.SetCellValue(sheet, cell(12), t.ShippingLine)
		f.SetCellValue(sheet, cell(13), t.BLNumber)
		setInt(f, sheet, cell(14), t.QtyShipped)
		setDate(f, sheet, cell(15), t.ETAWH)
		setDate(f, sheet, cell(16), t.ETADestination)
		f.SetCellValue(sheet, cell(17), t.ContainerNumber)
		setInt(f, sheet, cell(18), t.QtyInContainer)
		setDate(f, sheet, cell(19), t.ATAWH)
		f.SetCellValue(sheet, cell(20), t.POStatus)
		f.SetCellValue(sheet, cell(21), t.ShipmentStatus)
		f.SetCellValue(sheet, cell(22), t.ContainerStatus)
		f.SetCellValue(sheet, cell(23), t.PlannedContainerStatus)
	}

	widths := []float64{14, 20, 12, 12, 16, 14, 8, 10, 12, 14, 10, 16, 16, 10, 12, 14, 16, 10, 12, 16, 16, 16, 16}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	return f
}

// ExportExpenses renders the per-shipment expense report with a formatted
// totals row at the bottom.
func ExportExpenses(rows []CostByShipmentRow) *excelize.File {
	f := excelize.NewFile()
	sheet := "Shipment Expenses"
	f.SetSheetName("Sheet1", sheet)
	writeHeader(f, sheet, expenseHeaders)

	var grand decimal.Decimal
	for i, r := range rows {
		row := i + 2
		cell := func(col int) string {
			name, _ := excelize.ColumnNumberToName(col)
			return fmt.Sprintf("%s%d", name, row)
		}
		f.SetCellValue(sheet, cell(1), r.ShipmentNumber)
		f.SetCellValue(sheet, cell(2), r.BLNumber)
		costs := []decimal.Decimal{
			r.FreightCost, r.SaberSADDAD, r.CustomDuties, r.DemurrageCharges,
			r.Penalties, r.OtherCharges, r.YardCharges, r.DOPortCharges,
			r.ClearanceTransportCharges, r.InspectionCharges, r.MAWANICharges,
			r.TotalExpense,
		}
		for j, c := range costs {
			f.SetCellValue(sheet, cell(3+j), c.InexactFloat64())
		}
		grand = grand.Add(r.TotalExpense)
	}

	totalRow := len(rows) + 2
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("N%d", totalRow), printer.Sprintf("%.2f", grand.InexactFloat64()))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("N%d", totalRow), totalStyle)

	widths := []float64{14, 16, 12, 12, 12, 12, 10, 12, 12, 14, 16, 12, 10, 14}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	return f
}
