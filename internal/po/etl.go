package po

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// Spreadsheet column order expected in PO upload files. Header text in the
// file itself is ignored, only position matters.
var uploadColumns = []string{
	"PurchaseOrder",
	"Item",
	"Type",
	"PGR",
	"VendorSupplyingSite",
	"Article",
	"ShortText",
	"MdseCat",
	"Site",
	"SLoc",
	"DocDate",
	"Quantity",
	"Netprice",
	"QtyToBeDelivered",
	"ValueToBeDelivered",
}

const uploadDateFormat = "02.01.2006"

// IngestSpreadsheet reads an .xlsx upload into staging rows under a fresh
// batch id. Nothing reaches the PO tables until ImportBatch confirms it.
func (s *Service) IngestSpreadsheet(ctx context.Context, rctx shared.RequestContext, file io.Reader) (string, []UploadRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot read spreadsheet: %v", shared.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("%w: spreadsheet has no sheets", shared.ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("po: read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return "", nil, fmt.Errorf("%w: spreadsheet has no data rows", shared.ErrValidation)
	}

	batchID := uuid.NewString()
	now := time.Now()
	staged := make([]UploadRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		u, err := parseUploadRow(row)
		if err != nil {
			return "", nil, fmt.Errorf("%w: row %d: %v", shared.ErrValidation, i+2, err)
		}
		u.UploadBatch = batchID
		u.UploadedBy = rctx.Actor
		u.UploadedAt = now
		staged = append(staged, u)
	}
	if len(staged) == 0 {
		return "", nil, fmt.Errorf("%w: spreadsheet has no data rows", shared.ErrValidation)
	}
	if err := s.repo.InsertUploadRows(ctx, staged); err != nil {
		return "", nil, err
	}
	s.recordAudit(ctx, rctx.Actor, "po.upload", 0, map[string]any{"batch": batchID, "rows": len(staged)})
	return batchID, staged, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseUploadRow(row []string) (UploadRow, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	var u UploadRow
	u.PurchaseOrder = cell(0)
	if u.PurchaseOrder == "" {
		return UploadRow{}, fmt.Errorf("missing %s", uploadColumns[0])
	}
	u.Item = cell(1)
	u.Type = cell(2)
	u.PGR = cell(3)
	u.VendorSupplyingSite = cell(4)
	u.Article = fixArticle(cell(5), cell(6))
	u.ShortText = cell(6)
	u.MdseCat = cell(7)
	u.Site = cell(8)
	u.SLoc = cell(9)

	docDate, err := parseUploadDate(cell(10))
	if err != nil {
		return UploadRow{}, fmt.Errorf("bad %s %q", uploadColumns[10], cell(10))
	}
	u.DocDate = docDate

	u.Quantity, err = parseIntCell(cell(11))
	if err != nil {
		return UploadRow{}, fmt.Errorf("bad %s %q", uploadColumns[11], cell(11))
	}
	u.NetPrice, err = parseDecimalCell(cell(12))
	if err != nil {
		return UploadRow{}, fmt.Errorf("bad %s %q", uploadColumns[12], cell(12))
	}
	u.QtyToBeDelivered, err = parseIntCell(cell(13))
	if err != nil {
		return UploadRow{}, fmt.Errorf("bad %s %q", uploadColumns[13], cell(13))
	}
	u.ValueToBeDelivered, err = parseDecimalCell(cell(14))
	if err != nil {
		return UploadRow{}, fmt.Errorf("bad %s %q", uploadColumns[14], cell(14))
	}
	return u, nil
}

// fixArticle backfills blank article codes from the short text so every
// line stays identifiable downstream.
func fixArticle(article, shortText string) string {
	if article != "" && !strings.EqualFold(article, "nan") {
		return article
	}
	if shortText != "" {
		if len(shortText) > 8 {
			shortText = shortText[:8]
		}
		return "POP-" + shortText
	}
	return fmt.Sprintf("POP-%06d", 100000+rand.Intn(900000))
}

func parseUploadDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(uploadDateFormat, raw); err == nil {
		return t, nil
	}
	// excelize renders date cells per the workbook's own format.
	for _, layout := range []string{"2006-01-02", "01-02-06", "1/2/06 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func parseIntCell(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func parseDecimalCell(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
}

// ImportBatch converts one staged batch into POs and lines. Rows whose PO
// number already exists in the store are skipped wholesale, matching how
// repeat uploads of overlapping extracts are expected to behave.
func (s *Service) ImportBatch(ctx context.Context, rctx shared.RequestContext, batchID string) (ImportResult, error) {
	staged, err := s.repo.UploadRowsForBatch(ctx, batchID)
	if err != nil {
		return ImportResult{}, err
	}
	if len(staged) == 0 {
		return ImportResult{}, fmt.Errorf("%w: upload batch %s", ErrNotFound, batchID)
	}

	brandMap, err := s.repo.BrandTypeMap(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	catMap, err := s.repo.CategoryPrefixMap(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	numbers := make([]string, 0, len(staged))
	seen := make(map[string]struct{}, len(staged))
	for _, u := range staged {
		if _, ok := seen[u.PurchaseOrder]; !ok {
			seen[u.PurchaseOrder] = struct{}{}
			numbers = append(numbers, u.PurchaseOrder)
		}
	}
	existing, err := s.repo.ExistingPONumbers(ctx, numbers)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{BatchID: batchID}
	// Group staged rows into POs, preserving first-seen order.
	type group struct {
		po    PurchaseOrder
		lines []Line
	}
	var order []string
	groups := make(map[string]*group)
	for _, u := range staged {
		if _, skip := existing[u.PurchaseOrder]; skip {
			continue
		}
		g, ok := groups[u.PurchaseOrder]
		if !ok {
			brand, found := brandMap[u.Type]
			if !found {
				brand = u.MdseCat
			}
			g = &group{po: PurchaseOrder{
				PONumber:      u.PurchaseOrder,
				Site:          u.Site,
				Supplier:      u.VendorSupplyingSite,
				Brand:         brand,
				PODate:        u.DocDate,
				LastUpdatedBy: rctx.Actor,
			}}
			groups[u.PurchaseOrder] = g
			order = append(order, u.PurchaseOrder)
		}
		line := Line{
			SAPItemLine:   u.Item,
			Article:       u.Article,
			Qty:           u.QtyToBeDelivered,
			BalanceQty:    u.QtyToBeDelivered,
			TotalValue:    u.ValueToBeDelivered,
			LastUpdatedBy: rctx.Actor,
		}
		prefix := strings.ToUpper(u.MdseCat)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		if catID, ok := catMap[prefix]; ok {
			id := catID
			line.CategoryMappingID = &id
		}
		g.lines = append(g.lines, line)
	}
	for n := range existing {
		result.POsSkipped = append(result.POsSkipped, n)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, number := range order {
			g := groups[number]
			id, err := tx.InsertPO(ctx, g.po)
			if err != nil {
				return fmt.Errorf("po: import %s: %w", number, err)
			}
			result.POsCreated++
			for _, line := range g.lines {
				line.POID = id
				if _, err := tx.InsertLine(ctx, line); err != nil {
					return fmt.Errorf("po: import %s line %s: %w", number, line.SAPItemLine, err)
				}
				result.LinesCreated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	if s.importObserver != nil {
		s.importObserver(result.LinesCreated)
	}
	s.recordAudit(ctx, rctx.Actor, "po.import", 0, map[string]any{
		"batch": batchID, "created": result.POsCreated, "skipped": len(result.POsSkipped),
	})
	return result, nil
}
