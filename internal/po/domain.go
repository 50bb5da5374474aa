package po

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is the buying-side root entity. PONumber is unique across
// the store and is the natural key the ETL deduplicates on.
type PurchaseOrder struct {
	ID            int64
	PONumber      string
	Site          string
	Supplier      string
	Brand         string
	PODate        time.Time
	LCStatus      string
	LCNumber      string
	LCDate        *time.Time
	Incoterm      string
	LastUpdatedBy string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line is a PO line. BalanceQty starts equal to Qty and is decremented as
// shipment lines claim quantity; it never goes below zero.
type Line struct {
	ID                int64
	POID              int64
	SAPItemLine       string
	Article           string
	Qty               int64
	BalanceQty        int64
	TotalValue        decimal.Decimal
	CategoryMappingID *int64
	LastUpdatedBy     string
}

// LineWithBalance augments a line with PO context for shipment creation.
type LineWithBalance struct {
	Line
	PONumber string
	Brand    string
	Supplier string
	PODate   time.Time
}

// UploadRow is one staged spreadsheet row awaiting ETL confirmation.
type UploadRow struct {
	ID                 int64
	PurchaseOrder      string
	Item               string
	Type               string
	PGR                string
	VendorSupplyingSite string
	Article            string
	ShortText          string
	MdseCat            string
	Site               string
	SLoc               string
	DocDate            time.Time
	Quantity           int64
	NetPrice           decimal.Decimal
	QtyToBeDelivered   int64
	ValueToBeDelivered decimal.Decimal
	UploadBatch        string
	UploadedBy         string
	UploadedAt         time.Time
}

// BatchSummary aggregates one staging batch for the upload screen.
type BatchSummary struct {
	BatchID    string
	UniquePOs  int
	UploadedAt time.Time
	UploadedBy string
}

// ImportResult reports what a batch import actually did.
type ImportResult struct {
	BatchID     string
	POsCreated  int
	LinesCreated int
	POsSkipped  []string
}

// DeletionImpact lists downstream records that a PO or line deletion would
// remove. Callers must confirm before the delete proceeds.
type DeletionImpact struct {
	Shipments  []string
	Containers []string
}

// Empty reports whether nothing downstream references the target.
func (d DeletionImpact) Empty() bool {
	return len(d.Shipments) == 0 && len(d.Containers) == 0
}
