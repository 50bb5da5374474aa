package shipment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment groups PO line quantities moving together under one freight
// number. Status lives in the status ledger, never on this row.
type Shipment struct {
	ID              int64
	ShipmentNumber  string
	ModeOfTransport string
	ShippingLine    string
	BLNumber        string

	POD                string
	DestinationCountry string
	OriginPort         string
	OriginCountry      string

	Costs        Costs
	ValueDecByCC decimal.Decimal
	CostRemarks  string

	CCAgent        string
	CcAgentInvoice string
	BiyanNumber    string
	SADDADNumber   string

	ContainerDeadline *time.Time
	ECCDate           *time.Time
	ETAWH             *time.Time
	ETAOrigin         *time.Time
	ETDOrigin         *time.Time
	ETADestination    *time.Time
	ETDDestination    *time.Time

	CreatedBy     string
	CreatedAt     time.Time
	LastUpdatedBy string
	UpdatedAt     time.Time
}

// Costs holds the eleven shipment-level expense columns.
type Costs struct {
	FreightCost               decimal.Decimal
	SaberSADDAD               decimal.Decimal
	CustomDuties              decimal.Decimal
	DemurrageCharges          decimal.Decimal
	Penalties                 decimal.Decimal
	OtherCharges              decimal.Decimal
	YardCharges               decimal.Decimal
	DOPortCharges             decimal.Decimal
	ClearanceTransportCharges decimal.Decimal
	InspectionCharges         decimal.Decimal
	MAWANICharges             decimal.Decimal
}

// Total sums every cost column.
func (c Costs) Total() decimal.Decimal {
	total := c.FreightCost
	for _, d := range []decimal.Decimal{
		c.SaberSADDAD, c.CustomDuties, c.DemurrageCharges, c.Penalties,
		c.OtherCharges, c.YardCharges, c.DOPortCharges,
		c.ClearanceTransportCharges, c.InspectionCharges, c.MAWANICharges,
	} {
		total = total.Add(d)
	}
	return total
}

// POLine links a shipment to a purchase order line with the claimed quantity.
type POLine struct {
	ID            int64
	ShipmentID    int64
	POLineID      int64
	QtyShipped    int64
	ECCDate       *time.Time
	LastUpdatedBy string
	UpdatedAt     time.Time
}

// Invoice is a supplier invoice attached to a shipment.
type Invoice struct {
	ID            int64
	ShipmentID    int64
	InvoiceNumber string
	InvoiceValue  decimal.Decimal
	DocumentPath  string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedBy     string
	UpdatedAt     time.Time
}

// NonPOItem is cargo riding along in a shipment without a tracked PO line.
type NonPOItem struct {
	ID          int64
	ShipmentID  int64
	Supplier    string
	PONumber    string
	SAPItemLine string
	Article     string
	Qty         decimal.Decimal
	Value       decimal.Decimal
	Brand       string
}
