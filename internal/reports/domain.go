package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TrackingFilters narrow the freight tracking listing.
type TrackingFilters struct {
	Brands   []string
	Supplier string
	Search   string
	Page     int
	PerPage  int
}

// TrackingRow is one flattened line of the PO to container chain, with the
// latest status of each level resolved alongside.
type TrackingRow struct {
	POID             int64  `json:"poId"`
	POLineID         int64  `json:"poLineId"`
	ShipmentID       *int64 `json:"shipmentId"`
	ShipmentPOLineID *int64 `json:"shipmentPoLineId"`
	ContainerID      *int64 `json:"containerId"`

	PONumber string     `json:"poNumber"`
	Supplier string     `json:"supplier"`
	Brand    string     `json:"brand"`
	PODate   *time.Time `json:"poDate"`
	Incoterm string     `json:"incoterm"`

	Article    string          `json:"article"`
	Category   string          `json:"category"`
	Qty        int64           `json:"qty"`
	BalanceQty int64           `json:"balanceQty"`
	TotalValue decimal.Decimal `json:"totalValue"`

	ShipmentNumber  string     `json:"shipmentNumber"`
	ModeOfTransport string     `json:"modeOfTransport"`
	ShippingLine    string     `json:"shippingLine"`
	BLNumber        string     `json:"blNumber"`
	QtyShipped      *int64     `json:"qtyShipped"`
	ETAWH           *time.Time `json:"etaWh"`
	ETADestination  *time.Time `json:"etaDestination"`

	ContainerNumber string     `json:"containerNumber"`
	QtyInContainer  *int64     `json:"qtyInContainer"`
	ATAWH           *time.Time `json:"ataWh"`

	POStatus               string `json:"poStatus"`
	ShipmentStatus         string `json:"shipmentStatus"`
	ContainerStatus        string `json:"containerStatus"`
	PlannedContainerStatus string `json:"plannedContainerStatus"`
}

// CostByBrandRow aggregates shipment expenses once per shipment, grouped by
// the brand of the POs it carries.
type CostByBrandRow struct {
	Brand                     string          `json:"brand"`
	FreightCost               decimal.Decimal `json:"freightCost"`
	SaberSADDAD               decimal.Decimal `json:"saberSaddad"`
	CustomDuties              decimal.Decimal `json:"customDuties"`
	DemurrageCharges          decimal.Decimal `json:"demurrageCharges"`
	Penalties                 decimal.Decimal `json:"penalties"`
	OtherCharges              decimal.Decimal `json:"otherCharges"`
	YardCharges               decimal.Decimal `json:"yardCharges"`
	DOPortCharges             decimal.Decimal `json:"doPortCharges"`
	ClearanceTransportCharges decimal.Decimal `json:"clearanceTransportCharges"`
	InspectionCharges         decimal.Decimal `json:"inspectionCharges"`
	MAWANICharges             decimal.Decimal `json:"mawaniCharges"`
	TotalExpense              decimal.Decimal `json:"totalExpense"`
	NumShipments              int64           `json:"numShipments"`
	NumContainers             int64           `json:"numContainers"`
	NumArticles               int64           `json:"numArticles"`
	CostPerContainer          decimal.Decimal `json:"costPerContainer"`
}

// CostByShipmentRow is the per-shipment expense breakdown.
type CostByShipmentRow struct {
	ShipmentNumber            string          `json:"shipmentNumber"`
	BLNumber                  string          `json:"blNumber"`
	FreightCost               decimal.Decimal `json:"freightCost"`
	SaberSADDAD               decimal.Decimal `json:"saberSaddad"`
	CustomDuties              decimal.Decimal `json:"customDuties"`
	DemurrageCharges          decimal.Decimal `json:"demurrageCharges"`
	Penalties                 decimal.Decimal `json:"penalties"`
	OtherCharges              decimal.Decimal `json:"otherCharges"`
	YardCharges               decimal.Decimal `json:"yardCharges"`
	DOPortCharges             decimal.Decimal `json:"doPortCharges"`
	ClearanceTransportCharges decimal.Decimal `json:"clearanceTransportCharges"`
	InspectionCharges         decimal.Decimal `json:"inspectionCharges"`
	MAWANICharges             decimal.Decimal `json:"mawaniCharges"`
	TotalExpense              decimal.Decimal `json:"totalExpense"`
}

// LeadTimeRow reports average day counts per tracked interval for a brand.
type LeadTimeRow struct {
	Brand               string  `json:"brand"`
	POToShipmentDays    float64 `json:"poToShipmentDays"`
	ShipmentToPortDays  float64 `json:"shipmentToPortDays"`
	PortToWarehouseDays float64 `json:"portToWarehouseDays"`
	POToWarehouseDays   float64 `json:"poToWarehouseDays"`
}

// FulfillmentRow summarises ordered vs delivered vs in-transit quantity per
// brand. Delivered means contained in a container whose latest status is
// Delivered.
type FulfillmentRow struct {
	Brand          string  `json:"brand"`
	TotalQty       int64   `json:"totalQty"`
	OpenQty        int64   `json:"openQty"`
	DeliveredQty   int64   `json:"deliveredQty"`
	InTransitQty   int64   `json:"inTransitQty"`
	OpenPct        float64 `json:"openPct"`
	DeliveredPct   float64 `json:"deliveredPct"`
	InTransitPct   float64 `json:"inTransitPct"`
}

// StatusCount is one latest-status bucket with its shipment count.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// UpcomingETARow lists a shipment arriving within the lookahead window.
type UpcomingETARow struct {
	ShipmentNumber string     `json:"shipmentNumber"`
	ETA            *time.Time `json:"eta"`
	OriginPort     string     `json:"originPort"`
	DestCountry    string     `json:"destCountry"`
	BLNumber       string     `json:"blNumber"`
	Brand          string     `json:"brand"`
	Containers     int64      `json:"containers"`
}

// PlanStagePair is one (actual stage, planned status) cell before pivoting.
type PlanStagePair struct {
	Stage      string
	PlanStatus string
	Count      int64
}

// PlanStageMatrix is the pivoted plan-vs-stage view: one row per actual
// stage, one column per planned status, with row totals.
type PlanStageMatrix struct {
	PlanColumns []string                    `json:"planColumns"`
	Rows        map[string]map[string]int64 `json:"rows"`
	RowTotals   map[string]int64            `json:"rowTotals"`
}

// planColumnOrder pins the warehouse columns users expect to see first.
// Anything else sorts after, alphabetically.
var planColumnOrder = []string{
	"Planed DTC Delivery", "Planed GES-RYD", "Planed LSC-JED",
	"Planed LSC", "Planed RDC", "Planed JDC",
}

// PivotPlanStage shapes raw (stage, plan, count) pairs into the matrix.
func PivotPlanStage(pairs []PlanStagePair) PlanStageMatrix {
	m := PlanStageMatrix{
		Rows:      make(map[string]map[string]int64),
		RowTotals: make(map[string]int64),
	}
	seen := make(map[string]struct{})
	for _, p := range pairs {
		if m.Rows[p.Stage] == nil {
			m.Rows[p.Stage] = make(map[string]int64)
		}
		m.Rows[p.Stage][p.PlanStatus] += p.Count
		m.RowTotals[p.Stage] += p.Count
		seen[p.PlanStatus] = struct{}{}
	}
	m.PlanColumns = make([]string, 0, len(seen))
	for col := range seen {
		m.PlanColumns = append(m.PlanColumns, col)
	}
	sort.Slice(m.PlanColumns, func(i, j int) bool {
		return planColumnRank(m.PlanColumns[i]).less(planColumnRank(m.PlanColumns[j]))
	})
	return m
}

type planRank struct {
	pos  int
	name string
}

func planColumnRank(name string) planRank {
	for i, known := range planColumnOrder {
		if known == name {
			return planRank{pos: i, name: name}
		}
	}
	return planRank{pos: len(planColumnOrder), name: name}
}

func (a planRank) less(b planRank) bool {
	if a.pos != b.pos {
		return a.pos < b.pos
	}
	return a.name < b.name
}
