package masterdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// LookupKind names one of the simple name lookup tables.
type LookupKind string

const (
	KindIncoterm         LookupKind = "incoterms"
	KindTransportMode    LookupKind = "transport_modes"
	KindOriginPort       LookupKind = "origin_ports"
	KindDestinationPort  LookupKind = "destination_ports"
	KindShippingLine     LookupKind = "shipping_lines"
	KindCustomsAgent     LookupKind = "customs_agents"
	KindCargoType        LookupKind = "cargo_types"
)

// lookupTables whitelists the kinds a request may address. Table names are
// never taken from user input directly.
var lookupTables = map[LookupKind]string{
	KindIncoterm:        "incoterms",
	KindTransportMode:   "transport_modes",
	KindOriginPort:      "origin_ports",
	KindDestinationPort: "destination_ports",
	KindShippingLine:    "shipping_lines",
	KindCustomsAgent:    "customs_agents",
	KindCargoType:       "cargo_types",
}

// Valid reports whether the kind maps to a known table.
func (k LookupKind) Valid() bool {
	_, ok := lookupTables[k]
	return ok
}

// Lookup is one row of a simple name lookup.
type Lookup struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BrandType maps an upload Type code to the real brand name during import.
type BrandType struct {
	ID        int64  `json:"id"`
	BrandType string `json:"brand_type"`
	BrandName string `json:"brand_name"`
}

// CategoryMapping resolves a three letter merchandise category prefix to a
// category. SDA rows hold the secondary assortment mapping.
type CategoryMapping struct {
	ID      int64  `json:"id"`
	CatCode string `json:"cat_code"`
	CatName string `json:"cat_name"`
	CatDesc string `json:"cat_desc"`
	SubCat  string `json:"sub_cat"`
	SDA     bool   `json:"sda"`
}

// ArticleWeight carries the per-article weight used for freight estimates.
type ArticleWeight struct {
	ID       int64           `json:"id"`
	Article  string          `json:"article"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}
