package status

import (
	"fmt"
	"time"
)

// Kind identifies which entity family a ledger row belongs to. The planned
// container track is a distinct kind: a container's live disposition and its
// destination plan are resolved independently.
type Kind string

const (
	KindPurchaseOrder    Kind = "Purchase Order"
	KindShipment         Kind = "Shipment"
	KindContainer        Kind = "Container"
	KindPlannedContainer Kind = "Planed-Container"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchaseOrder, KindShipment, KindContainer, KindPlannedContainer:
		return true
	}
	return false
}

// EntityRef is a typed reference to a status-bearing entity.
type EntityRef struct {
	Kind Kind
	ID   int64
}

// PurchaseOrderRef builds a reference to a purchase order.
func PurchaseOrderRef(id int64) EntityRef { return EntityRef{Kind: KindPurchaseOrder, ID: id} }

// ShipmentRef builds a reference to a shipment.
func ShipmentRef(id int64) EntityRef { return EntityRef{Kind: KindShipment, ID: id} }

// ContainerRef builds a reference to a container's live status track.
func ContainerRef(id int64) EntityRef { return EntityRef{Kind: KindContainer, ID: id} }

// PlannedContainerRef builds a reference to a container's destination plan track.
func PlannedContainerRef(id int64) EntityRef { return EntityRef{Kind: KindPlannedContainer, ID: id} }

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Row is one append-only ledger entry. Rows are never updated or deleted;
// the current status of an entity is the row with the greatest StatusDate,
// ties broken by the greatest ID.
type Row struct {
	ID         int64
	Ref        EntityRef
	Status     string
	StatusDate time.Time
	UpdatedBy  string
	Comments   string
}

// Well-known status values written by the reaction rules.
const (
	StatusInTransit      = "IN-Transit"
	StatusUnderClearance = "Under Clearance"
	StatusDelivered      = "Delivered"
	StatusStocksNotReady = "Stocks not ready"
)
