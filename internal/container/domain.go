package container

import "time"

// Container is a physical transport unit assigned to one shipment. Its live
// disposition and destination plan are ledger tracks, not columns here.
type Container struct {
	ID              int64
	ShipmentID      int64
	ContainerNumber string
	ContainerType   string

	// Actual milestone dates.
	CCDate      *time.Time
	ATAOrigin   *time.Time
	ATDOrigin   *time.Time
	ATADestPort *time.Time
	ATDDestPort *time.Time
	ATAWH       *time.Time
	YardInDate  *time.Time
	YardOutDate *time.Time

	Remarks   string
	UpdatedBy string
	UpdatedAt time.Time
}

// Line allocates shipment PO line quantity into a container.
type Line struct {
	ID               int64
	ContainerID      int64
	ShipmentPOLineID int64
	QtyInContainer   int64
}

// LineTotals compares shipped quantity against containerised quantity for
// one shipment PO line. Reported, not enforced.
type LineTotals struct {
	ShipmentPOLineID int64
	QtyShipped       int64
	QtyContained     int64
}
