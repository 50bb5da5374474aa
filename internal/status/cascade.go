package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ShipmentContainersPort resolves container membership for cascades.
type ShipmentContainersPort interface {
	ContainerIDsForShipment(ctx context.Context, shipmentID int64) ([]int64, error)
	ShipmentIDForContainer(ctx context.Context, containerID int64) (int64, bool, error)
}

// Writer is the slice of Service the reaction rules need.
type Writer interface {
	Write(ctx context.Context, ref EntityRef, status, actor, comment string) (Row, error)
}

const cascadeComment = "Automatic status update"

// ShipmentTransitCascade propagates shipment-level transitions to containers:
// a status containing "sailing" marks every container IN-Transit, one
// containing "under clearance" marks them Under Clearance.
type ShipmentTransitCascade struct {
	Containers ShipmentContainersPort
	Writer     Writer
}

// Name identifies the rule in logs.
func (ShipmentTransitCascade) Name() string { return "shipment-transit" }

// Handle applies the rule. Each container write is independent: a failure is
// collected and reported but does not stop the remaining writes.
func (c ShipmentTransitCascade) Handle(ctx context.Context, evt StatusWritten) error {
	if evt.Ref.Kind != KindShipment {
		return nil
	}
	lowered := strings.ToLower(evt.Status)
	var target string
	switch {
	case strings.Contains(lowered, "sailing"):
		target = StatusInTransit
	case strings.Contains(lowered, "under clearance"):
		target = StatusUnderClearance
	default:
		return nil
	}
	ids, err := c.Containers.ContainerIDsForShipment(ctx, evt.Ref.ID)
	if err != nil {
		return fmt.Errorf("list containers for shipment %d: %w", evt.Ref.ID, err)
	}
	var errs []error
	for _, id := range ids {
		if _, err := c.Writer.Write(ctx, ContainerRef(id), target, evt.Actor, cascadeComment); err != nil {
			errs = append(errs, fmt.Errorf("container %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// AllDeliveredCascade marks a shipment Delivered once every one of its
// containers has latest status exactly Delivered.
type AllDeliveredCascade struct {
	Containers ShipmentContainersPort
	Ledger     LedgerPort
	Writer     Writer
}

// Name identifies the rule in logs.
func (AllDeliveredCascade) Name() string { return "shipment-all-delivered" }

// Handle re-evaluates the parent shipment after any container status write.
func (c AllDeliveredCascade) Handle(ctx context.Context, evt StatusWritten) error {
	if evt.Ref.Kind != KindContainer {
		return nil
	}
	shipmentID, ok, err := c.Containers.ShipmentIDForContainer(ctx, evt.Ref.ID)
	if err != nil {
		return fmt.Errorf("resolve shipment for container %d: %w", evt.Ref.ID, err)
	}
	if !ok {
		return nil
	}
	ids, err := c.Containers.ContainerIDsForShipment(ctx, shipmentID)
	if err != nil {
		return fmt.Errorf("list containers for shipment %d: %w", shipmentID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	latest, err := c.Ledger.LatestBatch(ctx, KindContainer, ids)
	if err != nil {
		return fmt.Errorf("resolve container statuses for shipment %d: %w", shipmentID, err)
	}
	for _, id := range ids {
		row, ok := latest[id]
		if !ok || row.Status != StatusDelivered {
			return nil
		}
	}
	current, ok, err := c.Ledger.Latest(ctx, ShipmentRef(shipmentID))
	if err != nil {
		return fmt.Errorf("resolve shipment %d status: %w", shipmentID, err)
	}
	if ok && current.Status == StatusDelivered {
		return nil
	}
	_, err = c.Writer.Write(ctx, ShipmentRef(shipmentID), StatusDelivered, evt.Actor, cascadeComment)
	return err
}
