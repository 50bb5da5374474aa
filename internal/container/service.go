package container

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/status"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Container, []Line, error)
	ListForShipment(ctx context.Context, shipmentID int64) ([]Container, map[int64][]Line, error)
	ContainedVsShipped(ctx context.Context, shipmentID int64) ([]LineTotals, error)
	ContainerIDsForShipment(ctx context.Context, shipmentID int64) ([]int64, error)
	ShipmentIDForContainer(ctx context.Context, containerID int64) (int64, bool, error)
}

// StatusWriter is the slice of the status service the container flow needs.
type StatusWriter interface {
	WriteAt(ctx context.Context, ref status.EntityRef, st string, date time.Time, actor, comment string) (status.Row, error)
}

// Service orchestrates container operations.
type Service struct {
	repo     RepositoryPort
	statuses StatusWriter
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, statuses StatusWriter, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, statuses: statuses, audit: audit, logger: logger}
}

// LineForm allocates quantity from one shipment PO line.
type LineForm struct {
	ShipmentPOLineID int64
	QtyInContainer   int64
}

// Form is one submitted container in a sync. ID zero means new.
type Form struct {
	ID              int64
	ContainerNumber string
	ContainerType   string

	CCDate      *time.Time
	ATAOrigin   *time.Time
	ATDOrigin   *time.Time
	ATADestPort *time.Time
	ATDDestPort *time.Time
	ATAWH       *time.Time
	YardInDate  *time.Time
	YardOutDate *time.Time
	Remarks     string

	Lines []LineForm

	Status            string
	StatusDate        *time.Time
	PlannedStatus     string
	PlannedStatusDate *time.Time
}

// SyncResult reports the outcome of a container sync.
type SyncResult struct {
	ContainerIDs []int64
	Deleted      []string
	Totals       []LineTotals
}

// SyncShipmentContainers reconciles a shipment's containers against the
// submitted set: containers absent from the forms are deleted with their
// lines, the rest are inserted or updated, and each container's line set is
// reconciled the same way. Status writes happen after commit, through the
// ledger, so cascades fire normally.
func (s *Service) SyncShipmentContainers(ctx context.Context, rctx shared.RequestContext, shipmentID int64, forms []Form) (SyncResult, error) {
	for i, form := range forms {
		if strings.TrimSpace(form.ContainerNumber) == "" {
			return SyncResult{}, fmt.Errorf("%w: container %d has no number", shared.ErrValidation, i+1)
		}
		for _, line := range form.Lines {
			if line.QtyInContainer <= 0 {
				return SyncResult{}, fmt.Errorf("%w: container %s has a non-positive line qty", shared.ErrValidation, form.ContainerNumber)
			}
		}
	}

	var result SyncResult
	containerIDs := make([]int64, len(forms))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.ContainersForShipment(ctx, shipmentID)
		if err != nil {
			return err
		}
		submitted := make(map[int64]struct{}, len(forms))
		byNumber := make(map[string]int64, len(existing))
		for _, c := range existing {
			byNumber[c.ContainerNumber] = c.ID
		}
		for _, form := range forms {
			if form.ID > 0 {
				submitted[form.ID] = struct{}{}
			} else if id, ok := byNumber[form.ContainerNumber]; ok {
				submitted[id] = struct{}{}
			}
		}
		for _, c := range existing {
			if _, keep := submitted[c.ID]; !keep {
				if err := tx.DeleteContainer(ctx, c.ID); err != nil {
					return err
				}
				result.Deleted = append(result.Deleted, c.ContainerNumber)
			}
		}

		for i, form := range forms {
			c := Container{
				ID:              form.ID,
				ShipmentID:      shipmentID,
				ContainerNumber: strings.TrimSpace(form.ContainerNumber),
				ContainerType:   form.ContainerType,
				CCDate:          form.CCDate,
				ATAOrigin:       form.ATAOrigin,
				ATDOrigin:       form.ATDOrigin,
				ATADestPort:     form.ATADestPort,
				ATDDestPort:     form.ATDDestPort,
				ATAWH:           form.ATAWH,
				YardInDate:      form.YardInDate,
				YardOutDate:     form.YardOutDate,
				Remarks:         form.Remarks,
				UpdatedBy:       rctx.Actor,
			}
			if c.ID == 0 {
				if id, ok := byNumber[c.ContainerNumber]; ok {
					c.ID = id
				}
			}
			if c.ID == 0 {
				id, err := tx.InsertContainer(ctx, c)
				if err != nil {
					return err
				}
				c.ID = id
			} else {
				if err := tx.UpdateContainer(ctx, c); err != nil {
					return err
				}
			}
			containerIDs[i] = c.ID

			keep := make([]int64, 0, len(form.Lines))
			for _, line := range form.Lines {
				keep = append(keep, line.ShipmentPOLineID)
				if err := tx.UpsertLine(ctx, Line{
					ContainerID:      c.ID,
					ShipmentPOLineID: line.ShipmentPOLineID,
					QtyInContainer:   line.QtyInContainer,
				}); err != nil {
					return err
				}
			}
			if err := tx.DeleteLinesExcept(ctx, c.ID, keep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	result.ContainerIDs = containerIDs

	for i, form := range forms {
		s.writeTrack(ctx, status.ContainerRef(containerIDs[i]), form.Status, form.StatusDate, rctx.Actor)
		s.writeTrack(ctx, status.PlannedContainerRef(containerIDs[i]), form.PlannedStatus, form.PlannedStatusDate, rctx.Actor)
	}

	totals, err := s.repo.ContainedVsShipped(ctx, shipmentID)
	if err != nil {
		return result, err
	}
	result.Totals = totals

	s.recordAudit(ctx, rctx.Actor, "container.sync", shipmentID, map[string]any{
		"containers": len(forms), "deleted": result.Deleted,
	})
	return result, nil
}

func (s *Service) writeTrack(ctx context.Context, ref status.EntityRef, st string, date *time.Time, actor string) {
	if strings.TrimSpace(st) == "" {
		return
	}
	at := time.Now()
	if date != nil {
		at = *date
	}
	if _, err := s.statuses.WriteAt(ctx, ref, st, at, actor, ""); err != nil && s.logger != nil {
		s.logger.Warn("container status write", slog.String("entity", ref.String()), slog.Any("error", err))
	}
}

// Get returns a container and its lines.
func (s *Service) Get(ctx context.Context, id int64) (Container, []Line, error) {
	return s.repo.Get(ctx, id)
}

// ListForShipment returns a shipment's containers, their lines and the
// contained-vs-shipped totals.
func (s *Service) ListForShipment(ctx context.Context, shipmentID int64) ([]Container, map[int64][]Line, []LineTotals, error) {
	containers, lines, err := s.repo.ListForShipment(ctx, shipmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	totals, err := s.repo.ContainedVsShipped(ctx, shipmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	return containers, lines, totals, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "container",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       time.Now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
