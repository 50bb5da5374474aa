package po

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/cargotrail/cargotrail/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []Line, error)
	ListLinesWithBalance(ctx context.Context, brands []string) ([]LineWithBalance, error)
	ReferencingShipments(ctx context.Context, poID int64) ([]string, error)
	ReferencingContainers(ctx context.Context, poID int64) ([]string, error)
	LineReferencingShipments(ctx context.Context, lineID int64) ([]string, error)
	LineReferencingContainers(ctx context.Context, lineID int64) ([]string, error)
	ExistingPONumbers(ctx context.Context, numbers []string) (map[string]struct{}, error)
	BrandTypeMap(ctx context.Context) (map[string]string, error)
	CategoryPrefixMap(ctx context.Context) (map[string]int64, error)
	InsertUploadRows(ctx context.Context, rows []UploadRow) error
	UploadRowsForBatch(ctx context.Context, batchID string) ([]UploadRow, error)
	ListBatches(ctx context.Context) ([]BatchSummary, error)
}

// Service orchestrates purchase order operations.
type Service struct {
	repo           RepositoryPort
	audit          *shared.AuditLogger
	logger         *slog.Logger
	importObserver func(rows int)
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ObserveImports installs a callback fired with the line count of each
// completed batch import.
func (s *Service) ObserveImports(fn func(rows int)) {
	s.importObserver = fn
}

// CreateInput carries a new PO with its lines.
type CreateInput struct {
	PO    PurchaseOrder
	Lines []Line
}

// CreateWithLines inserts a PO and its lines in one transaction.
// BalanceQty always starts equal to Qty.
func (s *Service) CreateWithLines(ctx context.Context, rctx shared.RequestContext, in CreateInput) (int64, error) {
	in.PO.PONumber = strings.TrimSpace(in.PO.PONumber)
	if in.PO.PONumber == "" {
		return 0, fmt.Errorf("%w: po number required", shared.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return 0, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i := range in.Lines {
		if in.Lines[i].Qty <= 0 {
			return 0, fmt.Errorf("%w: line %d qty must be positive", shared.ErrValidation, i+1)
		}
	}
	existing, err := s.repo.ExistingPONumbers(ctx, []string{in.PO.PONumber})
	if err != nil {
		return 0, err
	}
	if _, ok := existing[in.PO.PONumber]; ok {
		return 0, fmt.Errorf("%w: po number %s already exists", shared.ErrConflict, in.PO.PONumber)
	}
	in.PO.LastUpdatedBy = rctx.Actor
	var poID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPO(ctx, in.PO)
		if err != nil {
			return err
		}
		poID = id
		for _, line := range in.Lines {
			line.POID = id
			line.BalanceQty = line.Qty
			line.LastUpdatedBy = rctx.Actor
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, rctx.Actor, "po.create", poID, map[string]any{"po_number": in.PO.PONumber, "lines": len(in.Lines)})
	return poID, nil
}

// List returns purchase orders visible to the caller.
func (s *Service) List(ctx context.Context, rctx shared.RequestContext, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	if filters.Brands == nil {
		filters.Brands = rctx.BrandFilter()
	}
	return s.repo.ListPOs(ctx, limit, offset, filters)
}

// Get returns a PO and its lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, []Line, error) {
	return s.repo.GetPO(ctx, id)
}

// AvailableLines returns lines with remaining balance, scoped to the
// caller's brands.
func (s *Service) AvailableLines(ctx context.Context, rctx shared.RequestContext) ([]LineWithBalance, error) {
	return s.repo.ListLinesWithBalance(ctx, rctx.BrandFilter())
}

// Delete removes a PO and everything hanging off it. When downstream
// shipments or containers exist and confirm is false, it returns the impact
// wrapped in ErrConfirmationRequired and changes nothing.
func (s *Service) Delete(ctx context.Context, rctx shared.RequestContext, id int64, confirm bool) (DeletionImpact, error) {
	if _, _, err := s.repo.GetPO(ctx, id); err != nil {
		return DeletionImpact{}, err
	}
	shipments, err := s.repo.ReferencingShipments(ctx, id)
	if err != nil {
		return DeletionImpact{}, err
	}
	containers, err := s.repo.ReferencingContainers(ctx, id)
	if err != nil {
		return DeletionImpact{}, err
	}
	impact := DeletionImpact{Shipments: shipments, Containers: containers}
	if !impact.Empty() && !confirm {
		return impact, fmt.Errorf("%w: deletion would remove %d shipment(s) and %d container(s)",
			shared.ErrConfirmationRequired, len(shipments), len(containers))
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteContainerLinesForPO(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteShipmentLinesForPO(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteLinesForPO(ctx, id); err != nil {
			return err
		}
		return tx.DeletePO(ctx, id)
	})
	if err != nil {
		return impact, err
	}
	s.recordAudit(ctx, rctx.Actor, "po.delete", id, map[string]any{"shipments": shipments, "containers": containers})
	return impact, nil
}

// DeleteLine removes a single PO line with the same confirmation contract
// as Delete.
func (s *Service) DeleteLine(ctx context.Context, rctx shared.RequestContext, lineID int64, confirm bool) (DeletionImpact, error) {
	shipments, err := s.repo.LineReferencingShipments(ctx, lineID)
	if err != nil {
		return DeletionImpact{}, err
	}
	containers, err := s.repo.LineReferencingContainers(ctx, lineID)
	if err != nil {
		return DeletionImpact{}, err
	}
	impact := DeletionImpact{Shipments: shipments, Containers: containers}
	if !impact.Empty() && !confirm {
		return impact, fmt.Errorf("%w: deletion would remove %d shipment line(s) and %d container line(s)",
			shared.ErrConfirmationRequired, len(shipments), len(containers))
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteContainerLinesForLine(ctx, lineID); err != nil {
			return err
		}
		if err := tx.DeleteShipmentLinesForLine(ctx, lineID); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, lineID)
	})
	if err != nil {
		return impact, err
	}
	s.recordAudit(ctx, rctx.Actor, "po.line.delete", lineID, nil)
	return impact, nil
}

// Batches lists staged upload batches.
func (s *Service) Batches(ctx context.Context) ([]BatchSummary, error) {
	return s.repo.ListBatches(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       time.Now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
