package shipment

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/status"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Shipment, int, error)
	Get(ctx context.Context, id int64) (Shipment, []POLine, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	POLineExists(ctx context.Context, shipmentID, poLineID int64) (bool, error)
	ContainerCount(ctx context.Context, shipmentID int64) (int, error)
	ContainerLineCount(ctx context.Context, shipmentPOLineID int64) (int, error)
	UpdateDetails(ctx context.Context, s Shipment) error
	UpdateCosts(ctx context.Context, id int64, costs Costs, valueDecByCC decimal.Decimal, remarks, actor string) error
	UpdateClearanceNumbers(ctx context.Context, id int64, biyan, saddad *string, actor string) error
	ListInvoices(ctx context.Context, shipmentID int64) ([]Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error
	ListNonPOItems(ctx context.Context, shipmentID int64) ([]NonPOItem, error)
	InsertNonPOItem(ctx context.Context, item NonPOItem) (int64, error)
	DeleteNonPOItem(ctx context.Context, id int64) error
}

// StatusWriter is the slice of the status service the shipment flow needs.
type StatusWriter interface {
	Write(ctx context.Context, ref status.EntityRef, st, actor, comment string) (status.Row, error)
	WriteAt(ctx context.Context, ref status.EntityRef, st string, date time.Time, actor, comment string) (status.Row, error)
}

// Service orchestrates shipment operations and the quantity balance.
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

const numberAttempts = 20

// generateNumber produces a unique RFT reference, regenerating on collision.
func (s *Service) generateNumber(ctx context.Context) (string, error) {
	for i := 0; i < numberAttempts; i++ {
		number := fmt.Sprintf("RFT%d", 10000000+rand.Int63n(990000000))
		exists, err := s.repo.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("shipment: could not allocate a unique number after %d attempts", numberAttempts)
}

// LineInput selects a PO line and quantity for a new shipment.
type LineInput struct {
	POLineID   int64
	QtyShipped int64
	ECCDate    *time.Time
}

// CreateInput carries a new shipment.
type CreateInput struct {
	Header Shipment
	Lines  []LineInput
}

// Create allocates a shipment number, claims balance from every selected PO
// line and writes the initial status row. The balance claims are conditional
// updates inside one transaction: any line without enough balance aborts the
// whole creation.
func (s *Service) Create(ctx context.Context, rctx shared.RequestContext, in CreateInput) (Shipment, error) {
	if len(in.Lines) == 0 {
		return Shipment{}, fmt.Errorf("%w: at least one po line required", shared.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for _, line := range in.Lines {
		if line.QtyShipped <= 0 {
			return Shipment{}, fmt.Errorf("%w: qty for po line %d must be positive", shared.ErrValidation, line.POLineID)
		}
		if _, dup := seen[line.POLineID]; dup {
			return Shipment{}, fmt.Errorf("%w: po line %d selected more than once", shared.ErrValidation, line.POLineID)
		}
		seen[line.POLineID] = struct{}{}
	}
	number, err := s.generateNumber(ctx)
	if err != nil {
		return Shipment{}, err
	}
	in.Header.ShipmentNumber = number
	in.Header.CreatedBy = rctx.Actor
	in.Header.LastUpdatedBy = rctx.Actor

	var shipmentID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertShipment(ctx, in.Header)
		if err != nil {
			return err
		}
		shipmentID = id
		for _, line := range in.Lines {
			ok, err := tx.DecrementBalance(ctx, line.POLineID, line.QtyShipped)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: po line %d has insufficient balance for qty %d",
					shared.ErrValidation, line.POLineID, line.QtyShipped)
			}
			_, err = tx.InsertPOLine(ctx, POLine{
				ShipmentID:    id,
				POLineID:      line.POLineID,
				QtyShipped:    line.QtyShipped,
				ECCDate:       line.ECCDate,
				LastUpdatedBy: rctx.Actor,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Shipment{}, err
	}

	if _, err := s.statuses.Write(ctx, status.ShipmentRef(shipmentID), status.StatusStocksNotReady, rctx.Actor, "Shipment created"); err != nil {
		s.logWarn("initial shipment status", shipmentID, err)
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.create", shipmentID, map[string]any{"number": number, "lines": len(in.Lines)})

	in.Header.ID = shipmentID
	return in.Header, nil
}

// List returns shipments visible to the caller.
func (s *Service) List(ctx context.Context, rctx shared.RequestContext, limit, offset int, filters ListFilters) ([]Shipment, int, error) {
	if filters.Brands == nil {
		filters.Brands = rctx.BrandFilter()
	}
	return s.repo.List(ctx, limit, offset, filters)
}

// Get returns a shipment with its PO lines.
func (s *Service) Get(ctx context.Context, id int64) (Shipment, []POLine, error) {
	return s.repo.Get(ctx, id)
}

// AddLine claims balance for one more PO line on an existing shipment.
func (s *Service) AddLine(ctx context.Context, rctx shared.RequestContext, shipmentID int64, in LineInput) (int64, error) {
	if in.QtyShipped <= 0 {
		return 0, fmt.Errorf("%w: qty must be positive", shared.ErrValidation)
	}
	if _, _, err := s.repo.Get(ctx, shipmentID); err != nil {
		return 0, err
	}
	exists, err := s.repo.POLineExists(ctx, shipmentID, in.POLineID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: po line %d is already on this shipment", shared.ErrValidation, in.POLineID)
	}
	var lineID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.DecrementBalance(ctx, in.POLineID, in.QtyShipped)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: po line %d has insufficient balance for qty %d",
				shared.ErrValidation, in.POLineID, in.QtyShipped)
		}
		id, err := tx.InsertPOLine(ctx, POLine{
			ShipmentID:    shipmentID,
			POLineID:      in.POLineID,
			QtyShipped:    in.QtyShipped,
			ECCDate:       in.ECCDate,
			LastUpdatedBy: rctx.Actor,
		})
		if err != nil {
			return err
		}
		lineID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.line.add", shipmentID, map[string]any{"po_line_id": in.POLineID, "qty": in.QtyShipped})
	return lineID, nil
}

// RemoveLine gives the claimed quantity back to the PO line and deletes the
// link. Refused while container lines still draw on it.
func (s *Service) RemoveLine(ctx context.Context, rctx shared.RequestContext, lineID int64) error {
	count, err := s.repo.ContainerLineCount(ctx, lineID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: remove container quantity first (%d container line(s) reference this line)",
			shared.ErrInvalidState, count)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetPOLine(ctx, lineID)
		if err != nil {
			return err
		}
		if err := tx.RestoreBalance(ctx, line.POLineID, line.QtyShipped); err != nil {
			return err
		}
		return tx.DeletePOLine(ctx, lineID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.line.remove", lineID, nil)
	return nil
}

// Reverse unwinds a shipment: every line's quantity is restored and the
// shipment deleted. Refused while containers are still assigned.
func (s *Service) Reverse(ctx context.Context, rctx shared.RequestContext, shipmentID int64) error {
	count, err := s.repo.ContainerCount(ctx, shipmentID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: remove the shipment's %d container(s) first", shared.ErrInvalidState, count)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.POLinesForShipment(ctx, shipmentID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.RestoreBalance(ctx, line.POLineID, line.QtyShipped); err != nil {
				return err
			}
		}
		if err := tx.DeletePOLinesForShipment(ctx, shipmentID); err != nil {
			return err
		}
		return tx.DeleteShipment(ctx, shipmentID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.reverse", shipmentID, nil)
	return nil
}

// UpdateDetails updates header and milestone fields.
func (s *Service) UpdateDetails(ctx context.Context, rctx shared.RequestContext, in Shipment) error {
	in.LastUpdatedBy = rctx.Actor
	if err := s.repo.UpdateDetails(ctx, in); err != nil {
		return err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.update", in.ID, nil)
	return nil
}

// UpdateCosts replaces the eleven cost columns.
func (s *Service) UpdateCosts(ctx context.Context, rctx shared.RequestContext, id int64, costs Costs, valueDecByCC decimal.Decimal, remarks string) error {
	if err := s.repo.UpdateCosts(ctx, id, costs, valueDecByCC, remarks, rctx.Actor); err != nil {
		return err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.costs", id, map[string]any{"total": costs.Total().String()})
	return nil
}

// StatusUpdate is one entry in a batch status update.
type StatusUpdate struct {
	ShipmentID   int64
	Status       string
	StatusDate   *time.Time
	Comment      string
	BiyanNumber  *string
	SADDADNumber *string
}

// BatchStatusResult reports per-shipment outcomes.
type BatchStatusResult struct {
	Updated int
	Failed  map[int64]string
}

// UpdateStatuses writes one status row per shipment through the ledger, so
// cascades fire per entry. Failures do not stop the batch.
func (s *Service) UpdateStatuses(ctx context.Context, rctx shared.RequestContext, updates []StatusUpdate) (BatchStatusResult, error) {
	result := BatchStatusResult{Failed: map[int64]string{}}
	for _, u := range updates {
		if u.Status == "" && u.BiyanNumber == nil && u.SADDADNumber == nil {
			continue
		}
		if u.Status != "" {
			at := time.Now()
			if u.StatusDate != nil {
				at = *u.StatusDate
			}
			if _, err := s.statuses.WriteAt(ctx, status.ShipmentRef(u.ShipmentID), u.Status, at, rctx.Actor, u.Comment); err != nil {
				result.Failed[u.ShipmentID] = err.Error()
				s.logWarn("batch status write", u.ShipmentID, err)
				continue
			}
		}
		if u.BiyanNumber != nil || u.SADDADNumber != nil {
			if err := s.repo.UpdateClearanceNumbers(ctx, u.ShipmentID, u.BiyanNumber, u.SADDADNumber, rctx.Actor); err != nil {
				result.Failed[u.ShipmentID] = err.Error()
				s.logWarn("clearance numbers", u.ShipmentID, err)
				continue
			}
		}
		result.Updated++
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.status.batch", 0, map[string]any{"updated": result.Updated, "failed": len(result.Failed)})
	return result, nil
}

// Invoices

// Invoices lists a shipment's invoices.
func (s *Service) Invoices(ctx context.Context, shipmentID int64) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, shipmentID)
}

// AddInvoice attaches an invoice to a shipment.
func (s *Service) AddInvoice(ctx context.Context, rctx shared.RequestContext, inv Invoice) (int64, error) {
	if inv.InvoiceNumber == "" {
		return 0, fmt.Errorf("%w: invoice number required", shared.ErrValidation)
	}
	inv.CreatedBy = rctx.Actor
	inv.UpdatedBy = rctx.Actor
	id, err := s.repo.InsertInvoice(ctx, inv)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.invoice.add", inv.ShipmentID, map[string]any{"invoice": inv.InvoiceNumber})
	return id, nil
}

// UpdateInvoice edits an invoice.
func (s *Service) UpdateInvoice(ctx context.Context, rctx shared.RequestContext, inv Invoice) error {
	inv.UpdatedBy = rctx.Actor
	return s.repo.UpdateInvoice(ctx, inv)
}

// DeleteInvoice removes an invoice.
func (s *Service) DeleteInvoice(ctx context.Context, rctx shared.RequestContext, id int64) error {
	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.invoice.delete", id, nil)
	return nil
}

// Non-PO items

// NonPOItems lists non-PO cargo for a shipment.
func (s *Service) NonPOItems(ctx context.Context, shipmentID int64) ([]NonPOItem, error) {
	return s.repo.ListNonPOItems(ctx, shipmentID)
}

// AddNonPOItem attaches untracked cargo to a shipment.
func (s *Service) AddNonPOItem(ctx context.Context, rctx shared.RequestContext, item NonPOItem) (int64, error) {
	if item.Article == "" || item.Supplier == "" {
		return 0, fmt.Errorf("%w: supplier and article required", shared.ErrValidation)
	}
	id, err := s.repo.InsertNonPOItem(ctx, item)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, rctx.Actor, "shipment.nonpo.add", item.ShipmentID, map[string]any{"article": item.Article})
	return id, nil
}

// DeleteNonPOItem removes untracked cargo.
func (s *Service) DeleteNonPOItem(ctx context.Context, rctx shared.RequestContext, id int64) error {
	return s.repo.DeleteNonPOItem(ctx, id)
}

func (s *Service) logWarn(msg string, id int64, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Int64("shipment_id", id), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "shipment",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       time.Now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
