package shipment

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// Handler manages shipment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	access   brandaccess.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, access brandaccess.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: access, validate: validator.New()}
}

// MountRoutes registers shipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("shipments.view"))
		r.Get("/shipments", h.handleList)
		r.Get("/shipments/{id}", h.handleGet)
		r.Get("/shipments/{id}/invoices", h.handleListInvoices)
		r.Get("/shipments/{id}/non-po-items", h.handleListNonPO)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("shipments.edit"))
		r.Post("/shipments", h.handleCreate)
		r.Put("/shipments/{id}", h.handleUpdateDetails)
		r.Put("/shipments/{id}/costs", h.handleUpdateCosts)
		r.Post("/shipments/{id}/lines", h.handleAddLine)
		r.Delete("/shipment-lines/{id}", h.handleRemoveLine)
		r.Delete("/shipments/{id}", h.handleReverse)
		r.Post("/shipments/status-batch", h.handleStatusBatch)
		r.Post("/shipments/{id}/invoices", h.handleAddInvoice)
		r.Put("/invoices/{id}", h.handleUpdateInvoice)
		r.Delete("/invoices/{id}", h.handleDeleteInvoice)
		r.Post("/shipments/{id}/non-po-items", h.handleAddNonPO)
		r.Delete("/non-po-items/{id}", h.handleDeleteNonPO)
	})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type lineRequest struct {
	POLineID   int64      `json:"poLineId" validate:"gt=0"`
	QtyShipped int64      `json:"qtyShipped" validate:"gt=0"`
	ECCDate    *time.Time `json:"eccDate"`
}

type createRequest struct {
	ModeOfTransport    string        `json:"modeOfTransport" validate:"required"`
	ShippingLine       string        `json:"shippingLine"`
	BLNumber           string        `json:"blNumber"`
	POD                string        `json:"pod"`
	DestinationCountry string        `json:"destinationCountry"`
	OriginPort         string        `json:"originPort"`
	OriginCountry      string        `json:"originCountry"`
	CCAgent            string        `json:"ccAgent"`
	ContainerDeadline  *time.Time    `json:"containerDeadline"`
	ECCDate            *time.Time    `json:"eccDate"`
	ETAWH              *time.Time    `json:"etaWh"`
	ETAOrigin          *time.Time    `json:"etaOrigin"`
	ETDOrigin          *time.Time    `json:"etdOrigin"`
	ETADestination     *time.Time    `json:"etaDestination"`
	ETDDestination     *time.Time    `json:"etdDestination"`
	Lines              []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	in := CreateInput{
		Header: Shipment{
			ModeOfTransport:    req.ModeOfTransport,
			ShippingLine:       req.ShippingLine,
			BLNumber:           req.BLNumber,
			POD:                req.POD,
			DestinationCountry: req.DestinationCountry,
			OriginPort:         req.OriginPort,
			OriginCountry:      req.OriginCountry,
			CCAgent:            req.CCAgent,
			ContainerDeadline:  req.ContainerDeadline,
			ECCDate:            req.ECCDate,
			ETAWH:              req.ETAWH,
			ETAOrigin:          req.ETAOrigin,
			ETDOrigin:          req.ETDOrigin,
			ETADestination:     req.ETADestination,
			ETDDestination:     req.ETDDestination,
		},
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{POLineID: line.POLineID, QtyShipped: line.QtyShipped, ECCDate: line.ECCDate})
	}
	rctx := shared.RequestFromContext(r.Context())
	created, err := h.service.Create(r.Context(), rctx, in)
	if err != nil {
		h.logger.Error("create shipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": created.ID, "shipmentNumber": created.ShipmentNumber})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filters := ListFilters{
		Mode:   r.URL.Query().Get("mode"),
		Search: r.URL.Query().Get("search"),
	}
	if brands, ok := r.URL.Query()["brand"]; ok {
		filters.Brands = brands
	}
	rctx := shared.RequestFromContext(r.Context())
	items, total, err := h.service.List(r.Context(), rctx, perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list shipments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	s, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shipment": s, "lines": lines})
}

func (h *Handler) handleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	err := h.service.UpdateDetails(r.Context(), rctx, Shipment{
		ID:                 id,
		ModeOfTransport:    req.ModeOfTransport,
		ShippingLine:       req.ShippingLine,
		BLNumber:           req.BLNumber,
		POD:                req.POD,
		DestinationCountry: req.DestinationCountry,
		OriginPort:         req.OriginPort,
		OriginCountry:      req.OriginCountry,
		CCAgent:            req.CCAgent,
		ContainerDeadline:  req.ContainerDeadline,
		ECCDate:            req.ECCDate,
		ETAWH:              req.ETAWH,
		ETAOrigin:          req.ETAOrigin,
		ETDOrigin:          req.ETDOrigin,
		ETADestination:     req.ETADestination,
		ETDDestination:     req.ETDDestination,
	})
	if err != nil {
		h.logger.Error("update shipment", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id})
}

type costsRequest struct {
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
	ValueDecByCC              decimal.Decimal `json:"valueDecByCc"`
	CostRemarks               string          `json:"costRemarks"`
}

func (h *Handler) handleUpdateCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req costsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	costs := Costs{
		FreightCost:               req.FreightCost,
		SaberSADDAD:               req.SaberSADDAD,
		CustomDuties:              req.CustomDuties,
		DemurrageCharges:          req.DemurrageCharges,
		Penalties:                 req.Penalties,
		OtherCharges:              req.OtherCharges,
		YardCharges:               req.YardCharges,
		DOPortCharges:             req.DOPortCharges,
		ClearanceTransportCharges: req.ClearanceTransportCharges,
		InspectionCharges:         req.InspectionCharges,
		MAWANICharges:             req.MAWANICharges,
	}
	rctx := shared.RequestFromContext(r.Context())
	if err := h.service.UpdateCosts(r.Context(), rctx, id, costs, req.ValueDecByCC, req.CostRemarks); err != nil {
		h.logger.Error("update costs", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id, "totalCost": costs.Total()})
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	lineID, err := h.service.AddLine(r.Context(), rctx, id, LineInput{POLineID: req.POLineID, QtyShipped: req.QtyShipped, ECCDate: req.ECCDate})
	if err != nil {
		h.logger.Error("add shipment line", slog.Int64("shipment_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": lineID})
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	if err := h.service.RemoveLine(r.Context(), rctx, id); err != nil {
		h.logger.Error("remove shipment line", slog.Int64("line_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	if err := h.service.Reverse(r.Context(), rctx, id); err != nil {
		h.logger.Error("reverse shipment", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reversed": id})
}

type statusBatchRequest struct {
	Updates []struct {
		ShipmentID   int64      `json:"shipmentId" validate:"gt=0"`
		Status       string     `json:"status"`
		StatusDate   *time.Time `json:"statusDate"`
		Comment      string     `json:"comment"`
		BiyanNumber  *string    `json:"biyanNumber"`
		SADDADNumber *string    `json:"saddadNumber"`
	} `json:"updates" validate:"required,min=1,dive"`
}

func (h *Handler) handleStatusBatch(w http.ResponseWriter, r *http.Request) {
	var req statusBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	updates := make([]StatusUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, StatusUpdate{
			ShipmentID:   u.ShipmentID,
			Status:       u.Status,
			StatusDate:   u.StatusDate,
			Comment:      u.Comment,
			BiyanNumber:  u.BiyanNumber,
			SADDADNumber: u.SADDADNumber,
		})
	}
	rctx := shared.RequestFromContext(r.Context())
	result, err := h.service.UpdateStatuses(r.Context(), rctx, updates)
	if err != nil {
		h.logger.Error("batch status update", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": result.Updated, "failed": result.Failed})
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	invoices, err := h.service.Invoices(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

type invoiceRequest struct {
	InvoiceNumber string          `json:"invoiceNumber" validate:"required"`
	InvoiceValue  decimal.Decimal `json:"invoiceValue"`
	DocumentPath  string          `json:"documentPath"`
}

func (h *Handler) handleAddInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	invID, err := h.service.AddInvoice(r.Context(), rctx, Invoice{
		ShipmentID:    id,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceValue:  req.InvoiceValue,
		DocumentPath:  req.DocumentPath,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": invID})
}

func (h *Handler) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	err := h.service.UpdateInvoice(r.Context(), rctx, Invoice{
		ID:            id,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceValue:  req.InvoiceValue,
		DocumentPath:  req.DocumentPath,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": id})
}

func (h *Handler) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	if err := h.service.DeleteInvoice(r.Context(), rctx, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) handleListNonPO(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	items, err := h.service.NonPOItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

type nonPORequest struct {
	Supplier    string          `json:"supplier" validate:"required"`
	PONumber    string          `json:"poNumber"`
	SAPItemLine string          `json:"sapItemLine"`
	Article     string          `json:"article" validate:"required"`
	Qty         decimal.Decimal `json:"qty"`
	Value       decimal.Decimal `json:"value"`
	Brand       string          `json:"brand" validate:"required"`
}

func (h *Handler) handleAddNonPO(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req nonPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	itemID, err := h.service.AddNonPOItem(r.Context(), rctx, NonPOItem{
		ShipmentID:  id,
		Supplier:    req.Supplier,
		PONumber:    req.PONumber,
		SAPItemLine: req.SAPItemLine,
		Article:     req.Article,
		Qty:         req.Qty,
		Value:       req.Value,
		Brand:       req.Brand,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": itemID})
}

func (h *Handler) handleDeleteNonPO(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	rctx := shared.RequestFromContext(r.Context())
	if err := h.service.DeleteNonPOItem(r.Context(), rctx, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
