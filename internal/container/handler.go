package container

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// Handler manages container endpoints.
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

// MountRoutes registers container routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("containers.view"))
		r.Get("/shipments/{id}/containers", h.handleListForShipment)
		r.Get("/containers/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("containers.edit"))
		r.Put("/shipments/{id}/containers", h.handleSync)
	})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type lineRequest struct {
	ShipmentPOLineID int64 `json:"shipmentPoLineId" validate:"gt=0"`
	QtyInContainer   int64 `json:"qtyInContainer" validate:"gt=0"`
}

type containerRequest struct {
	ID              int64         `json:"id"`
	ContainerNumber string        `json:"containerNumber" validate:"required"`
	ContainerType   string        `json:"containerType"`
	CCDate          *time.Time    `json:"ccDate"`
	ATAOrigin       *time.Time    `json:"ataOrigin"`
	ATDOrigin       *time.Time    `json:"atdOrigin"`
	ATADestPort     *time.Time    `json:"ataDestPort"`
	ATDDestPort     *time.Time    `json:"atdDestPort"`
	ATAWH           *time.Time    `json:"ataWh"`
	YardInDate      *time.Time    `json:"yardInDate"`
	YardOutDate     *time.Time    `json:"yardOutDate"`
	Remarks         string        `json:"remarks"`
	Lines           []lineRequest `json:"lines"`

	Status            string     `json:"status"`
	StatusDate        *time.Time `json:"statusDate"`
	PlannedStatus     string     `json:"plannedStatus"`
	PlannedStatusDate *time.Time `json:"plannedStatusDate"`
}

type syncRequest struct {
	Containers []containerRequest `json:"containers"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	shipmentID, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "shipment id must be a positive integer")
		return
	}
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	forms := make([]Form, 0, len(req.Containers))
	for _, c := range req.Containers {
		form := Form{
			ID:                c.ID,
			ContainerNumber:   c.ContainerNumber,
			ContainerType:     c.ContainerType,
			CCDate:            c.CCDate,
			ATAOrigin:         c.ATAOrigin,
			ATDOrigin:         c.ATDOrigin,
			ATADestPort:       c.ATADestPort,
			ATDDestPort:       c.ATDDestPort,
			ATAWH:             c.ATAWH,
			YardInDate:        c.YardInDate,
			YardOutDate:       c.YardOutDate,
			Remarks:           c.Remarks,
			Status:            c.Status,
			StatusDate:        c.StatusDate,
			PlannedStatus:     c.PlannedStatus,
			PlannedStatusDate: c.PlannedStatusDate,
		}
		for _, l := range c.Lines {
			form.Lines = append(form.Lines, LineForm{ShipmentPOLineID: l.ShipmentPOLineID, QtyInContainer: l.QtyInContainer})
		}
		forms = append(forms, form)
	}
	rctx := shared.RequestFromContext(r.Context())
	result, err := h.service.SyncShipmentContainers(r.Context(), rctx, shipmentID, forms)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "container id must be a positive integer")
		return
	}
	c, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"container": c, "lines": lines})
}

func (h *Handler) handleListForShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "shipment id must be a positive integer")
		return
	}
	containers, lines, totals, err := h.service.ListForShipment(r.Context(), shipmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"containers": containers,
		"lines":      lines,
		"totals":     totals,
	})
}
