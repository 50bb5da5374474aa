package reports

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// Handler exposes the report projections and exports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  brandaccess.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, access brandaccess.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: access}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("reports.view"))
		r.Get("/reports/tracking", h.handleTracking)
		r.Get("/reports/tracking/export", h.handleTrackingExport)
		r.Get("/reports/costs/by-brand", h.handleCostByBrand)
		r.Get("/reports/costs/by-shipment", h.handleCostByShipment)
		r.Get("/reports/costs/by-shipment/export", h.handleExpenseExport)
		r.Get("/reports/leadtime", h.handleLeadTime)
		r.Get("/reports/fulfillment", h.handleFulfillment)
		r.Get("/reports/plan-stage", h.handlePlanStage)
		r.Get("/reports/shipment-statuses", h.handleShipmentStatuses)
		r.Get("/reports/upcoming-eta", h.handleUpcomingETA)
	})
}

func queryBrands(r *http.Request) []string {
	raw := r.URL.Query().Get("brands")
	if raw == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (h *Handler) handleTracking(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filters := TrackingFilters{
		Brands:   queryBrands(r),
		Supplier: r.URL.Query().Get("supplier"),
		Search:   r.URL.Query().Get("q"),
		Page:     page,
		PerPage:  perPage,
	}
	rctx := shared.RequestFromContext(r.Context())
	rows, total, err := h.service.Tracking(r.Context(), rctx, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows":       rows,
		"pagination": shared.NewPagination(page, perPage, int(total)),
	})
}

func (h *Handler) handleTrackingExport(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	filters := TrackingFilters{
		Brands:   queryBrands(r),
		Supplier: r.URL.Query().Get("supplier"),
		Search:   r.URL.Query().Get("q"),
		Page:     1,
		PerPage:  10000,
	}
	rows, _, err := h.service.Tracking(r.Context(), rctx, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.serveWorkbook(w, ExportTracking(rows), "freight_tracking")
}

func (h *Handler) handleCostByBrand(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	rows, err := h.service.CostByBrand(r.Context(), rctx, queryBrands(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func shipmentNumbersParam(r *http.Request) []string {
	raw := r.URL.Query().Get("shipments")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) handleCostByShipment(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.CostByShipment(r.Context(), shipmentNumbersParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleExpenseExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.CostByShipment(r.Context(), shipmentNumbersParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.serveWorkbook(w, ExportExpenses(rows), "shipment_expenses")
}

func (h *Handler) handleLeadTime(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	rows, err := h.service.LeadTimeByBrand(r.Context(), rctx, queryBrands(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	rows, err := h.service.FulfillmentByBrand(r.Context(), rctx, queryBrands(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handlePlanStage(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	matrix, err := h.service.PlanStage(r.Context(), rctx, queryBrands(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, matrix)
}

func (h *Handler) handleShipmentStatuses(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	rows, err := h.service.ShipmentStatusCounts(r.Context(), rctx, queryBrands(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleUpcomingETA(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	rows, err := h.service.UpcomingETA(r.Context(), rctx, queryBrands(r), days)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) serveWorkbook(w http.ResponseWriter, f *excelize.File, name string) {
	filename := fmt.Sprintf("%s_%s.xlsx", name, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := f.WriteTo(w); err != nil && h.logger != nil {
		h.logger.Error("workbook write", slog.Any("error", err))
	}
}
