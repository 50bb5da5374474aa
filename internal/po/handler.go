package po

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

// Handler manages purchase order endpoints.
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

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("po.view"))
		r.Get("/pos", h.handleList)
		r.Get("/pos/{id}", h.handleGet)
		r.Get("/po-lines/available", h.handleAvailableLines)
		r.Get("/pos/uploads", h.handleListBatches)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("po.edit"))
		r.Post("/pos", h.handleCreate)
		r.Post("/pos/upload", h.handleUpload)
		r.Post("/pos/uploads/{batch}/import", h.handleImportBatch)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("po.delete"))
		r.Delete("/pos/{id}", h.handleDelete)
		r.Delete("/po-lines/{id}", h.handleDeleteLine)
	})
}

type createLineRequest struct {
	SAPItemLine string          `json:"sapItemLine"`
	Article     string          `json:"article" validate:"required"`
	Qty         int64           `json:"qty" validate:"gt=0"`
	TotalValue  decimal.Decimal `json:"totalValue"`
	CategoryID  *int64          `json:"categoryMappingId"`
}

type createRequest struct {
	PONumber string              `json:"poNumber" validate:"required"`
	Site     string              `json:"site"`
	Supplier string              `json:"supplier" validate:"required"`
	Brand    string              `json:"brand" validate:"required"`
	PODate   time.Time           `json:"poDate" validate:"required"`
	LCStatus string              `json:"lcStatus"`
	LCNumber string              `json:"lcNumber"`
	LCDate   *time.Time          `json:"lcDate"`
	Incoterm string              `json:"incoterm"`
	Lines    []createLineRequest `json:"lines" validate:"required,min=1,dive"`
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
		PO: PurchaseOrder{
			PONumber: req.PONumber,
			Site:     req.Site,
			Supplier: req.Supplier,
			Brand:    req.Brand,
			PODate:   req.PODate,
			LCStatus: req.LCStatus,
			LCNumber: req.LCNumber,
			LCDate:   req.LCDate,
			Incoterm: req.Incoterm,
		},
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, Line{
			SAPItemLine:       line.SAPItemLine,
			Article:           line.Article,
			Qty:               line.Qty,
			TotalValue:        line.TotalValue,
			CategoryMappingID: line.CategoryID,
		})
	}
	rctx := shared.RequestFromContext(r.Context())
	id, err := h.service.CreateWithLines(r.Context(), rctx, in)
	if err != nil {
		h.logger.Error("create po", slog.String("po_number", req.PONumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filters := ListFilters{
		Supplier: r.URL.Query().Get("supplier"),
		Search:   r.URL.Query().Get("search"),
	}
	if brands, ok := r.URL.Query()["brand"]; ok {
		filters.Brands = brands
	}
	rctx := shared.RequestFromContext(r.Context())
	items, total, err := h.service.List(r.Context(), rctx, perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list pos", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	p, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"po": p, "lines": lines})
}

func (h *Handler) handleAvailableLines(w http.ResponseWriter, r *http.Request) {
	rctx := shared.RequestFromContext(r.Context())
	lines, err := h.service.AvailableLines(r.Context(), rctx)
	if err != nil {
		h.logger.Error("available po lines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	confirm := r.URL.Query().Get("confirm") == "true"
	rctx := shared.RequestFromContext(r.Context())
	impact, err := h.service.Delete(r.Context(), rctx, id, confirm)
	if err != nil {
		if !impact.Empty() {
			httpx.JSON(w, http.StatusConflict, map[string]any{
				"error":      shared.UserSafeMessage(err),
				"shipments":  impact.Shipments,
				"containers": impact.Containers,
			})
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	confirm := r.URL.Query().Get("confirm") == "true"
	rctx := shared.RequestFromContext(r.Context())
	impact, err := h.service.DeleteLine(r.Context(), rctx, id, confirm)
	if err != nil {
		if !impact.Empty() {
			httpx.JSON(w, http.StatusConflict, map[string]any{
				"error":      shared.UserSafeMessage(err),
				"shipments":  impact.Shipments,
				"containers": impact.Containers,
			})
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

const maxUploadBytes = 16 << 20

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "file field required")
		return
	}
	defer file.Close()
	rctx := shared.RequestFromContext(r.Context())
	batchID, staged, err := h.service.IngestSpreadsheet(r.Context(), rctx, file)
	if err != nil {
		h.logger.Error("po upload", slog.String("filename", header.Filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"batchId": batchID, "rows": len(staged)})
}

func (h *Handler) handleImportBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch")
	rctx := shared.RequestFromContext(r.Context())
	result, err := h.service.ImportBatch(r.Context(), rctx, batchID)
	if err != nil {
		h.logger.Error("po import", slog.String("batch", batchID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batchId":      result.BatchID,
		"posCreated":   result.POsCreated,
		"linesCreated": result.LinesCreated,
		"posSkipped":   result.POsSkipped,
	})
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.Batches(r.Context())
	if err != nil {
		h.logger.Error("list upload batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}
