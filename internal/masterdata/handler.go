package masterdata

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
)

// Handler manages master data endpoints.
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

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("master.view"))
		r.Get("/lookups/{kind}", h.listLookup)
		r.Get("/brand-types", h.listBrandTypes)
		r.Get("/category-mappings", h.listCategoryMappings)
		r.Get("/article-weights", h.listArticleWeights)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("master.edit"))
		r.Post("/lookups/{kind}", h.saveLookup)
		r.Delete("/lookups/{kind}/{id}", h.deleteLookup)
		r.Post("/brand-types", h.saveBrandType)
		r.Delete("/brand-types/{id}", h.deleteBrandType)
		r.Post("/category-mappings", h.saveCategoryMapping)
		r.Delete("/category-mappings/{id}", h.deleteCategoryMapping)
		r.Post("/article-weights", h.saveArticleWeight)
		r.Delete("/article-weights/{id}", h.deleteArticleWeight)
	})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) listLookup(w http.ResponseWriter, r *http.Request) {
	kind := LookupKind(chi.URLParam(r, "kind"))
	rows, err := h.service.ListLookup(r.Context(), kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type lookupRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required"`
}

func (h *Handler) saveLookup(w http.ResponseWriter, r *http.Request) {
	kind := LookupKind(chi.URLParam(r, "kind"))
	var req lookupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	id, err := h.service.SaveLookup(r.Context(), kind, req.ID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) deleteLookup(w http.ResponseWriter, r *http.Request) {
	kind := LookupKind(chi.URLParam(r, "kind"))
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be a positive integer")
		return
	}
	if err := h.service.DeleteLookup(r.Context(), kind, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) listBrandTypes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListBrandTypes(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type brandTypeRequest struct {
	BrandType string `json:"brand_type" validate:"required"`
	BrandName string `json:"brand_name" validate:"required"`
}

func (h *Handler) saveBrandType(w http.ResponseWriter, r *http.Request) {
	var req brandTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	id, err := h.service.SaveBrandType(r.Context(), BrandType{BrandType: req.BrandType, BrandName: req.BrandName})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) deleteBrandType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be a positive integer")
		return
	}
	if err := h.service.DeleteBrandType(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) listCategoryMappings(w http.ResponseWriter, r *http.Request) {
	sda := r.URL.Query().Get("sda") == "true"
	rows, err := h.service.ListCategoryMappings(r.Context(), sda)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type categoryMappingRequest struct {
	CatCode string `json:"cat_code" validate:"required"`
	CatName string `json:"cat_name" validate:"required"`
	CatDesc string `json:"cat_desc"`
	SubCat  string `json:"sub_cat"`
	SDA     bool   `json:"sda"`
}

func (h *Handler) saveCategoryMapping(w http.ResponseWriter, r *http.Request) {
	var req categoryMappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	id, err := h.service.SaveCategoryMapping(r.Context(), CategoryMapping{
		CatCode: req.CatCode, CatName: req.CatName, CatDesc: req.CatDesc,
		SubCat: req.SubCat, SDA: req.SDA,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) deleteCategoryMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be a positive integer")
		return
	}
	if err := h.service.DeleteCategoryMapping(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) listArticleWeights(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListArticleWeights(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type articleWeightRequest struct {
	Article  string          `json:"article" validate:"required"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

func (h *Handler) saveArticleWeight(w http.ResponseWriter, r *http.Request) {
	var req articleWeightRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	id, err := h.service.SaveArticleWeight(r.Context(), ArticleWeight{Article: req.Article, WeightKg: req.WeightKg})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) deleteArticleWeight(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be a positive integer")
		return
	}
	if err := h.service.DeleteArticleWeight(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
