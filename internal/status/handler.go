package status

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// Handler exposes the status ledger over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  brandaccess.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, access brandaccess.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: access}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny("status.view"))
		r.Get("/status/{kind}/{id}", h.handleCurrent)
		r.Get("/status/{kind}/{id}/history", h.handleHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll("status.write"))
		r.Post("/status/{kind}/{id}", h.handleWrite)
	})
}

type statusPayload struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	EntityID   int64     `json:"entityId"`
	Status     string    `json:"status"`
	StatusDate time.Time `json:"statusDate"`
	UpdatedBy  string    `json:"updatedBy"`
	Comments   string    `json:"comments,omitempty"`
}

func toPayload(row Row) statusPayload {
	return statusPayload{
		ID:         row.ID,
		Kind:       string(row.Ref.Kind),
		EntityID:   row.Ref.ID,
		Status:     row.Status,
		StatusDate: row.StatusDate,
		UpdatedBy:  row.UpdatedBy,
		Comments:   row.Comments,
	}
}

func (h *Handler) refFromRequest(r *http.Request) (EntityRef, bool) {
	kind := Kind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 || !kind.Valid() {
		return EntityRef{}, false
	}
	return EntityRef{Kind: kind, ID: id}, true
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown entity kind or id")
		return
	}
	row, found, err := h.service.Current(r.Context(), ref)
	if err != nil {
		h.logger.Error("current status", slog.String("entity", ref.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !found {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no status recorded")
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(row))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown entity kind or id")
		return
	}
	rows, err := h.service.History(r.Context(), ref)
	if err != nil {
		h.logger.Error("status history", slog.String("entity", ref.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payload := make([]statusPayload, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, toPayload(row))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": payload})
}

type writeRequest struct {
	Status     string     `json:"status" validate:"required"`
	StatusDate *time.Time `json:"statusDate"`
	Comments   string     `json:"comments"`
}

func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown entity kind or id")
		return
	}
	var req writeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if req.Status == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "status is required")
		return
	}
	actor := shared.RequestFromContext(r.Context()).Actor
	at := time.Now()
	if req.StatusDate != nil {
		at = *req.StatusDate
	}
	row, err := h.service.WriteAt(r.Context(), ref, req.Status, at, actor, req.Comments)
	if err != nil {
		h.logger.Error("write status", slog.String("entity", ref.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayload(row))
}
