package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// Handler serves the read-models over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the analytics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.handleInventoryMetrics)
	r.Get("/expiration", h.handleExpirationMetrics)
	r.Get("/valuation", h.handleValuation)
}

func (h *Handler) handleInventoryMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.InventoryMetrics(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("inventory metrics failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleExpirationMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.ExpirationMetrics(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("expiration metrics failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.Valuation(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("valuation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func parseFilters(r *http.Request) Filters {
	f := Filters{}
	if v := r.URL.Query().Get("branch_id"); v != "" {
		f.BranchID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		f.ProductID, _ = strconv.ParseInt(v, 10, 64)
	}
	return f
}
