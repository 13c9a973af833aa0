package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/frostline-foods/frostline/internal/observability"
	"github.com/frostline-foods/frostline/internal/platform/httpx"
	"github.com/frostline-foods/frostline/internal/shared"
)

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/restock", h.handleRestock)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/movements", h.handleMovements)
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	req.PerformedBy = shared.OperatorFromContext(r.Context())

	result, err := h.service.Restock(r.Context(), req)
	if err != nil {
		h.metrics.CountRestock("error")
		h.logger.Error("restock failed",
			slog.Int64("product_id", req.ProductID),
			slog.Int64("branch_id", req.BranchID),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}

	h.metrics.CountRestock("ok")
	h.logger.Info("restock committed",
		slog.Int64("inventory_id", result.InventoryID),
		slog.Int64("batch_id", result.BatchID),
		slog.String("batch_number", result.BatchNumber),
		slog.Int64("quantity", result.QuantityAdded),
		slog.Int("secondary_failures", len(result.Secondary)))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AggregateFilter{}
	if v := q.Get("branch_id"); v != "" {
		filter.BranchID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("product_id"); v != "" {
		filter.ProductID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	aggregates, err := h.service.ListAggregates(r.Context(), filter)
	if err != nil {
		h.logger.Error("list aggregates failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	items := make([]aggregateView, 0, len(aggregates))
	for _, agg := range aggregates {
		items = append(items, aggregateView{Aggregate: agg, Status: agg.StockStatus()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// aggregateView decorates an aggregate with its derived stock status.
type aggregateView struct {
	Aggregate
	Status string `json:"status"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid inventory id")
		return
	}
	agg, err := h.service.GetAggregate(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, aggregateView{Aggregate: agg, Status: agg.StockStatus()})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid inventory id")
		return
	}
	filter := MovementFilter{InventoryID: id}
	if v := r.URL.Query().Get("type"); v != "" {
		filter.Type = MovementType(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": movements, "count": len(movements)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrAggregateNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateBatchNumber), errors.Is(err, ErrBatchNumberExhausted), errors.Is(err, ErrAggregateExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
