package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// Handler serves master data CRUD endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the master data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleListProducts)
		r.Post("/", h.handleCreateProduct)
		r.Get("/{id}", h.handleGetProduct)
		r.Put("/{id}", h.handleUpdateProduct)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.handleListCategories)
		r.Post("/", h.handleCreateCategory)
	})
	r.Route("/branches", func(r chi.Router) {
		r.Get("/", h.handleListBranches)
		r.Post("/", h.handleCreateBranch)
	})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search")}
	if v := q.Get("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		filters.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("available"); v != "" {
		available := v == "true"
		filters.IsActive = &available
	}
	if v := q.Get("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}

	products, total, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": total})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.service.UpdateProduct(r.Context(), id, product); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": categories})
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var category Category
	if err := httpx.DecodeJSON(r, &category); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	created, err := h.service.CreateCategory(r.Context(), category)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.service.ListBranches(r.Context())
	if err != nil {
		h.logger.Error("list branches failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": branches})
}

func (h *Handler) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	var branch Branch
	if err := httpx.DecodeJSON(r, &branch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	created, err := h.service.CreateBranch(r.Context(), branch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}
