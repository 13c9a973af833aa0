package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// Handler serves the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTimeline)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := TimelineFilters{
		TableName:   q.Get("table"),
		RecordID:    q.Get("record_id"),
		Action:      q.Get("action"),
		PerformedBy: q.Get("performed_by"),
	}
	if v := q.Get("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filters.PageSize, _ = strconv.Atoi(v)
	}
	for param, dst := range map[string]*time.Time{"from": &filters.From, "to": &filters.To} {
		if v := q.Get(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", param, "must be an RFC 3339 timestamp")
				return
			}
			*dst = t
		}
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
