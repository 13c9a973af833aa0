package bulkimport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frostline-foods/frostline/internal/observability"
	"github.com/frostline-foods/frostline/internal/platform/httpx"
	"github.com/frostline-foods/frostline/internal/shared"
)

// maxUploadBytes bounds the spreadsheet upload size.
const maxUploadBytes = 10 << 20

// Handler serves the spreadsheet import endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs the import handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/import", h.handleImport)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart upload")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", "file", "file upload required")
		return
	}
	defer file.Close()

	rows, err := ParseCSV(file)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", "file", "file has no data rows")
			return
		}
		h.logger.Error("import parse failed", slog.Any("error", err))
		httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", "file", "file could not be parsed")
		return
	}

	operator := shared.OperatorFromContext(r.Context())
	result := h.service.Import(r.Context(), rows, operator)

	h.metrics.CountImportRows("ok", result.SuccessCount)
	h.metrics.CountImportRows("error", len(result.Errors))
	httpx.JSON(w, http.StatusOK, result)
}
