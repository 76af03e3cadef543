package http

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "specview/internal/errors"
	"specview/internal/files"
	"specview/internal/middleware"
	api "specview/pkg/contracts/api/v1"
)

// FileHandler opens, reloads and lists scan-log files
type FileHandler struct {
	service      ScanService
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewFileHandler creates a new file handler
func NewFileHandler(service ScanService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *FileHandler {
	return &FileHandler{
		service:      service,
		validation:   validation,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "file_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the file routes
func (h *FileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFiles)
	r.Post("/open", h.OpenFile)
	r.Post("/reload", h.ReloadFile)
	return r
}

// ListFiles handles GET /api/files?dir=&pattern=&order=&latest=
//
// order is "oldest" (default) or "newest"; latest=true keeps only the most
// recently modified file.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	pattern := r.URL.Query().Get("pattern")

	order, ok := h.query.ValidateEnum(w, r, "order", []string{"oldest", "newest"}, "oldest")
	if !ok {
		return
	}
	latest, ok := h.query.ValidateBool(w, r, "latest", false)
	if !ok {
		return
	}

	found, err := h.service.ListFiles(r.Context(), dir, pattern)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch {
	case latest:
		if f, ok := files.GetLatestFile(found); ok {
			found = []files.FileInfo{f}
		}
	case order == "newest":
		slices.Reverse(found)
	}

	render.JSON(w, r, api.FileListResponse{
		Dir:   dir,
		Files: fileEntries(found),
		Count: len(found),
	})
}

// OpenFile handles POST /api/files/open
func (h *FileHandler) OpenFile(w http.ResponseWriter, r *http.Request) {
	var req api.OpenFileRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	c, err := h.service.Open(r.Context(), req.Path)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "scan log opened",
		slog.String("path", c.Path),
		slog.Int("scans", c.Scans.Len()),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	w.Header().Set("ETag", etag(c.Digest))
	render.JSON(w, r, catalogResponse(c))
}

// ReloadFile handles POST /api/files/reload
func (h *FileHandler) ReloadFile(w http.ResponseWriter, r *http.Request) {
	var req api.OpenFileRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	c, err := h.service.Reload(r.Context(), req.Path)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag(c.Digest))
	render.JSON(w, r, catalogResponse(c))
}
