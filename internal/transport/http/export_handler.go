package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "specview/internal/errors"
	"specview/internal/exporter"
	"specview/internal/middleware"
	"specview/internal/services"
	api "specview/pkg/contracts/api/v1"
)

// ExportHandler writes scans and derived tables to the export directory
type ExportHandler struct {
	service      ScanService
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates a new export handler
func NewExportHandler(service ScanService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Export handles POST /api/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := exporter.FormatCSV
	if req.Format != "" {
		f, err := exporter.ParseFormat(req.Format)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
			return
		}
		format = f
	}

	written, err := h.service.Export(r.Context(), req.Path, services.ExportOptions{
		Format:    format,
		Target:    req.Target,
		ScanIDs:   req.ScanIDs,
		Derived:   req.Derived,
		Selection: req.Selection.SelectionSet(),
		Formula:   req.Formula,
		BOM:       req.BOM,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.ExportResponse{Format: string(format), Files: written})
}
