package http

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"specview/internal/dataprocessing"
	apierrors "specview/internal/errors"
	"specview/internal/middleware"
	api "specview/pkg/contracts/api/v1"
	"specview/pkg/contracts/domain"
)

type scanCtxKey struct{}

var scanIDPattern = regexp.MustCompile(`^\d+\.\d+$`)

// ScanHandler serves scans, selections, derived tables and spectra
type ScanHandler struct {
	service      ScanService
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewScanHandler creates a new scan handler
func NewScanHandler(service ScanService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ScanHandler {
	return &ScanHandler{
		service:      service,
		validation:   validation,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "scan_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the scan routes
func (h *ScanHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListScans)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.ScanCtx)
		r.Get("/", h.GetScan)
		r.Post("/select", h.Select)
		r.Post("/evaluate", h.Evaluate)
		r.Post("/spectrum", h.Spectrum)
		r.Post("/spectrum/export", h.ExportSpectrum)
	})
	return r
}

// ScanCtx validates the scan id URL parameter and stores it in the context
func (h *ScanHandler) ScanCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !scanIDPattern.MatchString(id) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "scan id must look like 0.1"))
			return
		}
		ctx := context.WithValue(r.Context(), scanCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scanID(r *http.Request) string {
	id, _ := r.Context().Value(scanCtxKey{}).(string)
	return id
}

// ListScans handles GET /api/scans?path=. The response carries the content
// digest as ETag and honours If-None-Match.
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	path, ok := h.query.Required(w, r, "path")
	if !ok {
		return
	}

	c, err := h.service.Catalog(r.Context(), path)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	tag := etag(c.Digest)
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	render.JSON(w, r, catalogResponse(c))
}

// GetScan handles GET /api/scans/{id}?path=
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	path, ok := h.query.Required(w, r, "path")
	if !ok {
		return
	}

	scan, err := h.service.Scan(r.Context(), path, scanID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.ScanResponse{Scan: scan, Motors: scan.Motors()})
}

// Select handles POST /api/scans/{id}/select
func (h *ScanHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Select(r.Context(), req.Path, scanID(r), req.Pattern)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.SelectResponse{
		ScanID:  res.ScanID,
		Pattern: res.Pattern,
		Indices: res.Indices,
		Names:   res.Names,
	}
	if res.Advisory != nil {
		resp.Advisory = res.Advisory.Message
	}
	render.JSON(w, r, resp)
}

// Evaluate handles POST /api/scans/{id}/evaluate
func (h *ScanHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req api.EvaluateRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	table, advisories, err := h.service.Evaluate(r.Context(), req.Path, scanID(r), dataprocessing.DeriveOptions{
		Selection: req.Selection.SelectionSet(),
		Formula:   req.Formula,
		Rows:      req.Rows,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.EvaluateResponse{
		Table:      table,
		Advisories: advisoryMessages(advisories),
	})
}

// Spectrum handles POST /api/scans/{id}/spectrum
func (h *ScanHandler) Spectrum(w http.ResponseWriter, r *http.Request) {
	var req api.SpectrumRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	spectrum, err := h.service.Spectrum(r.Context(), req.Path, scanID(r), spectrumRequest(req))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, spectrum)
}

// ExportSpectrum handles POST /api/scans/{id}/spectrum/export
func (h *ScanHandler) ExportSpectrum(w http.ResponseWriter, r *http.Request) {
	var req api.SpectrumExportRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	written, err := h.service.ExportSpectrum(r.Context(), req.Path, scanID(r), req.Base, spectrumRequest(req.SpectrumRequest))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.ExportResponse{Format: "plot", Files: written})
}

func spectrumRequest(req api.SpectrumRequest) dataprocessing.SpectrumRequest {
	return dataprocessing.SpectrumRequest{
		Kind:          domain.SpectrumKind(req.Kind),
		Selection:     req.Selection.SelectionSet(),
		Sum:           req.Sum,
		Normalization: req.NormalizationOrDefault(),
		Rows:          req.Rows,
	}
}
