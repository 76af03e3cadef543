package http

import (
	"context"

	"specview/internal/dataprocessing"
	"specview/internal/files"
	"specview/internal/selection"
	"specview/internal/services"
	"specview/pkg/contracts/domain"
)

// ScanService defines the scan operations the handlers depend on
type ScanService interface {
	Open(ctx context.Context, path string) (*services.Catalog, error)
	Reload(ctx context.Context, path string) (*services.Catalog, error)
	Catalog(ctx context.Context, path string) (*services.Catalog, error)
	Scan(ctx context.Context, path, id string) (*domain.Scan, error)
	Select(ctx context.Context, path, id, pattern string) (*services.SelectResult, error)
	Evaluate(ctx context.Context, path, id string, opts dataprocessing.DeriveOptions) (*domain.DerivedTable, []*selection.Advisory, error)
	Spectrum(ctx context.Context, path, id string, req dataprocessing.SpectrumRequest) (*domain.Spectrum, error)
	ExportSpectrum(ctx context.Context, path, id, base string, req dataprocessing.SpectrumRequest) ([]string, error)
	Export(ctx context.Context, path string, opts services.ExportOptions) ([]string, error)
	ListFiles(ctx context.Context, dir, pattern string) ([]files.FileInfo, error)
}
