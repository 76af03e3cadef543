package dataprocessing

import (
	"specview/pkg/contracts/domain"
)

// Analyzer defines the interface for spectrum preparation
type Analyzer interface {
	// Spectrum prepares plot-ready data for one scan
	Spectrum(scan *domain.Scan, req SpectrumRequest) (*domain.Spectrum, error)
}

// SpectrumRequest configures spectrum preparation
type SpectrumRequest struct {
	Kind domain.SpectrumKind

	// Selection holds the column patterns; empty patterns fall back to defaults
	Selection domain.SelectionSet

	// Sum collapses the per-ROI lines into a single line
	Sum bool

	// Normalization rescales intensities; the zero value means no rescaling
	Normalization domain.Normalization

	// Rows restricts the spectrum to these 0-based row indices
	Rows []int
}
