// Package api contains the HTTP API contracts of specview.
// Version v1 represents the current stable API version.
package api

import (
	"specview/pkg/contracts/domain"
)

// File API Requests

// OpenFileRequest asks the server to parse a scan-log file
type OpenFileRequest struct {
	Path string `json:"path" validate:"required"`
}

// ListFilesRequest lists candidate scan-log files in a directory
type ListFilesRequest struct {
	Dir     string `json:"dir" query:"dir"`
	Pattern string `json:"pattern" query:"pattern"`
}

// Scan API Requests

// SelectRequest resolves a single selection pattern against a scan
type SelectRequest struct {
	Path    string `json:"path" validate:"required"`
	Pattern string `json:"pattern"`
}

// SelectionPatterns carries the five column patterns of an evaluation.
// Empty patterns fall back to the configured defaults.
type SelectionPatterns struct {
	Signal string `json:"signal,omitempty"`
	BG1    string `json:"bg1,omitempty"`
	BG2    string `json:"bg2,omitempty"`
	Energy string `json:"energy,omitempty"`
	I0     string `json:"i0,omitempty"`
}

// SelectionSet converts the request patterns into a domain selection set
func (p SelectionPatterns) SelectionSet() domain.SelectionSet {
	return domain.SelectionSet{
		Signal: p.Signal,
		BG1:    p.BG1,
		BG2:    p.BG2,
		Energy: p.Energy,
		I0:     p.I0,
	}
}

// EvaluateRequest derives the formula columns of one scan
type EvaluateRequest struct {
	Path      string            `json:"path" validate:"required"`
	Selection SelectionPatterns `json:"selection"`
	Formula   string            `json:"formula,omitempty" validate:"omitempty,max=1024"`
	Rows      []int             `json:"rows,omitempty" validate:"omitempty,dive,min=0"`
}

// NormalizationInput rescales spectrum intensities
type NormalizationInput struct {
	Base  float64 `json:"base"`
	Value float64 `json:"value" validate:"ne=0"`
}

// SpectrumRequest prepares XES, HERFD or RXES data for one scan
type SpectrumRequest struct {
	Path          string              `json:"path" validate:"required"`
	Selection     SelectionPatterns   `json:"selection"`
	Kind          string              `json:"kind" validate:"required,oneof=XES HERFD RXES"`
	Sum           bool                `json:"sum"`
	Normalization *NormalizationInput `json:"normalization,omitempty"`
	Rows          []int               `json:"rows,omitempty" validate:"omitempty,dive,min=0"`
}

// NormalizationOrDefault returns the requested normalization, or the identity
func (r SpectrumRequest) NormalizationOrDefault() domain.Normalization {
	if r.Normalization == nil {
		return domain.DefaultNormalization()
	}
	return domain.Normalization{Base: r.Normalization.Base, Value: r.Normalization.Value}
}

// SpectrumExportRequest writes a spectrum as plot data files
type SpectrumExportRequest struct {
	SpectrumRequest
	// Base names the output files; empty uses <file stem>_scan<id>
	Base string `json:"base,omitempty" validate:"omitempty,filename"`
}

// ExportRequest writes scans or derived tables to the export directory
type ExportRequest struct {
	Path      string            `json:"path" validate:"required"`
	Format    string            `json:"format" validate:"omitempty,oneof=csv xlsx"`
	Target    string            `json:"target,omitempty" validate:"omitempty,filename"`
	ScanIDs   []string          `json:"scan_ids,omitempty" validate:"omitempty,dive,scanid"`
	Derived   bool              `json:"derived"`
	Selection SelectionPatterns `json:"selection"`
	Formula   string            `json:"formula,omitempty"`
	BOM       bool              `json:"bom"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool `json:"verbose" query:"verbose"`
}
