package api

import (
	"time"

	"specview/pkg/contracts/domain"
)

// CatalogResponse summarizes a parsed scan-log file
type CatalogResponse struct {
	Path     string               `json:"path"`
	Digest   string               `json:"digest"`
	ParsedAt time.Time            `json:"parsed_at"`
	Scans    []domain.ScanSummary `json:"scans"`
}

// ScanResponse is the full view of one scan
type ScanResponse struct {
	*domain.Scan
	Motors []domain.Motor `json:"motors"`
}

// SelectResponse lists the columns a pattern resolved to
type SelectResponse struct {
	ScanID   string   `json:"scan_id"`
	Pattern  string   `json:"pattern"`
	Indices  []int    `json:"indices"`
	Names    []string `json:"names"`
	Advisory string   `json:"advisory,omitempty"`
}

// EvaluateResponse carries the derived table and any empty-selection notes
type EvaluateResponse struct {
	Table      *domain.DerivedTable `json:"table"`
	Advisories []string             `json:"advisories,omitempty"`
}

// ExportResponse lists the files written
type ExportResponse struct {
	Format string   `json:"format"`
	Files  []string `json:"files"`
}

// FileEntry is one discovered file
type FileEntry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	ScanLog bool      `json:"scan_log"`
}

// FileListResponse lists discovered scan-log candidates, oldest first
type FileListResponse struct {
	Dir   string      `json:"dir"`
	Files []FileEntry `json:"files"`
	Count int         `json:"count"`
}
