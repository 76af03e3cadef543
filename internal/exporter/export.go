package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"specview/internal/config"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want csv or xlsx)", s)
}

// Exporter writes tables in any supported format
type Exporter struct {
	csv  *CSVWriter
	xlsx *XLSXWriter
	plot *PlotDataWriter
}

// NewExporter creates an exporter writing relative paths into paths.ExportDir
func NewExporter(paths *config.Paths, logger *slog.Logger) *Exporter {
	return &Exporter{
		csv:  NewCSVWriter(paths, logger),
		xlsx: NewXLSXWriter(paths, logger),
		plot: NewPlotDataWriter(paths, logger),
	}
}

// CSV returns the underlying CSV writer
func (e *Exporter) CSV() *CSVWriter { return e.csv }

// PlotData returns the underlying plot data writer
func (e *Exporter) PlotData() *PlotDataWriter { return e.plot }

// Export writes tables to target and returns the files written. XLSX puts
// every table in one workbook. CSV writes target itself for a single table
// and <target stem>_<name>.csv per table otherwise.
func (e *Exporter) Export(format Format, target string, tables []Table, bom bool) ([]string, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to export")
	}

	switch format {
	case FormatXLSX:
		path, err := e.xlsx.WriteWorkbook(withExt(target, ".xlsx"), tables)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil

	case FormatCSV:
		target = withExt(target, ".csv")
		if len(tables) == 1 {
			path, err := e.csv.WriteCSV(target, WriteOptions{
				Headers:   tables[0].Columns,
				Records:   tables[0].Rows,
				BOMPrefix: bom,
			})
			if err != nil {
				return nil, err
			}
			return []string{path}, nil
		}

		stem := strings.TrimSuffix(target, filepath.Ext(target))
		written := make([]string, 0, len(tables))
		for _, t := range tables {
			path, err := e.streamCSV(fmt.Sprintf("%s_%s.csv", stem, safeName(t.Name)), t, bom)
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
		return written, nil
	}

	return nil, fmt.Errorf("unsupported export format %q", format)
}

// streamCSV writes one table of a multi-scan export row by row
func (e *Exporter) streamCSV(path string, t Table, bom bool) (string, error) {
	sw, err := e.csv.CreateStreamWriter(path, t.Columns, bom)
	if err != nil {
		return "", err
	}
	for _, row := range t.Rows {
		if err := sw.WriteRecord(row); err != nil {
			sw.Close()
			return "", fmt.Errorf("write %s row %d: %w", t.Name, sw.Count()+1, err)
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}
	return sw.Path(), nil
}

func withExt(path, ext string) string {
	if strings.EqualFold(filepath.Ext(path), ext) {
		return path
	}
	return path + ext
}
