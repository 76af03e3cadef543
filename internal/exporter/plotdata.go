package exporter

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"specview/internal/config"
	"specview/pkg/contracts/domain"
)

// PlotDataWriter writes spectrum lines as two-column text files that plotting
// tools can load directly
type PlotDataWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewPlotDataWriter creates a new plot data writer
func NewPlotDataWriter(paths *config.Paths, logger *slog.Logger) *PlotDataWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlotDataWriter{
		paths:  paths,
		logger: logger.With(slog.String("component", "plot_data_writer")),
	}
}

// WriteSpectrum writes one file per line, named <base>_<KIND>_<n>.txt with n
// counting from 1. Each file holds "x y" pairs, one per point.
func (w *PlotDataWriter) WriteSpectrum(base string, spectrum *domain.Spectrum) ([]string, error) {
	if spectrum == nil || len(spectrum.Lines) == 0 {
		return nil, fmt.Errorf("spectrum has no lines to export")
	}

	base = resolveExportPath(w.paths, base)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	written := make([]string, 0, len(spectrum.Lines))
	for i, line := range spectrum.Lines {
		path := fmt.Sprintf("%s_%s_%d.txt", base, spectrum.Kind, i+1)
		if err := writeLine(path, line); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.logger.Info("Plot data written",
		slog.String("scan_id", spectrum.ScanID),
		slog.String("kind", string(spectrum.Kind)),
		slog.Int("files", len(written)))
	return written, nil
}

func writeLine(path string, line domain.Line) error {
	if len(line.X) != len(line.Y) {
		return fmt.Errorf("line %q has %d x values and %d y values", line.Label, len(line.X), len(line.Y))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	bw := bufio.NewWriter(file)
	for i := range line.X {
		if _, err := fmt.Fprintf(bw, "%s %s\n", formatPlotValue(line.X[i]), formatPlotValue(line.Y[i])); err != nil {
			file.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
