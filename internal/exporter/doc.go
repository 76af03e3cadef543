// Package exporter writes scans, derived tables and spectra to files.
//
// This package contains three writers:
//
// CSVWriter: header plus rows, optional UTF-8 BOM for Excel, and a
// StreamWriter for row-at-a-time output.
//
// XLSXWriter: one workbook, one sheet per table, numeric cells stored as
// numbers.
//
// PlotDataWriter: one two-column text file per spectrum line, formatted
// like numpy.savetxt.
//
// Exporter picks CSVWriter or XLSXWriter from a Format.
//
// Example usage:
//
//	exp := exporter.NewExporter(paths, logger)
//	files, err := exp.Export(exporter.FormatXLSX, "run42", []exporter.Table{
//		exporter.ScanTable(scan),
//	}, false)
package exporter
