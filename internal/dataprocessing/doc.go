// Package dataprocessing turns parsed scans into derived tables and
// plot-ready spectra.
//
// # Architecture
//
// The package has two components:
//
// 1. TableProcessor: resolves a SelectionSet against a scan, evaluates the
// intensity formula and appends the result columns to the scan rows
// 2. SpectrumAnalyzer: prepares XES, HERFD and RXES data from the selected
// signal, energy and monitor columns
//
// Rendering is left to the caller; spectra are plain slices.
//
// # Usage
//
//	processor := dataprocessing.NewTableProcessor(logger)
//	table, advisories, err := processor.Derive(scan, dataprocessing.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//
//	analyzer := dataprocessing.NewSpectrumAnalyzer(logger)
//	spectrum, err := analyzer.Spectrum(scan, dataprocessing.SpectrumRequest{
//	    Kind: domain.SpectrumHERFD,
//	    Sum:  true,
//	})
package dataprocessing
