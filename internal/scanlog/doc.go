// Package scanlog reads the line-oriented scan-log format written by the
// beamline acquisition controller and builds a domain.ScanCatalog from it.
//
// A file is a sequence of scans. Each scan opens with a "#S" header and is
// followed by optional metadata directives and then whitespace separated
// data rows:
//
//	#O0 th tth chi
//	#S 1 ascan th 0 1 10 1
//	#D Wed Dec 02 10:00:00 2015
//	#T 1  (Seconds)
//	#P0 0.0 12.5 -3
//	#L energy I0 pl0 pl1
//	7000.0 1200 15 17
//	7000.5 1210 16 18
//
// # Components
//
// Classify turns one raw line into a Line with its kind and tokens.
//
// Parser is the state machine that folds classified lines into scans. A
// scan is materialized when its first data line is seen; every data line
// then appends one row whose first cell is the 1-based row number.
//
// Scan ids are "<repeat>.<number>". The repeat counter starts at 0 and is
// incremented whenever a scan number does not exceed the previous one, so
// concatenated runs that restart numbering stay distinct.
//
// # Usage
//
//	parser := scanlog.NewParser(logger)
//	catalog, err := parser.ParseFile("run42.spec")
//	if err != nil {
//	    return err
//	}
//	for _, scan := range catalog.Scans() {
//	    fmt.Println(scan.ID, scan.RowCount())
//	}
package scanlog
