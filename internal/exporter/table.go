package exporter

import (
	"specview/pkg/contracts/domain"
)

// Table is a named block of header and rows ready to be written out
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ScanTable exports a scan's raw columns
func ScanTable(scan *domain.Scan) Table {
	return Table{
		Name:    scan.ID,
		Columns: scan.ColumnNames,
		Rows:    scan.Rows,
	}
}

// DerivedTableOf exports a derived table, original and formula columns
func DerivedTableOf(t *domain.DerivedTable) Table {
	return Table{
		Name:    t.ScanID,
		Columns: t.Columns,
		Rows:    t.Rows,
	}
}
