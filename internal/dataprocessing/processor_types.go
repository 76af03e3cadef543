package dataprocessing

import (
	"specview/internal/selection"
	"specview/pkg/contracts/domain"
)

// Processor defines the interface for deriving computed tables from scans
type Processor interface {
	// Derive resolves the selection, evaluates the formula and returns the
	// scan rows with the computed columns appended
	Derive(scan *domain.Scan, opts DeriveOptions) (*domain.DerivedTable, []*selection.Advisory, error)
}

// DeriveOptions configures a derivation
type DeriveOptions struct {
	// Selection holds the column patterns; empty patterns fall back to defaults
	Selection domain.SelectionSet

	// Formula is evaluated over the selected groups
	Formula string

	// Rows restricts the derivation to these 0-based row indices, in order.
	// Empty means every row.
	Rows []int
}

// DefaultOptions returns the stock patterns and formula
func DefaultOptions() DeriveOptions {
	return DeriveOptions{
		Selection: domain.DefaultSelectionSet(),
		Formula:   domain.DefaultFormula,
	}
}
