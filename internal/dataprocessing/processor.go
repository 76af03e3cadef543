package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"

	apperrors "specview/internal/errors"
	"specview/internal/formula"
	"specview/internal/selection"
	"specview/pkg/contracts/domain"
)

// TableProcessor derives formula tables from scans
type TableProcessor struct {
	logger    *slog.Logger
	evaluator *formula.Evaluator
}

// NewTableProcessor creates a new table processor
func NewTableProcessor(logger *slog.Logger) *TableProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableProcessor{
		logger:    logger.With(slog.String("component", "table_processor")),
		evaluator: formula.NewEvaluator(logger),
	}
}

// Derive resolves opts.Selection against the scan columns, reports selections
// that matched nothing, and evaluates the formula over the chosen rows.
// Advisories never fail the call; operand and syntax errors do.
func (p *TableProcessor) Derive(scan *domain.Scan, opts DeriveOptions) (*domain.DerivedTable, []*selection.Advisory, error) {
	if scan == nil {
		return nil, nil, apperrors.NewAppValidationError("scan is required")
	}
	if opts.Formula == "" {
		opts.Formula = domain.DefaultFormula
	}
	set := opts.Selection.WithDefaults()

	sel, advisories := selection.ResolveSet(scan.ColumnNames, set)
	p.logAdvisories(scan.ID, sel, advisories)

	rows, err := pickRows(scan, opts.Rows)
	if err != nil {
		return nil, advisories, err
	}

	res, err := p.evaluator.Evaluate(opts.Formula, formula.Operands{
		S:   sel.Signal,
		BG1: sel.BG1,
		BG2: sel.BG2,
		I0:  sel.I0Group,
	}, rows)
	if err != nil {
		return nil, advisories, err
	}

	columns := make([]string, 0, len(scan.ColumnNames)+res.Width)
	columns = append(columns, scan.ColumnNames...)
	columns = append(columns, derivedNames(sel.SignalNames, res.Width)...)

	return &domain.DerivedTable{
		ScanID:      scan.ID,
		Formula:     opts.Formula,
		Columns:     columns,
		Rows:        res.Rows,
		Selection:   sel,
		DerivedFrom: len(scan.ColumnNames),
	}, advisories, nil
}

func (p *TableProcessor) logAdvisories(scanID string, sel domain.Selection, advisories []*selection.Advisory) {
	if len(sel.Signal) > 0 {
		p.logger.Info("signal columns selected",
			slog.String("scan_id", scanID),
			slog.Int("roi_columns", len(sel.Signal)))
	}
	for _, a := range advisories {
		p.logger.Warn(a.Message,
			slog.String("scan_id", scanID),
			slog.Any("field", a.Context["field"]),
			slog.Any("pattern", a.Context["pattern"]))
	}
}

// pickRows returns the rows at the given indices, or every row
func pickRows(scan *domain.Scan, indices []int) ([][]string, error) {
	if len(indices) == 0 {
		return scan.Rows, nil
	}
	rows := make([][]string, 0, len(indices))
	for _, i := range indices {
		row, ok := scan.Row(i)
		if !ok {
			return nil, apperrors.NewAppValidationError(
				fmt.Sprintf("row index %d out of range for scan %s (%d rows)", i, scan.ID, scan.RowCount()))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// derivedNames labels computed columns after the signal column they came
// from when the widths line up, and by position otherwise
func derivedNames(signalNames []string, width int) []string {
	names := make([]string, width)
	for i := range names {
		if width == len(signalNames) {
			names[i] = "f(" + signalNames[i] + ")"
		} else {
			names[i] = "f" + strconv.Itoa(i)
		}
	}
	return names
}
