package dataprocessing

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	apperrors "specview/internal/errors"
	"specview/internal/selection"
	"specview/pkg/contracts/domain"
)

var roiNumberRe = regexp.MustCompile(`[0-9]+`)

// ROINumbers extracts the first run of digits from each column name
func ROINumbers(names []string) ([]float64, error) {
	out := make([]float64, 0, len(names))
	for _, name := range names {
		digits := roiNumberRe.FindString(name)
		if digits == "" {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("column %q carries no ROI number", name))
		}
		n, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("column %q has an invalid ROI number", name))
		}
		out = append(out, n)
	}
	return out, nil
}

// SpectrumAnalyzer prepares XES, HERFD and RXES data for plotting
type SpectrumAnalyzer struct {
	logger *slog.Logger
}

// NewSpectrumAnalyzer creates a new spectrum analyzer
func NewSpectrumAnalyzer(logger *slog.Logger) *SpectrumAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpectrumAnalyzer{logger: logger.With(slog.String("component", "spectrum_analyzer"))}
}

// Spectrum dispatches on req.Kind
func (a *SpectrumAnalyzer) Spectrum(scan *domain.Scan, req SpectrumRequest) (*domain.Spectrum, error) {
	if scan == nil {
		return nil, apperrors.NewAppValidationError("scan is required")
	}
	norm := req.Normalization
	if norm == (domain.Normalization{}) {
		norm = domain.DefaultNormalization()
	}
	if norm.Value == 0 {
		return nil, apperrors.NewAppValidationError("normalization value must not be zero")
	}

	rows, err := pickRows(scan, req.Rows)
	if err != nil {
		return nil, err
	}
	sel, advisories := selection.ResolveSet(scan.ColumnNames, req.Selection.WithDefaults())
	for _, adv := range advisories {
		a.logger.Debug(adv.Message, slog.String("scan_id", scan.ID))
	}
	if len(sel.Signal) == 0 {
		return nil, apperrors.NewEmptySelectionError("signal", req.Selection.WithDefaults().Signal)
	}

	t := &numericTable{rows: rows}

	var spectrum *domain.Spectrum
	switch req.Kind {
	case domain.SpectrumXES:
		spectrum, err = xes(t, scan.ColumnNames, sel, norm, req.Sum)
	case domain.SpectrumHERFD:
		spectrum, err = herfd(t, sel, norm, req.Sum)
	case domain.SpectrumRXES:
		spectrum, err = rxes(t, sel)
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown spectrum kind %q", req.Kind))
	}
	if err != nil {
		return nil, err
	}

	spectrum.Kind = req.Kind
	spectrum.ScanID = scan.ID
	a.logger.Debug("spectrum prepared",
		slog.String("scan_id", scan.ID),
		slog.String("kind", string(req.Kind)),
		slog.Int("lines", len(spectrum.Lines)))
	return spectrum, nil
}

// xes plots intensity against ROI number. Columns are taken over the
// contiguous span from the lowest to the highest selected signal column.
func xes(t *numericTable, columns []string, sel domain.Selection, norm domain.Normalization, sum bool) (*domain.Spectrum, error) {
	lo, hi := minMax(sel.Signal)
	span := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		span = append(span, i)
	}
	x, err := ROINumbers(selection.Names(columns, span))
	if err != nil {
		return nil, err
	}

	i0, err := t.monitor(sel)
	if err != nil {
		return nil, err
	}

	spectrum := &domain.Spectrum{XLabel: "ROI", YLabel: "Intensity"}
	if sum {
		y := make([]float64, len(span))
		for r := range t.rows {
			for j, c := range span {
				v, err := t.value(r, c)
				if err != nil {
					return nil, err
				}
				y[j] += v / (i0[r] * norm.Value)
			}
		}
		for j := range y {
			y[j] -= norm.Base / norm.Value
		}
		spectrum.Lines = []domain.Line{{Label: "sum", X: x, Y: y}}
		return spectrum, nil
	}

	spectrum.Lines = make([]domain.Line, 0, len(t.rows))
	for r := range t.rows {
		y := make([]float64, len(span))
		for j, c := range span {
			v, err := t.value(r, c)
			if err != nil {
				return nil, err
			}
			y[j] = norm.Apply(v, i0[r])
		}
		spectrum.Lines = append(spectrum.Lines, domain.Line{Label: "row " + t.rows[r][0], X: x, Y: y})
	}
	return spectrum, nil
}

// herfd plots intensity against incoming energy, one line per ROI or the
// sum over ROIs
func herfd(t *numericTable, sel domain.Selection, norm domain.Normalization, sum bool) (*domain.Spectrum, error) {
	energy, err := t.energy(sel)
	if err != nil {
		return nil, err
	}
	i0, err := t.monitor(sel)
	if err != nil {
		return nil, err
	}

	spectrum := &domain.Spectrum{XLabel: "Incoming energy (keV)", YLabel: "Intensity"}
	if sum {
		y := make([]float64, len(t.rows))
		for r := range t.rows {
			var total float64
			for _, c := range sel.Signal {
				v, err := t.value(r, c)
				if err != nil {
					return nil, err
				}
				total += v / (norm.Value * i0[r])
			}
			y[r] = total - norm.Base/norm.Value
		}
		spectrum.Lines = []domain.Line{{Label: "sum", X: energy, Y: y}}
		return spectrum, nil
	}

	spectrum.Lines = make([]domain.Line, 0, len(sel.Signal))
	for k, c := range sel.Signal {
		y := make([]float64, len(t.rows))
		for r := range t.rows {
			v, err := t.value(r, c)
			if err != nil {
				return nil, err
			}
			y[r] = norm.Apply(v, i0[r])
		}
		spectrum.Lines = append(spectrum.Lines, domain.Line{Label: sel.SignalNames[k], X: energy, Y: y})
	}
	return spectrum, nil
}

// rxes builds the resonant emission map: rows are incoming energies, columns
// are ROIs, values are counts normalized by I0 when a monitor was selected
func rxes(t *numericTable, sel domain.Selection) (*domain.Spectrum, error) {
	energy, err := t.energy(sel)
	if err != nil {
		return nil, err
	}
	x, err := ROINumbers(sel.SignalNames)
	if err != nil {
		return nil, err
	}
	i0, err := t.monitor(sel)
	if err != nil {
		return nil, err
	}

	m := make([][]float64, len(t.rows))
	for r := range t.rows {
		m[r] = make([]float64, len(sel.Signal))
		for k, c := range sel.Signal {
			v, err := t.value(r, c)
			if err != nil {
				return nil, err
			}
			m[r][k] = v / i0[r]
		}
	}

	return &domain.Spectrum{
		XLabel: "ROI",
		YLabel: "Incoming energy (keV)",
		X:      x,
		Y:      energy,
		Map:    m,
	}, nil
}

// numericTable reads scan cells as numbers on demand
type numericTable struct {
	rows [][]string
}

func (t *numericTable) value(r, c int) (float64, error) {
	row := t.rows[r]
	if c < 0 || c >= len(row) {
		return 0, apperrors.NewMalformedInputError(fmt.Sprintf("row %s has no column %d", row[0], c), nil)
	}
	v, err := strconv.ParseFloat(row[c], 64)
	if err != nil {
		return 0, apperrors.NewMalformedInputError(
			fmt.Sprintf("row %s column %d value %q is not numeric", row[0], c, row[c]), err)
	}
	return v, nil
}

func (t *numericTable) column(c int) ([]float64, error) {
	out := make([]float64, len(t.rows))
	for r := range t.rows {
		v, err := t.value(r, c)
		if err != nil {
			return nil, err
		}
		out[r] = v
	}
	return out, nil
}

func (t *numericTable) energy(sel domain.Selection) ([]float64, error) {
	if !sel.HasEnergy() {
		return nil, apperrors.NewEmptySelectionError("energy", "")
	}
	return t.column(sel.Energy)
}

// monitor returns the I0 column, or ones when no monitor was selected
func (t *numericTable) monitor(sel domain.Selection) ([]float64, error) {
	if !sel.HasI0() {
		ones := make([]float64, len(t.rows))
		for i := range ones {
			ones[i] = 1
		}
		return ones, nil
	}
	return t.column(sel.I0)
}

func minMax(indices []int) (int, int) {
	lo, hi := indices[0], indices[0]
	for _, i := range indices[1:] {
		if i < lo {
			lo = i
		}
		if i > hi {
			hi = i
		}
	}
	return lo, hi
}
