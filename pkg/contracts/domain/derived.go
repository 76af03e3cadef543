package domain

// SelectionSet holds the user's column-selection patterns for one evaluation.
// Patterns use the selection mini-language: comma separated names,
// begin-end ranges, or globs with '*'.
type SelectionSet struct {
	Signal string `json:"signal" yaml:"signal"`
	BG1    string `json:"bg1" yaml:"bg1"`
	BG2    string `json:"bg2" yaml:"bg2"`
	Energy string `json:"energy" yaml:"energy"`
	I0     string `json:"i0" yaml:"i0"`
}

// Default patterns for the Pilatus ROI layout of the emission spectrometer
const (
	DefaultSignalPattern = "pl0-pl486"
	DefaultBG1Pattern    = "pl487-pl973"
	DefaultBG2Pattern    = "pl974-pl1460"
	DefaultEnergyPattern = "dcm_energy"
	DefaultI0Pattern     = "I0"
	DefaultFormula       = "(S-(BG1+BG2)/2)/I0"
)

// DefaultSelectionSet returns the stock patterns
func DefaultSelectionSet() SelectionSet {
	return SelectionSet{
		Signal: DefaultSignalPattern,
		BG1:    DefaultBG1Pattern,
		BG2:    DefaultBG2Pattern,
		Energy: DefaultEnergyPattern,
		I0:     DefaultI0Pattern,
	}
}

// WithDefaults fills every empty pattern from the defaults
func (s SelectionSet) WithDefaults() SelectionSet {
	d := DefaultSelectionSet()
	if s.Signal == "" {
		s.Signal = d.Signal
	}
	if s.BG1 == "" {
		s.BG1 = d.BG1
	}
	if s.BG2 == "" {
		s.BG2 = d.BG2
	}
	if s.Energy == "" {
		s.Energy = d.Energy
	}
	if s.I0 == "" {
		s.I0 = d.I0
	}
	return s
}

// Selection is a SelectionSet resolved against one scan's column names.
// Energy and I0 hold the first matching index, or -1 when nothing matched.
type Selection struct {
	Signal      []int    `json:"signal"`
	BG1         []int    `json:"bg1"`
	BG2         []int    `json:"bg2"`
	Energy      int      `json:"energy"`
	I0          int      `json:"i0"`
	I0Group     []int    `json:"i0_group"`
	SignalNames []string `json:"signal_names"`
}

// HasEnergy reports whether an energy column was selected
func (s Selection) HasEnergy() bool { return s.Energy >= 0 }

// HasI0 reports whether a monitor column was selected
func (s Selection) HasI0() bool { return s.I0 >= 0 }

// DerivedTable is a scan's rows with the formula result appended as
// trailing columns.
type DerivedTable struct {
	ScanID    string     `json:"scan_id"`
	Formula   string     `json:"formula"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Selection Selection  `json:"selection"`
	// DerivedFrom is the index of the first appended column in Columns.
	DerivedFrom int `json:"derived_from"`
}

// DerivedColumns returns the indices of the computed columns
func (t *DerivedTable) DerivedColumns() []int {
	idx := make([]int, 0, len(t.Columns)-t.DerivedFrom)
	for i := t.DerivedFrom; i < len(t.Columns); i++ {
		idx = append(idx, i)
	}
	return idx
}

// SpectrumKind names a spectrum preparation mode
type SpectrumKind string

const (
	SpectrumXES   SpectrumKind = "XES"
	SpectrumHERFD SpectrumKind = "HERFD"
	SpectrumRXES  SpectrumKind = "RXES"
)

// Normalization maps raw intensities onto a user-chosen scale:
// y' = y/Value - Base/Value.
type Normalization struct {
	Base  float64 `json:"base"`
	Value float64 `json:"value"`
}

// DefaultNormalization leaves intensities untouched
func DefaultNormalization() Normalization {
	return Normalization{Base: 0, Value: 1}
}

// Apply normalizes a raw count by its monitor value
func (n Normalization) Apply(v, monitor float64) float64 {
	return v/(monitor*n.Value) - n.Base/n.Value
}

// Line is one x/y series of a spectrum
type Line struct {
	Label string    `json:"label"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

// Spectrum is plot-ready numeric data; rendering is left to the caller
type Spectrum struct {
	Kind   SpectrumKind `json:"kind"`
	ScanID string       `json:"scan_id"`
	XLabel string       `json:"x_label"`
	YLabel string       `json:"y_label"`
	Lines  []Line       `json:"lines,omitempty"`
	// Map is set for RXES: Map[row][roi] against X (ROI) and Y (energy).
	Map [][]float64 `json:"map,omitempty"`
	X   []float64   `json:"x,omitempty"`
	Y   []float64   `json:"y,omitempty"`
}
