package domain

import (
	"sort"
)

// RowNumberColumn is the synthesized leading column of every scan.
const RowNumberColumn = "row_number"

// Scan is one measurement run read from a scan-log file
type Scan struct {
	ID             string     `json:"id" validate:"required"`
	Number         int        `json:"number"`
	Command        string     `json:"command"`
	MotorNames     []string   `json:"motor_names"`
	MotorPositions []string   `json:"motor_positions"`
	ColumnNames    []string   `json:"column_names" validate:"required,min=1"`
	ExposureTime   *string    `json:"exposure_time,omitempty"`
	Date           *string    `json:"date,omitempty"`
	Rows           [][]string `json:"rows"`
	Lines          []string   `json:"-"`
}

// Row returns the row at the given 0-based index
func (s *Scan) Row(i int) ([]string, bool) {
	if i < 0 || i >= len(s.Rows) {
		return nil, false
	}
	return s.Rows[i], true
}

// RowCount returns the number of data rows
func (s *Scan) RowCount() int {
	return len(s.Rows)
}

// Motor is a motor name paired with its position in one scan
type Motor struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// Motors zips motor names with positions, sorted by name.
// Unpaired trailing entries on either side are dropped.
func (s *Scan) Motors() []Motor {
	n := len(s.MotorNames)
	if len(s.MotorPositions) < n {
		n = len(s.MotorPositions)
	}
	motors := make([]Motor, 0, n)
	for i := 0; i < n; i++ {
		motors = append(motors, Motor{Name: s.MotorNames[i], Position: s.MotorPositions[i]})
	}
	sort.SliceStable(motors, func(i, j int) bool {
		if motors[i].Name == motors[j].Name {
			return motors[i].Position < motors[j].Position
		}
		return motors[i].Name < motors[j].Name
	})
	return motors
}

// Summary returns the listing view of the scan
func (s *Scan) Summary() ScanSummary {
	return ScanSummary{
		ID:          s.ID,
		Command:     s.Command,
		RowCount:    len(s.Rows),
		ColumnCount: len(s.ColumnNames),
	}
}

// ScanSummary is the lightweight listing entry for a scan
type ScanSummary struct {
	ID          string `json:"id"`
	Command     string `json:"command"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
}

// ScanCatalog is an insertion-ordered mapping from scan id to scan.
// The zero value is not usable; use NewScanCatalog.
type ScanCatalog struct {
	order []string
	byID  map[string]*Scan
}

// NewScanCatalog creates an empty catalog
func NewScanCatalog() *ScanCatalog {
	return &ScanCatalog{byID: make(map[string]*Scan)}
}

// Put stores a scan. A new id is appended to the iteration order; an existing
// id keeps its position and has its value replaced.
func (c *ScanCatalog) Put(scan *Scan) {
	if _, exists := c.byID[scan.ID]; !exists {
		c.order = append(c.order, scan.ID)
	}
	c.byID[scan.ID] = scan
}

// Get looks up a scan by id
func (c *ScanCatalog) Get(id string) (*Scan, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// IDs returns scan ids in file order
func (c *ScanCatalog) IDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Scans returns scans in file order
func (c *ScanCatalog) Scans() []*Scan {
	scans := make([]*Scan, 0, len(c.order))
	for _, id := range c.order {
		scans = append(scans, c.byID[id])
	}
	return scans
}

// Len returns the number of scans
func (c *ScanCatalog) Len() int {
	return len(c.order)
}

// First returns the first scan in file order
func (c *ScanCatalog) First() (*Scan, bool) {
	if len(c.order) == 0 {
		return nil, false
	}
	return c.byID[c.order[0]], true
}

// Summaries returns the listing view of every scan in file order
func (c *ScanCatalog) Summaries() []ScanSummary {
	out := make([]ScanSummary, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Summary())
	}
	return out
}
