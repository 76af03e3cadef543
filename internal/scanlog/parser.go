package scanlog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "specview/internal/errors"
	"specview/pkg/contracts/domain"
)

// maxLineSize bounds a single scan-log line. Area detectors write well over
// a thousand columns per row.
const maxLineSize = 16 * 1024 * 1024

// scanBuilder accumulates the headers of the scan being read. It becomes a
// domain.Scan on the first data line.
type scanBuilder struct {
	id         string
	number     int
	command    string
	positions  []string
	columns    []string
	exposure   *string
	date       *string
	rowCounter int

	// scan is set once the builder has been committed to the catalog
	scan *domain.Scan
}

// Parser folds classified lines into a scan catalog. A Parser may be reused
// but is not safe for concurrent use; each Parse starts from a clean state.
type Parser struct {
	logger *slog.Logger

	lastKind    LineKind
	motorNames  []string
	lastNumber  int
	repeat      int
	current     *scanBuilder
	catalog     *domain.ScanCatalog
	lineNo      int
	rowWarnings int
}

// NewParser creates a parser that logs through the given logger
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger: logger.With(slog.String("component", "scanlog_parser")),
	}
}

// ParseFile opens and parses a scan-log file
func (p *Parser) ParseFile(path string) (*domain.ScanCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewMalformedInputError(fmt.Sprintf("cannot open scan file %s", path), err)
	}
	defer f.Close()

	catalog, err := p.Parse(f)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("scan file parsed",
		slog.String("path", path),
		slog.Int("scans", catalog.Len()),
		slog.Int("lines", p.lineNo))
	return catalog, nil
}

// Parse reads the whole stream and returns the complete catalog. On error no
// partial catalog is returned.
func (p *Parser) Parse(r io.Reader) (*domain.ScanCatalog, error) {
	p.reset()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		p.lineNo++
		if err := p.step(Classify(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewMalformedInputError(
			fmt.Sprintf("failed reading scan log after line %d", p.lineNo), err)
	}

	catalog := p.catalog
	p.catalog = nil
	return catalog, nil
}

func (p *Parser) reset() {
	p.lastKind = KindOther
	p.motorNames = nil
	p.lastNumber = 0
	p.repeat = 0
	p.current = nil
	p.catalog = domain.NewScanCatalog()
	p.lineNo = 0
	p.rowWarnings = 0
}

// step applies one line to the state machine
func (p *Parser) step(line Line) error {
	var err error

	switch line.Kind {
	case KindScanStart:
		err = p.startScan(line)
	case KindMotorNames:
		// Consecutive #O lines continue one block; a new block replaces the names.
		if p.lastKind != KindMotorNames {
			p.motorNames = nil
		}
		p.motorNames = append(p.motorNames, line.Tokens...)
	case KindMotorPositions:
		if p.current != nil {
			p.current.positions = append(p.current.positions, line.Tokens...)
		}
	case KindColumnNames:
		if p.current != nil {
			p.current.columns = append(p.current.columns, line.Tokens...)
		}
	case KindExposureTime:
		if p.current != nil && line.HasValue {
			v := line.Value
			p.current.exposure = &v
		}
	case KindDate:
		if p.current != nil && line.HasValue {
			v := line.Value
			p.current.date = &v
		}
	case KindData:
		err = p.addData(line)
	}

	p.lastKind = line.Kind
	return err
}

func (p *Parser) startScan(line Line) error {
	if !line.HasValue {
		return apperrors.NewMalformedInputError(
			fmt.Sprintf("line %d: scan header has no scan number", p.lineNo), nil).
			WithContext("line", line.Raw)
	}
	number, err := strconv.Atoi(line.Value)
	if err != nil {
		return apperrors.NewMalformedInputError(
			fmt.Sprintf("line %d: invalid scan number %q", p.lineNo, line.Value), err)
	}

	if number <= p.lastNumber {
		p.repeat++
	}
	p.lastNumber = number

	p.current = &scanBuilder{
		id:      fmt.Sprintf("%d.%d", p.repeat, number),
		number:  number,
		command: line.Raw,
	}
	return nil
}

func (p *Parser) addData(line Line) error {
	if p.current == nil {
		return apperrors.NewMalformedInputError(
			fmt.Sprintf("line %d: data line before any scan header", p.lineNo), nil).
			WithContext("line", line.Raw)
	}

	if p.lastKind != KindData {
		p.commitScan()
	}

	b := p.current
	if len(line.Tokens) == 0 {
		return nil
	}

	scan := b.scan
	if len(scan.ColumnNames) == 1 && len(b.columns) == 0 {
		scan.ColumnNames = fallbackColumns(len(line.Tokens))
	}

	row := make([]string, 0, len(line.Tokens)+1)
	row = append(row, strconv.Itoa(b.rowCounter+1))
	row = append(row, line.Tokens...)
	if len(row) != len(scan.ColumnNames) && p.rowWarnings == 0 {
		p.rowWarnings++
		p.logger.Warn("row width differs from column count",
			slog.String("scan_id", scan.ID),
			slog.Int("line", p.lineNo),
			slog.Int("row_width", len(row)),
			slog.Int("columns", len(scan.ColumnNames)))
	}

	scan.Rows = append(scan.Rows, row)
	scan.Lines = append(scan.Lines, strings.TrimSpace(line.Raw))
	b.rowCounter++
	return nil
}

// commitScan materializes the current builder into the catalog. Data that
// resumes after a non-data line starts the scan over under the same id.
func (p *Parser) commitScan() {
	b := p.current

	if b.scan != nil {
		p.logger.Warn("scan data restarted after interruption; earlier rows replaced",
			slog.String("scan_id", b.id),
			slog.Int("line", p.lineNo),
			slog.Int("dropped_rows", len(b.scan.Rows)))
	}

	columns := make([]string, 0, len(b.columns)+1)
	columns = append(columns, domain.RowNumberColumn)
	columns = append(columns, b.columns...)

	scan := &domain.Scan{
		ID:             b.id,
		Number:         b.number,
		Command:        b.command,
		MotorNames:     cloneStrings(p.motorNames),
		MotorPositions: cloneStrings(b.positions),
		ColumnNames:    columns,
		ExposureTime:   b.exposure,
		Date:           b.date,
		Rows:           make([][]string, 0),
		Lines:          make([]string, 0),
	}

	b.scan = scan
	b.rowCounter = 0
	p.catalog.Put(scan)
}

// fallbackColumns names unlabeled data columns col0, col1, ...
func fallbackColumns(n int) []string {
	columns := make([]string, 0, n+1)
	columns = append(columns, domain.RowNumberColumn)
	for i := 0; i < n; i++ {
		columns = append(columns, "col"+strconv.Itoa(i))
	}
	return columns
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
