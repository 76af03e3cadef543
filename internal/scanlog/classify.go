package scanlog

import (
	"regexp"
	"strings"
)

// LineKind identifies what a scan-log line carries
type LineKind int

const (
	KindOther LineKind = iota
	KindScanStart
	KindExposureTime
	KindMotorNames
	KindMotorPositions
	KindColumnNames
	KindDate
	KindData
)

var kindNames = map[LineKind]string{
	KindOther:          "other",
	KindScanStart:      "scan_start",
	KindExposureTime:   "exposure_time",
	KindMotorNames:     "motor_names",
	KindMotorPositions: "motor_positions",
	KindColumnNames:    "column_names",
	KindDate:           "date",
	KindData:           "data",
}

// String returns the lowercase name used in logs
func (k LineKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Directive prefixes
const (
	prefixScanStart      = "#S"
	prefixExposureTime   = "#T"
	prefixMotorNames     = "#O"
	prefixMotorPositions = "#P"
	prefixColumnNames    = "#L"
	prefixDate           = "#D"
)

var (
	// Data values may also start a line and may carry a sign or exponent.
	valueTokenRe = regexp.MustCompile(`(?:\s|^)([a-zA-Z0-9._+-]+)`)
	// Header tokens must follow whitespace, which skips the directive marker.
	headerTokenRe = regexp.MustCompile(`\s([a-zA-Z0-9._-]+)`)
	scanNumberRe  = regexp.MustCompile(`^#S\s([0-9]+)`)
	exposureRe    = regexp.MustCompile(`\s([0-9]+)(?:\s|$)`)
	dateRe        = regexp.MustCompile(`^#D (.*)$`)
)

// Line is one classified scan-log line
type Line struct {
	Kind LineKind
	// Raw is the line without its terminator
	Raw string
	// Tokens holds the values of data, #O, #P and #L lines
	Tokens []string
	// Value holds the scan number text of #S, the integer of #T and the
	// remainder of #D. HasValue is false when the directive had no match.
	Value    string
	HasValue bool
}

// Classify determines the kind of a single line and extracts its payload.
// Data is tested first, then #O, #P, #S, #T, #L and #D; anything else,
// including blank lines and unknown directives, is KindOther.
func Classify(raw string) Line {
	line := strings.TrimRight(raw, "\r\n")
	l := Line{Kind: KindOther, Raw: line}

	switch {
	case isDataLine(line):
		l.Kind = KindData
		l.Tokens = findTokens(valueTokenRe, line)
	case strings.HasPrefix(line, prefixMotorNames):
		l.Kind = KindMotorNames
		l.Tokens = findTokens(headerTokenRe, line)
	case strings.HasPrefix(line, prefixMotorPositions):
		l.Kind = KindMotorPositions
		l.Tokens = findTokens(headerTokenRe, line)
	case strings.HasPrefix(line, prefixScanStart):
		l.Kind = KindScanStart
		l.Value, l.HasValue = firstSubmatch(scanNumberRe, line)
	case strings.HasPrefix(line, prefixExposureTime):
		l.Kind = KindExposureTime
		l.Value, l.HasValue = firstSubmatch(exposureRe, line)
	case strings.HasPrefix(line, prefixColumnNames):
		l.Kind = KindColumnNames
		l.Tokens = findTokens(headerTokenRe, line)
	case strings.HasPrefix(line, prefixDate):
		l.Kind = KindDate
		l.Value, l.HasValue = firstSubmatch(dateRe, line)
	}

	return l
}

// isDataLine reports whether the line is a measurement row: it must not
// start with '#' and must not be whitespace-only.
func isDataLine(line string) bool {
	if line == "" || line[0] == '#' {
		return false
	}
	return strings.TrimSpace(line) != ""
}

func findTokens(re *regexp.Regexp, line string) []string {
	matches := re.FindAllStringSubmatch(line, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

func firstSubmatch(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
