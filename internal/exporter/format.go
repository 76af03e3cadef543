package exporter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatPlotValue formats a float the way numpy.savetxt does by default
func formatPlotValue(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.18e", f)
}

// cellValue returns a float64 for numeric cells so spreadsheets store them as
// numbers, and the raw string otherwise
func cellValue(s string) interface{} {
	if s == "" {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return f
}

// safeName keeps letters, digits, dot, dash and underscore and replaces
// everything else with '_'
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
