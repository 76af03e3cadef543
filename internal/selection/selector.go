// Package selection resolves column-selection patterns against a scan's
// column names.
//
// A pattern is a comma separated list of groups. Whitespace is ignored.
//
//	pl0-pl486        range: from the column named pl0 through pl486
//	I0               single name
//	pl*              glob: '*' stands for one or more characters
//	energy, pl1-pl9  groups combine
//
// Columns are visited once, left to right, so a range whose end precedes its
// begin selects from begin to the last column, and a range whose begin never
// appears selects nothing.
package selection

import (
	"regexp"
	"strings"
	"unicode"

	apperrors "specview/internal/errors"
	"specview/pkg/contracts/domain"
)

type columnRange struct {
	begin string
	end   string
	open  bool
}

type compiledPattern struct {
	ranges []*columnRange
	globs  []*regexp.Regexp
}

// compile splits a pattern into its range and glob groups. Groups with more
// than one '-' are ignored.
func compile(pattern string) compiledPattern {
	pattern = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, pattern)

	var cp compiledPattern
	for _, group := range strings.Split(pattern, ",") {
		limits := strings.Split(group, "-")
		switch {
		case len(limits) == 2:
			cp.ranges = append(cp.ranges, &columnRange{begin: limits[0], end: limits[1]})
		case len(limits) == 1 && !strings.Contains(group, "*"):
			cp.ranges = append(cp.ranges, &columnRange{begin: group, end: group})
		case len(limits) == 1:
			expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(group), `\*`, ".+") + "$"
			cp.globs = append(cp.globs, regexp.MustCompile(expr))
		}
	}
	return cp
}

// Resolve returns the indices of the columns selected by pattern, in column
// order. Nothing selected yields an empty, non-nil slice.
func Resolve(columns []string, pattern string) []int {
	cp := compile(pattern)
	indices := make([]int, 0)

	for i, name := range columns {
		inside := false
		for _, r := range cp.ranges {
			if r.open {
				inside = true
			}
			if name == r.begin {
				r.open = true
				inside = true
			}
		}
		for _, g := range cp.globs {
			if g.MatchString(name) {
				inside = true
			}
		}

		if inside {
			indices = append(indices, i)
		}

		for _, r := range cp.ranges {
			if name == r.end {
				r.open = false
			}
		}
	}
	return indices
}

// Names maps indices back to column names
func Names(columns []string, indices []int) []string {
	names := make([]string, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(columns) {
			names = append(names, columns[i])
		}
	}
	return names
}

// Advisory reports a pattern that selected nothing. It never fails a call.
type Advisory = apperrors.AppError

// ResolveSet resolves every pattern of a SelectionSet. Energy and I0 keep only
// their first match (-1 when none). The returned advisories name each group
// that selected nothing.
func ResolveSet(columns []string, set domain.SelectionSet) (domain.Selection, []*Advisory) {
	sel := domain.Selection{
		Signal: Resolve(columns, set.Signal),
		BG1:    Resolve(columns, set.BG1),
		BG2:    Resolve(columns, set.BG2),
		Energy: -1,
		I0:     -1,
	}
	sel.SignalNames = Names(columns, sel.Signal)

	var advisories []*Advisory
	add := func(field, pattern string, n int) {
		if n == 0 {
			advisories = append(advisories, apperrors.NewEmptySelectionError(field, pattern))
		}
	}

	energy := Resolve(columns, set.Energy)
	if len(energy) > 0 {
		sel.Energy = energy[0]
	}
	i0 := Resolve(columns, set.I0)
	if len(i0) > 0 {
		sel.I0 = i0[0]
		sel.I0Group = i0[:1]
	} else {
		sel.I0Group = make([]int, 0)
	}

	add("signal", set.Signal, len(sel.Signal))
	if set.BG1 != "" {
		add("bg1", set.BG1, len(sel.BG1))
	}
	if set.BG2 != "" {
		add("bg2", set.BG2, len(sel.BG2))
	}
	add("energy", set.Energy, len(energy))
	add("i0", set.I0, len(i0))

	return sel, advisories
}
