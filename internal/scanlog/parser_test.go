package scanlog

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "specview/internal/errors"
	"specview/internal/shared/testutil"
)

const twoRunLog = `#F run.spec
#E 1449057600

#O0 th tth
#O1 chi

#S 1 ascan th 0 1 2 1
#D Wed Dec 02 10:00:00 2015
#T 1  (Seconds)
#P0 0.0 12.5
#P1 -3
#L energy I0 pl0 pl1
7000.0 1200 15 17
7000.5 1210 16 18
7001.0 1190 14 19

#S 2 ascan th 0 1 2 1
#P0 0.1 12.6
#L energy I0 pl0 pl1
7000.0 1100 11 12

#S 1 loopscan 3
#O0 phi
#P0 9
#L energy I0 pl0 pl1
6999.0 1000 1 2
`

func parseString(t *testing.T, content string) (*Parser, error) {
	t.Helper()
	p := NewParser(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	_, err := p.Parse(strings.NewReader(content))
	return p, err
}

func TestParse_EndToEnd(t *testing.T) {
	p := NewParser(nil)
	catalog, err := p.Parse(strings.NewReader(twoRunLog))
	require.NoError(t, err)

	assert.Equal(t, []string{"0.1", "0.2", "1.1"}, catalog.IDs())

	first, ok := catalog.Get("0.1")
	require.True(t, ok)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "#S 1 ascan th 0 1 2 1", first.Command)
	assert.Equal(t, []string{"th", "tth", "chi"}, first.MotorNames)
	assert.Equal(t, []string{"0.0", "12.5", "-3"}, first.MotorPositions)
	assert.Equal(t, []string{"row_number", "energy", "I0", "pl0", "pl1"}, first.ColumnNames)
	require.NotNil(t, first.ExposureTime)
	assert.Equal(t, "1", *first.ExposureTime)
	require.NotNil(t, first.Date)
	assert.Equal(t, "Wed Dec 02 10:00:00 2015", *first.Date)
	assert.Equal(t, [][]string{
		{"1", "7000.0", "1200", "15", "17"},
		{"2", "7000.5", "1210", "16", "18"},
		{"3", "7001.0", "1190", "14", "19"},
	}, first.Rows)
	assert.Equal(t, []string{"7000.0 1200 15 17", "7000.5 1210 16 18", "7001.0 1190 14 19"}, first.Lines)

	second, ok := catalog.Get("0.2")
	require.True(t, ok)
	assert.Equal(t, []string{"th", "tth", "chi"}, second.MotorNames, "motor names persist across scans")
	assert.Nil(t, second.ExposureTime)
	assert.Nil(t, second.Date)
	assert.Equal(t, 1, second.RowCount())

	third, ok := catalog.Get("1.1")
	require.True(t, ok)
	assert.Equal(t, []string{"phi"}, third.MotorNames, "a new #O block replaces the names")
	assert.Equal(t, []string{"9"}, third.MotorPositions)
}

func TestParse_RowNumbersAreOneBased(t *testing.T) {
	p := NewParser(nil)
	catalog, err := p.Parse(strings.NewReader(twoRunLog))
	require.NoError(t, err)

	for _, scan := range catalog.Scans() {
		for i := 0; i < scan.RowCount(); i++ {
			row, ok := scan.Row(i)
			require.True(t, ok)
			assert.Equal(t, strconv.Itoa(i+1), row[0], "scan %s row %d", scan.ID, i)
			assert.Len(t, row, len(scan.ColumnNames))
		}
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := NewParser(nil)
	a, err := p.Parse(strings.NewReader(twoRunLog))
	require.NoError(t, err)
	b, err := p.Parse(strings.NewReader(twoRunLog))
	require.NoError(t, err)

	assert.Equal(t, a.IDs(), b.IDs())
	for _, id := range a.IDs() {
		sa, _ := a.Get(id)
		sb, _ := b.Get(id)
		assert.Equal(t, sa, sb)
	}
}

func TestParse_RepeatCounter(t *testing.T) {
	tests := []struct {
		name    string
		numbers []int
		want    []string
	}{
		{"increasing", []int{1, 2, 3}, []string{"0.1", "0.2", "0.3"}},
		{"restart", []int{1, 2, 1, 2}, []string{"0.1", "0.2", "1.1", "1.2"}},
		{"equal numbers", []int{4, 4, 4}, []string{"0.4", "1.4", "2.4"}},
		{"decreasing", []int{5, 3, 1}, []string{"0.5", "1.3", "2.1"}},
		{"scan zero", []int{0, 1}, []string{"1.0", "1.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			for _, n := range tt.numbers {
				sb.WriteString("#S " + strconv.Itoa(n) + " ct\n1 2\n")
			}

			catalog, err := NewParser(nil).Parse(strings.NewReader(sb.String()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, catalog.IDs())
		})
	}
}

func TestParse_MotorNameBlocks(t *testing.T) {
	t.Run("continuation lines extend the block", func(t *testing.T) {
		content := "#O0 a b\n#O1 c\n#S 1 ct\n1\n"
		catalog, err := NewParser(nil).Parse(strings.NewReader(content))
		require.NoError(t, err)
		scan, _ := catalog.First()
		assert.Equal(t, []string{"a", "b", "c"}, scan.MotorNames)
	})

	t.Run("interrupted block resets", func(t *testing.T) {
		content := "#O0 a b\n\n#O1 c\n#S 1 ct\n1\n"
		catalog, err := NewParser(nil).Parse(strings.NewReader(content))
		require.NoError(t, err)
		scan, _ := catalog.First()
		assert.Equal(t, []string{"c"}, scan.MotorNames)
	})

	t.Run("earlier scans keep their names", func(t *testing.T) {
		content := "#O0 a\n#S 1 ct\n1\n#O0 b\n#S 2 ct\n1\n"
		catalog, err := NewParser(nil).Parse(strings.NewReader(content))
		require.NoError(t, err)
		s1, _ := catalog.Get("0.1")
		s2, _ := catalog.Get("0.2")
		assert.Equal(t, []string{"a"}, s1.MotorNames)
		assert.Equal(t, []string{"b"}, s2.MotorNames)
	})
}

func TestParse_FallbackColumns(t *testing.T) {
	catalog, err := NewParser(nil).Parse(strings.NewReader("#S 1 ct\n10 20 30\n11 21 31\n"))
	require.NoError(t, err)

	scan, ok := catalog.First()
	require.True(t, ok)
	assert.Equal(t, []string{"row_number", "col0", "col1", "col2"}, scan.ColumnNames)
	assert.Equal(t, []string{"2", "11", "21", "31"}, scan.Rows[1])
}

func TestParse_EmptyTokenDataLine(t *testing.T) {
	catalog, err := NewParser(nil).Parse(strings.NewReader("#S 1 ct\n #\n5 6\n"))
	require.NoError(t, err)

	scan, ok := catalog.First()
	require.True(t, ok)
	assert.Equal(t, []string{"row_number", "col0", "col1"}, scan.ColumnNames)
	assert.Equal(t, [][]string{{"1", "5", "6"}}, scan.Rows)
}

func TestParse_ScanWithoutDataIsNotMaterialized(t *testing.T) {
	catalog, err := NewParser(nil).Parse(strings.NewReader("#S 1 ct\n#L a\n#S 2 ct\n#L a\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0.2"}, catalog.IDs())
}

func TestParse_InterruptedDataRestartsScan(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	catalog, err := NewParser(logger).Parse(strings.NewReader("#S 1 ct\n#L a\n1\n2\n#C pause\n3\n"))
	require.NoError(t, err)

	scan, _ := catalog.First()
	assert.Equal(t, 1, catalog.Len())
	assert.Equal(t, [][]string{{"1", "3"}}, scan.Rows)
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "scan data restarted")
}

func TestParse_RowWidthMismatchIsLogged(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	_, err := NewParser(logger).Parse(strings.NewReader("#S 1 ct\n#L a b\n1 2\n3\n"))
	require.NoError(t, err)
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "row width differs")
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"scan header without number", "#S ascan\n1 2\n"},
		{"scan number overflows", "#S 99999999999999999999999 ct\n1\n"},
		{"data before any scan", "1 2 3\n#S 1 ct\n1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.content)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMalformedInput), "got %v", err)
		})
	}
}

func TestParse_EmptyInput(t *testing.T) {
	catalog, err := NewParser(nil).Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, catalog.Len())
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.spec")
	require.NoError(t, os.WriteFile(path, []byte(twoRunLog), 0o644))

	catalog, err := NewParser(nil).ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())
}

func TestParseFile_Missing(t *testing.T) {
	_, err := NewParser(nil).ParseFile(filepath.Join(t.TempDir(), "absent.spec"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMalformedInput))
}

func TestParse_LongLines(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("#S 1 ct\n")
	for i := 0; i < 20000; i++ {
		sb.WriteString(" 12345")
	}
	sb.WriteString("\n")

	catalog, err := NewParser(nil).Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	scan, _ := catalog.First()
	assert.Len(t, scan.Rows[0], 20001)
}
