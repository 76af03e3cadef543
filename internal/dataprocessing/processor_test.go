package dataprocessing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "specview/internal/errors"
	"specview/internal/shared/testutil"
	"specview/pkg/contracts/domain"
)

func newTestScan() *domain.Scan {
	return &domain.Scan{
		ID:          "0.1",
		Number:      1,
		Command:     "#S 1 ascan",
		ColumnNames: []string{"row_number", "dcm_energy", "I0", "pl0", "pl1", "pl2", "pl3", "pl4", "pl5"},
		Rows: [][]string{
			{"1", "7.0", "2", "10", "20", "1", "2", "3", "4"},
			{"2", "7.5", "4", "30", "40", "5", "6", "7", "8"},
			{"3", "8.0", "1", "5", "6", "1", "1", "1", "1"},
		},
	}
}

var testSelection = domain.SelectionSet{
	Signal: "pl0-pl1",
	BG1:    "pl2-pl3",
	BG2:    "pl4-pl5",
	Energy: "dcm_energy",
	I0:     "I0",
}

func TestTableProcessor_Derive(t *testing.T) {
	p := NewTableProcessor(nil)

	table, advisories, err := p.Derive(newTestScan(), DeriveOptions{
		Selection: testSelection,
		Formula:   domain.DefaultFormula,
	})
	require.NoError(t, err)
	assert.Empty(t, advisories)

	assert.Equal(t, "0.1", table.ScanID)
	assert.Equal(t, 9, table.DerivedFrom)
	assert.Equal(t, []string{"f(pl0)", "f(pl1)"}, table.Columns[9:])
	assert.Equal(t, []int{9, 10}, table.DerivedColumns())
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"4", "8.5"}, table.Rows[0][9:])
	assert.Equal(t, []string{"6", "8.25"}, table.Rows[1][9:])
	assert.Equal(t, []int{3, 4}, table.Selection.Signal)
}

func TestTableProcessor_DeriveSubsetOfRows(t *testing.T) {
	p := NewTableProcessor(nil)

	table, _, err := p.Derive(newTestScan(), DeriveOptions{
		Selection: testSelection,
		Formula:   "S-BG1",
		Rows:      []int{2, 0},
	})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "3", table.Rows[0][0])
	assert.Equal(t, []string{"4", "5"}, table.Rows[0][9:])
	assert.Equal(t, []string{"9", "18"}, table.Rows[1][9:])
}

func TestTableProcessor_DeriveWidthLabels(t *testing.T) {
	p := NewTableProcessor(nil)

	table, _, err := p.Derive(newTestScan(), DeriveOptions{
		Selection: testSelection,
		Formula:   "I0*2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"f0"}, table.Columns[9:])
	assert.Equal(t, "4", table.Rows[0][9])
}

func TestTableProcessor_DeriveErrors(t *testing.T) {
	p := NewTableProcessor(nil)

	t.Run("nil scan", func(t *testing.T) {
		_, _, err := p.Derive(nil, DefaultOptions())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("row out of range", func(t *testing.T) {
		_, _, err := p.Derive(newTestScan(), DeriveOptions{Selection: testSelection, Rows: []int{3}})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("operand mismatch", func(t *testing.T) {
		sel := testSelection
		sel.BG1 = "pl2"
		_, _, err := p.Derive(newTestScan(), DeriveOptions{Selection: sel, Formula: "S-BG1"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormulaOperand))
	})

	t.Run("default patterns match nothing", func(t *testing.T) {
		_, advisories, err := p.Derive(newTestScan(), DefaultOptions())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormulaOperand))
		assert.NotEmpty(t, advisories)
	})
}

func TestTableProcessor_LogsAdvisories(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	p := NewTableProcessor(logger)

	sel := testSelection
	sel.Energy = "mono_energy"
	_, advisories, err := p.Derive(newTestScan(), DeriveOptions{Selection: sel, Formula: "S"})
	require.NoError(t, err)

	require.Len(t, advisories, 1)
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "no energy column was selected")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "signal columns selected")
}
