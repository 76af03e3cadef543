package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"specview/internal/config"
	"specview/internal/dataprocessing"
	apperrors "specview/internal/errors"
	"specview/internal/exporter"
	"specview/internal/shared/testutil"
	"specview/pkg/contracts/domain"
	"specview/pkg/contracts/events"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	m.Called(ctx, msgType, data)
}

func newTestService(t *testing.T, publisher EventPublisher) (*ScanService, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ExportDir = filepath.Join(dir, "exports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Selection.Signal = "pl0-pl1"
	cfg.Selection.BG1 = "pl2-pl3"
	cfg.Selection.BG2 = "pl4-pl5"

	paths, err := cfg.ResolvePaths(dir)
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	svc, err := NewScanService(cfg, paths, nil, nil, publisher, logger)
	require.NoError(t, err)
	return svc, dir
}

func TestScanService_OpenCachesByDigest(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)
	ctx := context.Background()

	first, err := svc.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.1", "0.2", "1.1"}, first.Scans.IDs())
	assert.Equal(t, Digest([]byte(testutil.SampleScanLog)), first.Digest)
	assert.Equal(t, 5, first.Rows())

	second, err := svc.Open(ctx, path)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged file is served from cache")
	assert.Equal(t, 1, svc.Cached())

	// Changed content invalidates the cached catalog
	testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog+"\n#S 3 ct\n#L dcm_energy I0\n1 2\n")
	third, err := svc.Open(ctx, path)
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, third.Digest)
	assert.Equal(t, []string{"0.1", "0.2", "1.1", "1.3"}, third.Scans.IDs())
	assert.Equal(t, 1, svc.Cached())
}

func TestScanService_RelativePathsUseDataDir(t *testing.T) {
	svc, dir := newTestService(t, nil)
	testutil.WriteScanLog(t, dir, "nested/run.spec", testutil.SampleScanLog)

	c, err := svc.Open(context.Background(), "nested/run.spec")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "run.spec"), c.Path)
}

func TestScanService_ReloadPublishes(t *testing.T) {
	pub := new(MockPublisher)
	svc, dir := newTestService(t, pub)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	pub.On("Publish", mock.Anything, events.MessageTypeCatalogOpened, mock.Anything).Return().Once()
	pub.On("Publish", mock.Anything, events.MessageTypeCatalogReloaded, mock.MatchedBy(func(e events.CatalogEvent) bool {
		return e.Path == path && len(e.Scans) == 3 && e.Rows == 5
	})).Return().Once()

	opened, err := svc.Open(context.Background(), path)
	require.NoError(t, err)
	reloaded, err := svc.Reload(context.Background(), path)
	require.NoError(t, err)

	assert.NotSame(t, opened, reloaded, "reload always reparses")
	assert.Equal(t, opened.Digest, reloaded.Digest)
	pub.AssertExpectations(t)
}

func TestScanService_OpenErrors(t *testing.T) {
	pub := new(MockPublisher)
	svc, dir := newTestService(t, pub)
	malformed := testutil.WriteScanLog(t, dir, "bad.spec", "1 2 3\n#S 1 ct\n1\n")

	pub.On("Publish", mock.Anything, events.MessageTypeCatalogFailed, mock.MatchedBy(func(e events.CatalogFailedEvent) bool {
		return e.ErrorType == string(apperrors.ErrTypeMalformedInput)
	})).Return().Once()

	tests := []struct {
		name     string
		path     string
		wantType apperrors.ErrorType
	}{
		{"empty path", "", apperrors.ErrTypeValidation},
		{"missing file", filepath.Join(dir, "missing.spec"), apperrors.ErrTypeNotFound},
		{"directory", dir, apperrors.ErrTypeValidation},
		{"malformed log", malformed, apperrors.ErrTypeMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Open(context.Background(), tt.path)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		})
	}

	assert.Equal(t, 0, svc.Cached(), "failed parses are never cached")
	pub.AssertExpectations(t)
}

func TestScanService_LoadAll(t *testing.T) {
	svc, dir := newTestService(t, nil)
	a := testutil.WriteScanLog(t, dir, "a.spec", testutil.SampleScanLog)
	b := testutil.WriteScanLog(t, dir, "b.spec", "#S 7 ct\n#L x y\n1 2\n")

	catalogs, err := svc.LoadAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, catalogs, 2)
	assert.Equal(t, 3, catalogs[0].Scans.Len())
	assert.Equal(t, []string{"0.7"}, catalogs[1].Scans.IDs())
	assert.Equal(t, 2, svc.Cached())

	_, err = svc.LoadAll(context.Background(), []string{a, filepath.Join(dir, "nope.spec")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestScanService_CatalogDoesNotPublish(t *testing.T) {
	pub := new(MockPublisher)
	svc, dir := newTestService(t, pub)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	c, err := svc.Catalog(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Scans.Len())
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestScanService_Scan(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	scan, err := svc.Scan(context.Background(), path, "0.1")
	require.NoError(t, err)
	assert.Equal(t, 3, scan.RowCount())
	assert.Equal(t, []domain.Motor{
		{Name: "chi", Position: "-3"},
		{Name: "th", Position: "0.0"},
		{Name: "tth", Position: "12.5"},
	}, scan.Motors())

	_, err = svc.Scan(context.Background(), path, "9.9")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestScanService_Select(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	res, err := svc.Select(context.Background(), path, "0.1", "pl0-pl2, I0")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, res.Indices)
	assert.Equal(t, []string{"I0", "pl0", "pl1", "pl2"}, res.Names)
	assert.Nil(t, res.Advisory)

	res, err = svc.Select(context.Background(), path, "0.1", "zz*")
	require.NoError(t, err, "an empty selection is advisory")
	assert.Empty(t, res.Indices)
	require.NotNil(t, res.Advisory)
	assert.Equal(t, apperrors.ErrTypeEmptySelection, res.Advisory.Type)
}

func TestScanService_Evaluate(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	t.Run("configured defaults", func(t *testing.T) {
		table, advisories, err := svc.Evaluate(context.Background(), path, "0.1", dataprocessing.DeriveOptions{})
		require.NoError(t, err)
		assert.Empty(t, advisories)
		assert.Equal(t, domain.DefaultFormula, table.Formula)
		assert.Equal(t, []string{"f(pl0)", "f(pl1)"}, table.Columns[9:])
		assert.Equal(t, []string{"4", "8.5"}, table.Rows[0][9:])
	})

	t.Run("request overrides", func(t *testing.T) {
		table, _, err := svc.Evaluate(context.Background(), path, "0.1", dataprocessing.DeriveOptions{
			Selection: domain.SelectionSet{Signal: "pl0"},
			Formula:   "S*2",
			Rows:      []int{1},
		})
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "60", table.Rows[0][len(table.Rows[0])-1])
	})

	t.Run("operand mismatch", func(t *testing.T) {
		_, _, err := svc.Evaluate(context.Background(), path, "0.1", dataprocessing.DeriveOptions{
			Selection: domain.SelectionSet{BG1: "pl2"},
			Formula:   "S-BG1",
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormulaOperand))
	})

	t.Run("syntax error", func(t *testing.T) {
		_, _, err := svc.Evaluate(context.Background(), path, "0.1", dataprocessing.DeriveOptions{Formula: "S+"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormulaSyntax))
	})
}

func TestScanService_Spectrum(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	s, err := svc.Spectrum(context.Background(), path, "0.1", dataprocessing.SpectrumRequest{
		Kind: domain.SpectrumHERFD,
		Sum:  true,
	})
	require.NoError(t, err)
	require.Len(t, s.Lines, 1)
	assert.Equal(t, []float64{7.0, 7.5, 8.0}, s.Lines[0].X)
	assert.Equal(t, []float64{15, 17.5, 11}, s.Lines[0].Y)
}

func TestScanService_Export(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)
	ctx := context.Background()

	t.Run("raw csv per scan", func(t *testing.T) {
		written, err := svc.Export(ctx, path, ExportOptions{Format: exporter.FormatCSV})
		require.NoError(t, err)
		require.Len(t, written, 3)
		assert.Equal(t, filepath.Join(dir, "exports", "run_0.1.csv"), written[0])
	})

	t.Run("derived single scan", func(t *testing.T) {
		written, err := svc.Export(ctx, path, ExportOptions{
			Format:  exporter.FormatCSV,
			Target:  "derived",
			ScanIDs: []string{"0.1"},
			Derived: true,
		})
		require.NoError(t, err)
		require.Len(t, written, 1)

		data, err := os.ReadFile(written[0])
		require.NoError(t, err)
		assert.Contains(t, string(data), "f(pl0),f(pl1)")
	})

	t.Run("xlsx workbook", func(t *testing.T) {
		written, err := svc.Export(ctx, path, ExportOptions{Format: exporter.FormatXLSX})
		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.FileExists(t, written[0])
	})

	t.Run("unknown scan", func(t *testing.T) {
		_, err := svc.Export(ctx, path, ExportOptions{ScanIDs: []string{"4.4"}})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})
}

func TestScanService_ExportSpectrum(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)

	written, err := svc.ExportSpectrum(context.Background(), path, "0.1", "", dataprocessing.SpectrumRequest{
		Kind: domain.SpectrumXES,
	})
	require.NoError(t, err)
	require.Len(t, written, 3)
	assert.Equal(t, filepath.Join(dir, "exports", "run_scan0.1_XES_1.txt"), written[0])

	_, err = svc.ExportSpectrum(context.Background(), path, "0.1", "", dataprocessing.SpectrumRequest{
		Kind: domain.SpectrumRXES,
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestScanService_ListFiles(t *testing.T) {
	svc, dir := newTestService(t, nil)
	testutil.WriteScanLog(t, dir, "logs/a.spec", testutil.SampleScanLog)
	testutil.WriteScanLog(t, dir, "logs/notes.txt", "hello\n")

	found, err := svc.ListFiles(context.Background(), "logs", "*.spec")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a.spec", found[0].Name)
	assert.True(t, found[0].ScanLog)

	found, err = svc.ListFiles(context.Background(), "logs", "")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = svc.ListFiles(context.Background(), "absent", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = svc.ListFiles(context.Background(), "logs", "[")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestScanService_LogsParse(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	paths, err := cfg.ResolvePaths(dir)
	require.NoError(t, err)

	logger, records := testutil.NewTestLogger(t)
	svc, err := NewScanService(cfg, paths, nil, nil, nil, logger)
	require.NoError(t, err)

	path := testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)
	_, err = svc.Open(context.Background(), path)
	require.NoError(t, err)

	testutil.AssertLogAttr(t, records, "path", path)
	testutil.AssertLogAttr(t, records, "scans", int64(3))
	testutil.AssertNoErrors(t, records)

	records.Clear()
	_, err = svc.Open(context.Background(), filepath.Join(dir, "missing.spec"))
	require.Error(t, err)
	testutil.AssertLogContains(t, records, slog.LevelWarn, "Scan request failed")
}
