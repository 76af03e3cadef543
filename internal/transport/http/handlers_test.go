package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"specview/internal/config"
	apierrors "specview/internal/errors"
	"specview/internal/middleware"
	"specview/internal/services"
	"specview/internal/shared/testutil"
)

type testEnv struct {
	dir     string
	path    string
	service *services.ScanService
	router  chi.Router
}

// newTestEnv wires real handlers onto a scan service rooted in a temp dir
// holding run.spec
func newTestEnv(t *testing.T) *testEnv {
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
	svc, err := services.NewScanService(cfg, paths, nil, nil, nil, logger)
	require.NoError(t, err)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := middleware.NewValidationMiddleware(logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/files", NewFileHandler(svc, validation, logger, errorHandler).Routes())
	r.Mount("/api/scans", NewScanHandler(svc, validation, logger, errorHandler).Routes())
	r.Post("/api/export", NewExportHandler(svc, validation, logger, errorHandler).Export)

	return &testEnv{
		dir:     dir,
		path:    testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog),
		service: svc,
		router:  r,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func problemType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var problem map[string]interface{}
	decodeBody(t, rec, &problem)
	typ, _ := problem["type"].(string)
	return typ
}

