package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specview/internal/config"
	apierrors "specview/internal/errors"
	"specview/internal/shared/testutil"
	api "specview/pkg/contracts/api/v1"
	"specview/pkg/contracts/events"
)

func newTestApp(t *testing.T, mutate ...func(*config.Config)) (*Application, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Paths.DataDir = dir
	cfg.Paths.ExportDir = filepath.Join(dir, "exports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Telemetry.Enabled = false
	cfg.Selection.Signal = "pl0-pl1"
	cfg.Selection.BG1 = "pl2-pl3"
	cfg.Selection.BG2 = "pl4-pl5"
	for _, m := range mutate {
		m(cfg)
	}

	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplicationWithConfig(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(context.Background()) })

	testutil.WriteScanLog(t, dir, "run.spec", testutil.SampleScanLog)
	return app, dir
}

func serve(t *testing.T, app *Application, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplicationWithConfig(t *testing.T) {
	app, dir := newTestApp(t)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.Equal(t, "127.0.0.1:0", app.Server.Addr)
	assert.DirExists(t, filepath.Join(dir, "exports"))
	assert.DirExists(t, filepath.Join(dir, "logs"))
	assert.NotNil(t, app.Services.Scans)
	assert.NotNil(t, app.Services.Health)
	assert.NotNil(t, app.Services.WebSocket)
}

func TestApplication_HealthRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/health", http.StatusOK},
		{"/api/health/ready", http.StatusOK},
		{"/api/health/live", http.StatusOK},
		{"/api/health/live/", http.StatusOK},
		{"/api/version", http.StatusOK},
		{"/api/stats", http.StatusOK},
		{"/metrics", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, app, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestApplication_MetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.MetricsEnabled = true
	})

	// Generate at least one recorded request
	serve(t, app, http.MethodGet, "/api/health", nil, nil)

	rec := serve(t, app, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "specview")
}

func TestApplication_ScanWorkflow(t *testing.T) {
	app, _ := newTestApp(t)

	rec := serve(t, app, http.MethodPost, "/api/files/open", api.OpenFileRequest{Path: "run.spec"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)

	rec = serve(t, app, http.MethodGet, "/api/scans?path=run.spec", nil, map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = serve(t, app, http.MethodPost, "/api/scans/0.1/evaluate", api.EvaluateRequest{Path: "run.spec"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var eval api.EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eval))
	assert.Len(t, eval.Table.Rows, 3)

	rec = serve(t, app, http.MethodPost, "/api/export", api.ExportRequest{Path: "run.spec", Format: "csv"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var export api.ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Len(t, export.Files, 3)
}

func TestApplication_ErrorResponses(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		headers    map[string]string
		wantStatus int
		wantType   string
	}{
		{"unknown route", http.MethodGet, "/nope", nil, nil, http.StatusNotFound, apierrors.TypeNotFound},
		{"wrong method", http.MethodDelete, "/api/health", nil, nil, http.StatusMethodNotAllowed, apierrors.TypeMethodNotAllowed},
		{"export needs json", http.MethodPost, "/api/export", nil, map[string]string{"Content-Type": "text/plain"}, http.StatusUnsupportedMediaType, apierrors.TypeValidation},
		{"missing scan log", http.MethodPost, "/api/files/open", api.OpenFileRequest{Path: "absent.spec"}, nil, http.StatusNotFound, apierrors.TypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, app, tt.method, tt.path, tt.body, tt.headers)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "json")

			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem["type"])
		})
	}
}

func TestApplication_CORSPreflight(t *testing.T) {
	app, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"http://plots.local"}
	})

	rec := serve(t, app, http.MethodOptions, "/api/files/open", nil, map[string]string{
		"Origin":                        "http://plots.local",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://plots.local", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(t, app, http.MethodGet, "/api/health", nil, map[string]string{"Origin": "http://other.local"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApplication_OriginAllowed(t *testing.T) {
	app, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"http://plots.local"}
	})

	assert.True(t, app.originAllowed("", "127.0.0.1:8080"))
	assert.True(t, app.originAllowed("http://127.0.0.1:8080", "127.0.0.1:8080"))
	assert.True(t, app.originAllowed("http://plots.local", "127.0.0.1:8080"))
	assert.False(t, app.originAllowed("http://evil.local", "127.0.0.1:8080"))

	app.Config.Security.EnableCORS = false
	assert.False(t, app.originAllowed("http://plots.local", "127.0.0.1:8080"))
}

func readMessage(t *testing.T, conn *websocket.Conn) events.WebSocketMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestApplication_StartServesWebSocketEvents(t *testing.T) {
	app, _ := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+app.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	assert.Equal(t, events.MessageTypeConnect, readMessage(t, conn).Type)

	body, err := json.Marshal(api.OpenFileRequest{Path: "run.spec"})
	require.NoError(t, err)
	httpResp, err := http.Post("http://"+app.Addr()+"/api/files/open", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	assert.Equal(t, events.MessageTypeCatalogOpened, readMessage(t, conn).Type)

	require.NoError(t, app.Stop(context.Background()))
}

func TestApplication_WebSocketRejectsForeignOrigin(t *testing.T) {
	app, _ := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	header := http.Header{"Origin": []string{"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+app.Addr()+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestApplication_Preload(t *testing.T) {
	app, _ := newTestApp(t)

	app.Preload(context.Background(), []string{"missing.spec"})
	assert.Equal(t, 0, app.Services.Scans.Cached())

	app.Preload(context.Background(), []string{"run.spec"})
	assert.Equal(t, 1, app.Services.Scans.Cached())
}
