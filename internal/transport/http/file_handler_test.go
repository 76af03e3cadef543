package http

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "specview/internal/errors"
	"specview/internal/services"
	"specview/internal/shared/testutil"
	api "specview/pkg/contracts/api/v1"
)

func TestFileHandler_OpenFile(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		body        interface{}
		wantStatus  int
		wantProblem string
	}{
		{"relative path", api.OpenFileRequest{Path: "run.spec"}, http.StatusOK, ""},
		{"absolute path", api.OpenFileRequest{Path: env.path}, http.StatusOK, ""},
		{"missing path field", map[string]string{}, http.StatusBadRequest, apierrors.TypeValidation},
		{"missing file", api.OpenFileRequest{Path: "nope.spec"}, http.StatusNotFound, apierrors.TypeNotFound},
		{"empty body", nil, http.StatusBadRequest, apierrors.TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/files/open", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantProblem != "" {
				assert.Equal(t, tt.wantProblem, problemType(t, rec))
				return
			}

			var resp api.CatalogResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, env.path, resp.Path)
			assert.Len(t, resp.Scans, 3)
			assert.Equal(t, etag(resp.Digest), rec.Header().Get("ETag"))
		})
	}
}

func TestFileHandler_OpenMalformed(t *testing.T) {
	env := newTestEnv(t)
	testutil.WriteScanLog(t, env.dir, "bad.spec", "1 2 3\n#S 1 ct\n1\n")

	rec := env.do(t, http.MethodPost, "/api/files/open", api.OpenFileRequest{Path: "bad.spec"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apierrors.TypeMalformedInput, problemType(t, rec))
}

func TestFileHandler_ReloadFile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/files/open", api.OpenFileRequest{Path: "run.spec"})
	require.Equal(t, http.StatusOK, rec.Code)
	before := rec.Header().Get("ETag")

	testutil.WriteScanLog(t, env.dir, "run.spec", testutil.SampleScanLog+"\n#S 3 ct\n#L dcm_energy I0\n1 2\n")

	rec = env.do(t, http.MethodPost, "/api/files/reload", api.OpenFileRequest{Path: "run.spec"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, before, rec.Header().Get("ETag"))

	var resp api.CatalogResponse
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Scans, 4)
	assert.Equal(t, services.Digest([]byte(testutil.SampleScanLog+"\n#S 3 ct\n#L dcm_energy I0\n1 2\n")), resp.Digest)
}

func TestFileHandler_ListFiles(t *testing.T) {
	env := newTestEnv(t)
	testutil.WriteScanLog(t, env.dir, filepath.Join("logs", "a.spec"), testutil.SampleScanLog)
	testutil.WriteScanLog(t, env.dir, filepath.Join("logs", "notes.txt"), "hello\n")

	t.Run("with pattern", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/files?dir=logs&pattern=*.spec", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.FileListResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "logs", resp.Dir)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "a.spec", resp.Files[0].Name)
		assert.True(t, resp.Files[0].ScanLog)
	})

	t.Run("missing directory", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/files?dir=absent", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	old := time.Now().Add(-time.Hour)
	b := testutil.WriteScanLog(t, env.dir, filepath.Join("logs", "b.spec"), testutil.SampleScanLog)
	require.NoError(t, os.Chtimes(filepath.Join(env.dir, "logs", "a.spec"), old, old))
	require.NoError(t, os.Chtimes(b, time.Now(), time.Now()))

	names := func(resp api.FileListResponse) []string {
		out := make([]string, 0, len(resp.Files))
		for _, f := range resp.Files {
			out = append(out, f.Name)
		}
		return out
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []string
	}{
		{"oldest first", "order=oldest", http.StatusOK, []string{"a.spec", "b.spec"}},
		{"newest first", "order=newest", http.StatusOK, []string{"b.spec", "a.spec"}},
		{"latest only", "latest=true", http.StatusOK, []string{"b.spec"}},
		{"bad order", "order=random", http.StatusBadRequest, nil},
		{"bad latest", "latest=maybe", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/files?dir=logs&pattern=*.spec&"+tt.query, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.want == nil {
				assert.Equal(t, apierrors.TypeValidation, problemType(t, rec))
				return
			}
			var resp api.FileListResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.want, names(resp))
		})
	}
}
