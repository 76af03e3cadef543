package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "specview/internal/errors"
)

func TestFileValidator_ValidateScanFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.spec")
	require.NoError(t, os.WriteFile(small, []byte("#S 1 ascan\n"), 0644))
	big := filepath.Join(dir, "big.spec")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", 64)), 0644))

	v := NewFileValidator(nil, 32)

	tests := []struct {
		name     string
		path     string
		wantType apperrors.ErrorType
	}{
		{name: "readable file", path: small},
		{name: "empty path", path: "", wantType: apperrors.ErrTypeValidation},
		{name: "missing file", path: filepath.Join(dir, "absent"), wantType: apperrors.ErrTypeNotFound},
		{name: "directory", path: dir, wantType: apperrors.ErrTypeValidation},
		{name: "over size limit", path: big, wantType: apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateScanFile(tt.path)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
		})
	}
}

func TestFileValidator_NoSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.spec")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0644))
	assert.NoError(t, NewFileValidator(nil, 0).ValidateScanFile(path))
}

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	v := NewFileValidator(nil, 0)

	assert.NoError(t, v.ValidateInputDirectory(dir))
	assert.True(t, apperrors.IsType(v.ValidateInputDirectory(filepath.Join(dir, "nope")), apperrors.ErrTypeNotFound))
	assert.True(t, apperrors.IsType(v.ValidateInputDirectory(file), apperrors.ErrTypeValidation))
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil, 0)
	out := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, v.ValidateOutputDirectory(out))
	assert.DirExists(t, out)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")
}

func TestFileValidator_ValidateOutputFile(t *testing.T) {
	v := NewFileValidator(nil, 0)
	dir := t.TempDir()

	assert.NoError(t, v.ValidateOutputFile(filepath.Join(dir, "new", "out.csv")))
	assert.True(t, apperrors.IsType(v.ValidateOutputFile(""), apperrors.ErrTypeValidation))
	assert.True(t, apperrors.IsType(v.ValidateOutputFile(dir), apperrors.ErrTypeValidation))
}
