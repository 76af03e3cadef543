package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "specview/internal/errors"
)

// FileValidator checks scan-log inputs and export destinations before they
// are touched
type FileValidator struct {
	logger  *slog.Logger
	maxSize int64
}

// NewFileValidator creates a new file validator. maxSize limits accepted scan
// files in bytes; zero disables the check.
func NewFileValidator(logger *slog.Logger, maxSize int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:  logger.With(slog.String("component", "file_validator")),
		maxSize: maxSize,
	}
}

// ValidateScanFile checks that path names a readable regular file within the
// size limit. Missing files are NotFound errors, everything else is a
// Validation or MalformedInput error.
func (v *FileValidator) ValidateScanFile(path string) error {
	if path == "" {
		return apperrors.NewAppValidationError("scan file path is required")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Warn("Scan file does not exist",
			slog.String("file", path))
		return apperrors.NewNotFoundError(fmt.Sprintf("scan file %s", path)).
			WithContext("path", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat scan file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewMalformedInputError(fmt.Sprintf("cannot stat %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path)).
			WithContext("path", path)
	}
	if v.maxSize > 0 && info.Size() > v.maxSize {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s is %d bytes, above the %d byte limit", path, info.Size(), v.maxSize)).
			WithContext("path", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Scan file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewMalformedInputError(fmt.Sprintf("%s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("Scan file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateInputDirectory checks that dir exists and is a directory
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Warn("Input directory does not exist",
			slog.String("directory", dir))
		return apperrors.NewNotFoundError(fmt.Sprintf("directory %s", dir))
	}
	if err != nil {
		return apperrors.NewMalformedInputError(fmt.Sprintf("cannot stat %s", dir), err)
	}
	if !info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is not a directory", dir))
	}
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
// and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateOutputFile checks that the parent directory of path is writable
func (v *FileValidator) ValidateOutputFile(path string) error {
	if path == "" {
		return apperrors.NewAppValidationError("output path is required")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}
