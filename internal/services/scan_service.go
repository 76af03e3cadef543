package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"specview/internal/config"
	"specview/internal/dataprocessing"
	apperrors "specview/internal/errors"
	"specview/internal/exporter"
	"specview/internal/files"
	"specview/internal/infrastructure"
	"specview/internal/scanlog"
	"specview/internal/selection"
	"specview/internal/validation"
	"specview/pkg/contracts/domain"
	"specview/pkg/contracts/events"
)

// EventPublisher receives catalog lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

// Catalog is a parsed scan-log file together with its content digest
type Catalog struct {
	Path     string
	Digest   string
	ParsedAt time.Time
	Scans    *domain.ScanCatalog
}

// Rows returns the total number of data rows across all scans
func (c *Catalog) Rows() int {
	n := 0
	for _, s := range c.Scans.Scans() {
		n += s.RowCount()
	}
	return n
}

// SelectResult is a single pattern resolved against one scan
type SelectResult struct {
	ScanID   string
	Pattern  string
	Indices  []int
	Names    []string
	Advisory *selection.Advisory
}

// ExportOptions configures ScanService.Export
type ExportOptions struct {
	Format exporter.Format
	// Target is the output path; empty writes <file stem>.<ext> to the export dir
	Target  string
	ScanIDs []string
	// Derived exports the formula table instead of the raw columns
	Derived   bool
	Selection domain.SelectionSet
	Formula   string
	BOM       bool
}

// ScanService parses scan-log files and serves selections, derived tables,
// spectra and exports from a cache of parsed catalogs. Catalogs are cached
// per path and reparsed whenever the file content digest changes.
type ScanService struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	cache     *lru.Cache[string, *Catalog]
	loads     singleflight.Group
	validator *validation.FileValidator
	processor *dataprocessing.TableProcessor
	analyzer  *dataprocessing.SpectrumAnalyzer
	exporter  *exporter.Exporter
	discovery *files.Discovery
	tracer    trace.Tracer
	metrics   *infrastructure.DomainMetrics
	publisher EventPublisher
}

// NewScanService creates the scan service. tracer, metrics and publisher may
// be nil.
func NewScanService(cfg *config.Config, paths *config.Paths, tracer trace.Tracer,
	metrics *infrastructure.DomainMetrics, publisher EventPublisher, logger *slog.Logger) (*ScanService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if paths == nil {
		p, err := cfg.ResolvePaths("")
		if err != nil {
			return nil, err
		}
		paths = p
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.ServiceName)
	}

	cache, err := lru.New[string, *Catalog](cfg.Cache.Size)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid catalog cache size", err)
	}

	logger = logger.With(slog.String("component", "scan_service"))
	logger.Info("ScanService initialized",
		slog.Int("cache_size", cfg.Cache.Size),
		slog.String("data_dir", paths.DataDir),
		slog.String("export_dir", paths.ExportDir))

	return &ScanService{
		cfg:       cfg,
		paths:     paths,
		logger:    logger,
		cache:     cache,
		validator: validation.NewFileValidator(logger, cfg.Paths.MaxFileSize),
		processor: dataprocessing.NewTableProcessor(logger),
		analyzer:  dataprocessing.NewSpectrumAnalyzer(logger),
		exporter:  exporter.NewExporter(paths, logger),
		discovery: files.NewDiscovery(paths.DataDir),
		tracer:    tracer,
		metrics:   metrics,
		publisher: publisher,
	}, nil
}

// Open returns the catalog of the file at path, parsing it unless an
// identical copy is cached
func (s *ScanService) Open(ctx context.Context, path string) (*Catalog, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Open", trace.WithAttributes(attribute.String("scan.path", path)))
	defer span.End()

	c, err := s.load(ctx, path, false)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}
	s.publish(ctx, events.MessageTypeCatalogOpened, c)
	return c, nil
}

// Reload reparses the file at path regardless of the cache and notifies
// subscribers
func (s *ScanService) Reload(ctx context.Context, path string) (*Catalog, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Reload", trace.WithAttributes(attribute.String("scan.path", path)))
	defer span.End()

	c, err := s.load(ctx, path, true)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}
	s.publish(ctx, events.MessageTypeCatalogReloaded, c)
	return c, nil
}

// LoadAll opens every path concurrently. The first failure cancels the rest.
func (s *ScanService) LoadAll(ctx context.Context, paths []string) ([]*Catalog, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.LoadAll", trace.WithAttributes(attribute.Int("scan.files", len(paths))))
	defer span.End()

	catalogs := make([]*Catalog, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := s.load(gctx, p, false)
			if err != nil {
				return err
			}
			catalogs[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return catalogs, nil
}

// Catalog returns the catalog of the file at path like Open but without
// notifying subscribers
func (s *ScanService) Catalog(ctx context.Context, path string) (*Catalog, error) {
	return s.load(ctx, path, false)
}

// Scan returns one scan of the file at path
func (s *ScanService) Scan(ctx context.Context, path, id string) (*domain.Scan, error) {
	c, err := s.load(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return lookupScan(c, id)
}

// Select resolves pattern against the columns of one scan. A pattern that
// matches nothing is not an error; the advisory is set instead.
func (s *ScanService) Select(ctx context.Context, path, id, pattern string) (*SelectResult, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Select", trace.WithAttributes(
		attribute.String("scan.id", id),
		attribute.String("selection.pattern", pattern)))
	defer span.End()

	scan, err := s.Scan(ctx, path, id)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}

	indices := selection.Resolve(scan.ColumnNames, pattern)
	res := &SelectResult{
		ScanID:  scan.ID,
		Pattern: pattern,
		Indices: indices,
		Names:   selection.Names(scan.ColumnNames, indices),
	}
	if len(indices) == 0 {
		res.Advisory = apperrors.NewEmptySelectionError("pattern", pattern)
		s.logger.WarnContext(ctx, "pattern selected no columns",
			slog.String("scan_id", scan.ID),
			slog.String("pattern", pattern))
	}
	s.metrics.RecordSelection(ctx, "pattern", len(indices) == 0)
	span.SetAttributes(attribute.Int("selection.columns", len(indices)))
	return res, nil
}

// Evaluate derives the formula columns of one scan. Empty patterns and an
// empty formula fall back to the configured defaults.
func (s *ScanService) Evaluate(ctx context.Context, path, id string, opts dataprocessing.DeriveOptions) (*domain.DerivedTable, []*selection.Advisory, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Evaluate", trace.WithAttributes(attribute.String("scan.id", id)))
	defer span.End()

	scan, err := s.Scan(ctx, path, id)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, nil, err
	}

	opts = s.withDefaults(opts)
	span.SetAttributes(attribute.String("formula", opts.Formula))

	start := time.Now()
	table, advisories, err := s.processor.Derive(scan, opts)
	s.metrics.RecordEvaluation(ctx, time.Since(start), err)
	s.recordAdvisories(ctx, advisories)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, advisories, err
	}
	return table, advisories, nil
}

// Spectrum prepares XES, HERFD or RXES data for one scan
func (s *ScanService) Spectrum(ctx context.Context, path, id string, req dataprocessing.SpectrumRequest) (*domain.Spectrum, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Spectrum", trace.WithAttributes(
		attribute.String("scan.id", id),
		attribute.String("spectrum.kind", string(req.Kind)),
		attribute.Bool("spectrum.sum", req.Sum)))
	defer span.End()

	scan, err := s.Scan(ctx, path, id)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}

	req.Selection = s.selectionDefaults(req.Selection)
	spectrum, err := s.analyzer.Spectrum(scan, req)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}
	return spectrum, nil
}

// ExportSpectrum writes the lines of a spectrum as plot data files named
// after base
func (s *ScanService) ExportSpectrum(ctx context.Context, path, id, base string, req dataprocessing.SpectrumRequest) ([]string, error) {
	spectrum, err := s.Spectrum(ctx, path, id, req)
	if err != nil {
		return nil, err
	}
	if len(spectrum.Lines) == 0 {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s spectrum has no lines to write as plot data", spectrum.Kind))
	}
	if base == "" {
		base = fmt.Sprintf("%s_scan%s", fileStem(path), id)
	}
	written, err := s.exporter.PlotData().WriteSpectrum(base, spectrum)
	if err != nil {
		return written, apperrors.NewStorageError("failed to write plot data", err)
	}
	return written, nil
}

// Export writes the selected scans of the file at path, raw or derived
func (s *ScanService) Export(ctx context.Context, path string, opts ExportOptions) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "ScanService.Export", trace.WithAttributes(
		attribute.String("scan.path", path),
		attribute.String("export.format", string(opts.Format))))
	defer span.End()

	c, err := s.load(ctx, path, false)
	if err != nil {
		s.fail(ctx, span, path, err)
		return nil, err
	}

	scans := c.Scans.Scans()
	if len(opts.ScanIDs) > 0 {
		scans = scans[:0:0]
		for _, id := range opts.ScanIDs {
			scan, err := lookupScan(c, id)
			if err != nil {
				return nil, err
			}
			scans = append(scans, scan)
		}
	}

	tables := make([]exporter.Table, 0, len(scans))
	for _, scan := range scans {
		if !opts.Derived {
			tables = append(tables, exporter.ScanTable(scan))
			continue
		}
		derived, _, err := s.Evaluate(ctx, path, scan.ID, dataprocessing.DeriveOptions{
			Selection: opts.Selection,
			Formula:   opts.Formula,
		})
		if err != nil {
			return nil, err
		}
		tables = append(tables, exporter.DerivedTableOf(derived))
	}

	if opts.Format == "" {
		opts.Format = exporter.FormatCSV
	}
	target := opts.Target
	if target == "" {
		target = fileStem(path)
	}

	written, err := s.exporter.Export(opts.Format, target, tables, opts.BOM)
	if err != nil {
		s.fail(ctx, span, path, err)
		return written, apperrors.NewStorageError("export failed", err)
	}

	s.logger.InfoContext(ctx, "Export completed",
		slog.String("path", path),
		slog.String("format", string(opts.Format)),
		slog.Int("tables", len(tables)),
		slog.Any("files", written))
	return written, nil
}

// ListFiles discovers scan-log candidates in dir (relative to the data dir)
func (s *ScanService) ListFiles(ctx context.Context, dir, pattern string) ([]files.FileInfo, error) {
	if pattern == "" {
		pattern = s.cfg.Paths.FilePattern
	}
	found, err := s.discovery.FindScanFiles(dir, pattern)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("directory %s", dir)).WithContext("cause", err.Error())
		}
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	s.logger.DebugContext(ctx, "Listed scan files",
		slog.String("dir", dir),
		slog.String("pattern", pattern),
		slog.Int("count", len(found)))
	return found, nil
}

// Cached returns the number of catalogs held in memory
func (s *ScanService) Cached() int {
	return s.cache.Len()
}

// Defaults returns the configured selection patterns and formula
func (s *ScanService) Defaults() (domain.SelectionSet, string) {
	return s.cfg.Selection.SelectionSet(), s.cfg.Selection.Formula
}

// load reads the file, compares its digest with the cached catalog and
// parses on a mismatch or when force is set. Concurrent loads of the same
// path share one parse.
func (s *ScanService) load(ctx context.Context, path string, force bool) (*Catalog, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateScanFile(abs); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperrors.NewMalformedInputError(fmt.Sprintf("cannot read scan file %s", abs), err)
	}
	digest := Digest(data)

	if !force {
		if c, ok := s.cache.Get(abs); ok && c.Digest == digest {
			s.metrics.RecordCache(ctx, true)
			return c, nil
		}
	}
	s.metrics.RecordCache(ctx, false)

	v, err, _ := s.loads.Do(abs+"@"+digest, func() (interface{}, error) {
		return s.parse(ctx, abs, digest, data)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

func (s *ScanService) parse(ctx context.Context, path, digest string, data []byte) (*Catalog, error) {
	ctx, span := s.tracer.Start(ctx, "scanlog.Parse", trace.WithAttributes(
		attribute.String("scan.path", path),
		attribute.Int("scan.bytes", len(data))))
	defer span.End()

	start := time.Now()
	// A parser carries per-parse state, so each parse gets its own
	catalog, err := scanlog.NewParser(s.logger).Parse(bytes.NewReader(data))
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordParse(ctx, 0, 0, duration, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return nil, err
	}

	c := &Catalog{
		Path:     path,
		Digest:   digest,
		ParsedAt: time.Now().UTC(),
		Scans:    catalog,
	}
	rows := c.Rows()
	s.metrics.RecordParse(ctx, catalog.Len(), rows, duration, nil)
	span.SetAttributes(attribute.Int("scan.count", catalog.Len()), attribute.Int("scan.rows", rows))
	s.cache.Add(path, c)

	s.logger.InfoContext(ctx, "Scan file parsed",
		slog.String("path", path),
		slog.String("digest", digest[:12]),
		slog.Int("scans", catalog.Len()),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
	return c, nil
}

// resolve makes relative paths relative to the data directory
func (s *ScanService) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", apperrors.NewAppValidationError("scan file path is required")
	}
	if !filepath.IsAbs(path) {
		path = s.paths.GetDataPath(path)
	}
	return filepath.Clean(path), nil
}

func (s *ScanService) withDefaults(opts dataprocessing.DeriveOptions) dataprocessing.DeriveOptions {
	opts.Selection = s.selectionDefaults(opts.Selection)
	if strings.TrimSpace(opts.Formula) == "" {
		opts.Formula = s.cfg.Selection.Formula
	}
	return opts
}

// selectionDefaults fills empty patterns from the configuration
func (s *ScanService) selectionDefaults(set domain.SelectionSet) domain.SelectionSet {
	d := s.cfg.Selection.SelectionSet()
	if set.Signal == "" {
		set.Signal = d.Signal
	}
	if set.BG1 == "" {
		set.BG1 = d.BG1
	}
	if set.BG2 == "" {
		set.BG2 = d.BG2
	}
	if set.Energy == "" {
		set.Energy = d.Energy
	}
	if set.I0 == "" {
		set.I0 = d.I0
	}
	return set
}

func (s *ScanService) recordAdvisories(ctx context.Context, advisories []*selection.Advisory) {
	empty := make(map[string]bool, len(advisories))
	for _, a := range advisories {
		if field, ok := a.Context["field"].(string); ok {
			empty[field] = true
		}
	}
	for _, field := range []string{"signal", "bg1", "bg2", "energy", "i0"} {
		s.metrics.RecordSelection(ctx, field, empty[field])
	}
}

func (s *ScanService) publish(ctx context.Context, msgType events.MessageType, c *Catalog) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, msgType, events.CatalogEvent{
		Path:   c.Path,
		Digest: c.Digest,
		Scans:  c.Scans.Summaries(),
		Rows:   c.Rows(),
	})
}

func (s *ScanService) fail(ctx context.Context, span trace.Span, path string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if apperrors.IsType(err, apperrors.ErrTypeMalformedInput) && s.publisher != nil {
		s.publisher.Publish(ctx, events.MessageTypeCatalogFailed, events.CatalogFailedEvent{
			Path:      path,
			ErrorType: string(apperrors.TypeOf(err)),
			Message:   err.Error(),
		})
	}
	infrastructure.WithError(s.logger, err).WarnContext(ctx, "Scan request failed", slog.String("path", path))
}

func lookupScan(c *Catalog, id string) (*domain.Scan, error) {
	scan, ok := c.Scans.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("scan %s", id)).WithContext("path", c.Path)
	}
	return scan, nil
}

// Digest returns the hex BLAKE2b-256 digest used as a catalog's ETag
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
