package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/comexcl/internal/archive"
	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/download"
	"github.com/JonMunkholm/comexcl/internal/logging"
	"github.com/JonMunkholm/comexcl/internal/sink"
	"github.com/JonMunkholm/comexcl/internal/tabular"
	"github.com/JonMunkholm/comexcl/internal/workspace"
)

var (
	// ErrNoDataFound is returned when staging produced no tabular file.
	ErrNoDataFound = errors.New("no .txt/.csv/.xlsx file found after download")

	// ErrInvalidPeriod is returned for months outside 1..12 or non-positive years.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrPersistenceDisabled is returned when a run asks to persist records
	// but no database is configured.
	ErrPersistenceDisabled = errors.New("persistence requested but no database configured")
)

// Catalog lists the resources published for a year.
type Catalog interface {
	Resources(ctx context.Context, year int) ([]catalog.Resource, error)
}

// Downloader fetches one resource location into dst.
type Downloader interface {
	Download(ctx context.Context, location, dst string) (int64, error)
}

// Extractor unpacks an archive entry part into outDir.
type Extractor interface {
	Extract(ctx context.Context, entry workspace.StagedFile, outDir string) ([]workspace.StagedFile, error)
}

// RecordWriter receives every emitted record of a persisted run. Discard
// removes whatever the writer already stored and is called when the run
// fails.
type RecordWriter interface {
	Add(ctx context.Context, rec tabular.Record) error
	Flush(ctx context.Context) error
	Discard(ctx context.Context) error
}

// discardTimeout bounds removing a failed run's rows, which happens after
// the run context may already be cancelled.
const discardTimeout = 30 * time.Second

// WriterFactory opens the record writer of one run.
type WriterFactory func(runID uuid.UUID) RecordWriter

// Options configures a Service.
type Options struct {
	WorkDir     string
	CountryCode string
	BatchRows   int
	SampleBytes int

	// IsolateRuns nests each run directory under its run id so concurrent
	// runs for the same period never share staging storage.
	IsolateRuns bool
}

// Request selects the period to import.
type Request struct {
	Year        int
	Month       int
	Limit       int
	EnableLimit bool
	Persist     bool
}

// Validate checks the period.
func (r Request) Validate() error {
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("%w: month must be 1..12, got %d", ErrInvalidPeriod, r.Month)
	}
	if r.Year < 1 {
		return fmt.Errorf("%w: year must be positive, got %d", ErrInvalidPeriod, r.Year)
	}
	return nil
}

// EffectiveLimit is the applied cap, or 0. The limit is inert unless
// EnableLimit is set.
func (r Request) EffectiveLimit() int {
	if r.EnableLimit && r.Limit > 0 {
		return r.Limit
	}
	return 0
}

// Result summarizes a completed run.
type Result struct {
	RunID       uuid.UUID
	Total       int
	Description string
	Files       []workspace.StagedFile
	Warnings    []tabular.FileWarning
}

// Service runs imports end to end.
type Service struct {
	catalog    Catalog
	downloader Downloader
	extractor  Extractor
	schema     *tabular.Schema
	months     catalog.MonthTokens
	opts       Options
	writers    WriterFactory
}

// NewService wires the pipeline stages.
func NewService(cat Catalog, dl Downloader, ex Extractor, schema *tabular.Schema, months catalog.MonthTokens, opts Options) *Service {
	if opts.CountryCode == "" {
		opts.CountryCode = "CL"
	}
	return &Service{
		catalog:    cat,
		downloader: dl,
		extractor:  ex,
		schema:     schema,
		months:     months,
		opts:       opts,
	}
}

// WithWriters enables persistence for requests with Persist set.
func (s *Service) WithWriters(f WriterFactory) *Service {
	s.writers = f
	return s
}

// Run imports the period of req and writes the envelope document to out.
// Nothing is written to out unless the whole array was produced. The
// staging directory is removed on every exit path.
func (s *Service) Run(ctx context.Context, req Request, out io.Writer) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Persist && s.writers == nil {
		return nil, ErrPersistenceDisabled
	}

	runID := uuid.New()
	ctx = logging.ContextWithRunID(ctx, runID.String())
	logger := logging.WithFields(ctx, "year", req.Year, "month", req.Month)

	ws := s.workspace(runID, req)
	defer ws.Close()

	logger.Info("run started", "workdir", ws.Path())

	resources, err := s.catalog.Resources(ctx, req.Year)
	if err != nil {
		return nil, err
	}
	selected, err := catalog.SelectResources(resources, req.Year, req.Month, s.months)
	if err != nil {
		return nil, err
	}
	logger.Info("resources selected", "count", len(selected))

	tmp, err := ws.Sub("_tmp")
	if err != nil {
		return nil, err
	}

	files, err := s.stage(ctx, tmp, selected)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoDataFound
	}
	workspace.SortLargestFirst(files)

	res := &Result{RunID: runID, Files: files}
	limit := req.EffectiveLimit()

	var writer RecordWriter
	committed := false
	if req.Persist {
		writer = s.writers(runID)
		defer func() {
			if !committed {
				s.discard(ctx, writer)
			}
		}()
	}

	arrayPath := filepath.Join(tmp, "resultados_array.json")
	warnings, total, err := s.emit(ctx, req, writer, files, arrayPath, limit)
	res.Warnings = warnings
	if err != nil {
		return res, err
	}
	res.Total = total
	res.Description = sink.Description(total, req.Year, req.Month, limit)

	array, err := os.Open(arrayPath)
	if err != nil {
		return res, fmt.Errorf("open staged results: %w", err)
	}
	defer array.Close()

	if err := sink.WriteEnvelope(out, sink.Envelope{Description: res.Description, Total: total}, array); err != nil {
		return res, fmt.Errorf("write envelope: %w", err)
	}

	committed = true
	logger.Info("run finished", "total", total, "files", len(files), "warnings", len(warnings))
	return res, nil
}

// discard removes the stored records of a failed run. It outlives a
// cancelled run context.
func (s *Service) discard(ctx context.Context, w RecordWriter) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := w.Discard(dctx); err != nil {
		logging.FromContext(ctx).Error("failed to discard persisted records", "error", err)
	}
}

func (s *Service) workspace(runID uuid.UUID, req Request) *workspace.Workspace {
	period := fmt.Sprintf("%d-%02d", req.Year, req.Month)
	if s.opts.IsolateRuns {
		return workspace.New(s.opts.WorkDir, runID.String(), period)
	}
	return workspace.New(s.opts.WorkDir, period)
}

// stage downloads the selected resources into tmp, extracts archive sets and
// returns the tabular files found.
func (s *Service) stage(ctx context.Context, tmp string, selected []catalog.Resource) ([]workspace.StagedFile, error) {
	logger := logging.FromContext(ctx)

	var (
		data  []workspace.StagedFile
		parts []archive.Part
	)
	for i, r := range selected {
		loc := r.Location()
		if loc == "" {
			logger.Warn("resource without location skipped", "name", r.Name)
			continue
		}

		dst := filepath.Join(tmp, download.FileName(loc, fmt.Sprintf("resource-%d", i+1)))
		if _, err := s.downloader.Download(ctx, loc, dst); err != nil {
			return nil, err
		}

		f, err := workspace.Stat(dst)
		if err != nil {
			return nil, err
		}
		switch kind := f.Kind(); {
		case kind == workspace.KindArchive:
			parts = append(parts, archive.NewPart(f))
		case kind.IsTabular():
			data = append(data, f)
		default:
			logger.Warn("unsupported resource ignored", "file", f.Name())
		}
	}

	for _, entry := range archive.EntryPoints(parts) {
		outDir := filepath.Join(tmp, "extracted", strings.TrimSuffix(entry.SetName(), ".rar"))
		extracted, err := s.extractor.Extract(ctx, entry.File, outDir)
		if err != nil {
			return nil, err
		}
		data = append(data, extracted...)
	}
	return data, nil
}

// emit ingests files into the staged array at path.
func (s *Service) emit(ctx context.Context, req Request, writer RecordWriter, files []workspace.StagedFile, path string, limit int) ([]tabular.FileWarning, int, error) {
	ingestor := tabular.NewIngestor(s.schema, tabular.Options{
		BatchRows:   s.opts.BatchRows,
		SampleBytes: s.opts.SampleBytes,
	})
	prov := tabular.Provenance{CountryCode: s.opts.CountryCode, Year: req.Year, Month: req.Month}

	records := ingestor.Ingest(ctx, files, prov)
	if writer != nil {
		records = tee(ctx, records, writer)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, 0, fmt.Errorf("create staged results: %w", err)
	}
	total, err := sink.EmitArray(f, records, limit)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close staged results: %w", cerr)
	}
	if err != nil {
		return ingestor.Warnings(), total, err
	}

	if writer != nil {
		if err := writer.Flush(ctx); err != nil {
			return ingestor.Warnings(), total, err
		}
	}
	return ingestor.Warnings(), total, nil
}

// tee hands every record to w before passing it on.
func tee(ctx context.Context, records iter.Seq2[tabular.Record, error], w RecordWriter) iter.Seq2[tabular.Record, error] {
	return func(yield func(tabular.Record, error) bool) {
		for rec, err := range records {
			if err != nil {
				yield(rec, err)
				return
			}
			if err := w.Add(ctx, rec); err != nil {
				yield(rec, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
