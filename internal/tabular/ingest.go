// Package tabular turns staged delimited and spreadsheet files into
// schema-aligned records.
//
// Delimited files are sniffed for encoding and delimiter from a bounded
// prefix, then parsed in fixed-size row batches so memory stays bounded for
// multi-gigabyte inputs. Every row is reconciled to the schema width, its
// cells trimmed, and tagged with run provenance.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/JonMunkholm/comexcl/internal/logging"
	"github.com/JonMunkholm/comexcl/internal/workspace"
)

// FileWarning records a file that could not be read. The file is skipped and
// ingestion continues.
type FileWarning struct {
	Path string
	Err  error
}

func (w FileWarning) Error() string {
	return fmt.Sprintf("skipped %s: %v", w.Path, w.Err)
}

func (w FileWarning) Unwrap() error { return w.Err }

// Options tunes an Ingestor. Zero values select the defaults.
type Options struct {
	BatchRows   int
	SampleBytes int
}

// Ingestor reads staged files into records. It is not safe for concurrent
// use; warnings belong to the most recent Ingest sequence.
type Ingestor struct {
	schema      *Schema
	batchRows   int
	sampleBytes int
	warnings    []FileWarning
}

// NewIngestor creates an ingestor aligning rows to schema.
func NewIngestor(schema *Schema, opts Options) *Ingestor {
	if opts.BatchRows <= 0 {
		opts.BatchRows = DefaultBatchRows
	}
	if opts.SampleBytes <= 0 {
		opts.SampleBytes = DefaultSampleBytes
	}
	return &Ingestor{
		schema:      schema,
		batchRows:   opts.BatchRows,
		sampleBytes: opts.SampleBytes,
	}
}

// Schema returns the schema rows are aligned to.
func (in *Ingestor) Schema() *Schema { return in.schema }

// Warnings returns the files skipped so far by the current sequence.
func (in *Ingestor) Warnings() []FileWarning {
	out := make([]FileWarning, len(in.warnings))
	copy(out, in.warnings)
	return out
}

// Ingest returns a lazy, single-pass sequence over the records of files, in
// the given order. Unreadable files become warnings. The only error the
// sequence yields is the context's, after which it ends.
func (in *Ingestor) Ingest(ctx context.Context, files []workspace.StagedFile, prov Provenance) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		in.warnings = nil
		logger := logging.FromContext(ctx)

		// emit ends the sequence with the context error as soon as it is
		// cancelled, even inside a batch.
		emit := func(rows []RawRow) bool {
			for _, row := range rows {
				if err := ctx.Err(); err != nil {
					yield(Record{}, err)
					return false
				}
				if !yield(NewRecord(in.schema, row, prov), nil) {
					return false
				}
			}
			return true
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}

			logger.Info("reading file", "file", f.Name(), "size", f.Size)

			var (
				err  error
				stop bool
			)
			switch f.Kind() {
			case workspace.KindDelimited:
				stop, err = in.readDelimited(ctx, f, emit, logger)
			case workspace.KindSpreadsheet:
				stop, err = in.readSpreadsheet(f, emit)
			default:
				err = fmt.Errorf("unsupported extension %q", f.Ext)
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				yield(Record{}, err)
				return
			}
			if err != nil {
				w := FileWarning{Path: f.Path, Err: err}
				in.warnings = append(in.warnings, w)
				logger.Warn("file skipped", "file", f.Name(), "error", err)
			}
			if stop {
				return
			}
		}
	}
}

// readDelimited emits the rows of a text file. stop reports that the
// consumer ended the sequence.
func (in *Ingestor) readDelimited(ctx context.Context, f workspace.StagedFile, emit func([]RawRow) bool, logger *slog.Logger) (stop bool, err error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return false, err
	}
	defer fh.Close()

	sample := make([]byte, in.sampleBytes)
	n, err := io.ReadFull(fh, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("read sample: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	d := Sniff(sample[:n])
	logger.Debug("sniffed file", "file", f.Name(), "encoding", d.EncodingName, "delimiter", string(d.Comma))

	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind: %w", err)
	}

	br := NewBatchReader(DecodeReader(fh, d.Encoding), d.Comma, in.batchRows)
	defer func() {
		if br.Skipped() > 0 {
			logger.Warn("malformed lines skipped", "file", f.Name(), "count", br.Skipped())
		}
	}()

	for batch, err := range br.Batches() {
		if err != nil {
			return false, err
		}
		if !emit(batch) {
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (in *Ingestor) readSpreadsheet(f workspace.StagedFile, emit func([]RawRow) bool) (stop bool, err error) {
	if f.Ext == ".xls" {
		return false, ErrUnsupportedWorkbook
	}
	rows, err := readWorkbook(f.Path)
	if err != nil {
		return false, err
	}
	return !emit(rows), nil
}
