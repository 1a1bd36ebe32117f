package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/comexcl/internal/archive"
	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/config"
	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/download"
	"github.com/JonMunkholm/comexcl/internal/store"
	"github.com/JonMunkholm/comexcl/internal/tabular"
)

// newService builds the pipeline from cfg. The returned pool is nil when no
// database was opened; callers close it otherwise.
func newService(ctx context.Context, cfg *config.Config, persist, isolate bool) (*core.Service, *pgxpool.Pool, error) {
	schema := tabular.DefaultSchema()
	if cfg.Ingest.SchemaFile != "" {
		s, err := tabular.LoadSchemaFile(cfg.Ingest.SchemaFile)
		if err != nil {
			return nil, nil, err
		}
		schema = s
	}
	slog.Debug("schema loaded", "fields", schema.Width())

	svc := core.NewService(
		catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.DatasetPattern, cfg.Catalog.Timeout),
		download.New(cfg.Download.Timeout),
		archive.NewExtractor(archive.DefaultChain()...),
		schema,
		catalog.DefaultMonthTokens(),
		core.Options{
			WorkDir:     cfg.Workspace.Dir,
			CountryCode: cfg.Ingest.CountryCode,
			BatchRows:   cfg.Ingest.BatchRows,
			SampleBytes: cfg.Ingest.SampleBytes,
			IsolateRuns: isolate,
		},
	)

	if !persist || cfg.Database.URL == "" {
		return svc, nil, nil
	}

	pool, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureTable(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	batch := cfg.Database.BatchSize
	svc.WithWriters(func(runID uuid.UUID) core.RecordWriter {
		return store.NewWriter(pool, runID, batch)
	})
	return svc, pool, nil
}

// runImport executes a single CLI run.
func runImport(ctx context.Context, cfg *config.Config, req core.Request, out io.Writer) error {
	svc, pool, err := newService(ctx, cfg, req.Persist, false)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	res, err := svc.Run(ctx, req, out)
	if err != nil {
		return err
	}

	slog.Info("import complete",
		"run_id", res.RunID.String(),
		"total", res.Total,
		"files", len(res.Files),
		"warnings", len(res.Warnings),
	)
	return nil
}
