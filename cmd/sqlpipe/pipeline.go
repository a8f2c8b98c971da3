package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/oteladapters"
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine"
)

// openPipeline opens the configured database handle and wraps it in a Pipeline.
// The returned func releases the handle.
func openPipeline(
	ctx context.Context,
	cfg Config,
	logger *slog.Logger,
	options ...sqlengine.Option,
) (*sqlengine.Pipeline, func(), error) {
	options = append(options,
		sqlengine.WithLogger(logger),
		sqlengine.WithRowSerializer(cfg.RowSerializer()),
	)

	if cfg.Observability {
		options = append(options,
			sqlengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("sqlpipe")),
			sqlengine.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("sqlpipe"))),
			sqlengine.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("sqlpipe"))),
		)
	}

	switch cfg.Adapter {
	case adapterSQL:
		db, err := sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		pipeline, err := sqlengine.NewPipelineFromSQLDB(db, cfg.Driver, cfg.DSN, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return pipeline, func() { _ = db.Close() }, nil

	case adapterSQLX:
		db, err := sqlx.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		pipeline, err := sqlengine.NewPipelineFromSQLX(db, cfg.DSN, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return pipeline, func() { _ = db.Close() }, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		pipeline, err := sqlengine.NewPipelineFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return pipeline, pool.Close, nil
	}
}
