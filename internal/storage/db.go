// Package storage persists decoded drive logs. Three stores divide the
// work: a local SQLite archive backs the offline CLI, PostgreSQL keeps
// the mutable vehicle registry and decode-run bookkeeping, and
// ClickHouse holds the telemetry samples for analytics.
package storage

import (
	"context"
	"fmt"

	"tacho_parser/internal/tacho"
)

// Config carries the connection settings for both server-side stores.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// Stores bundles the server-side connections so the ingest feed and the
// API can hold one handle. The SQLite archive is deliberately separate:
// it belongs to the CLI and never runs alongside these.
type Stores struct {
	CH *ClickHouseDB
	PG *PostgresDB
}

// Open connects to ClickHouse and PostgreSQL. When only one of the two
// opens, it is closed again before the error is returned.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &Stores{CH: ch, PG: pg}, nil
}

// Close closes both connections and reports the first failure.
func (s *Stores) Close() error {
	var first error
	if s.CH != nil {
		if err := s.CH.Close(); err != nil {
			first = fmt.Errorf("clickhouse: %w", err)
		}
	}
	if s.PG != nil {
		s.PG.Close()
	}
	return first
}

// CreateSchemas creates the tables in both stores.
func (s *Stores) CreateSchemas(ctx context.Context) error {
	if err := s.CH.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := s.PG.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// StoreResult persists one decode result across both stores: the vehicle
// identity is upserted into the registry, a decode run is recorded
// against the plate, and the samples land in ClickHouse keyed by the
// returned run id. source names where the payload came from, e.g. a NATS
// subject.
//
// The three writes are not atomic across the two databases; a ClickHouse
// failure leaves the run row behind with its sample_count as the record
// of what was lost.
func (s *Stores) StoreResult(ctx context.Context, source string, result *tacho.DecodeResult) (int64, error) {
	if err := s.PG.UpsertVehicle(ctx, result.Header); err != nil {
		return 0, err
	}

	runID, err := s.PG.RecordRun(ctx, result.Header.Plate, source,
		len(result.Samples), len(result.Errors))
	if err != nil {
		return 0, err
	}

	if err := s.CH.InsertSamples(ctx, uint64(runID), result.Header.Plate, result.Samples); err != nil {
		return 0, fmt.Errorf("run %d: %w", runID, err)
	}
	return runID, nil
}
