package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tacho_parser/internal/tacho"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for telemetry storage.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
//
// Sample values are stored as the decoder's display strings. The decoder
// deliberately does not expose raw numerics, so the analytics schema keeps
// the same contract rather than re-parsing the suffixed values.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS samples (
		run_id              UInt64,
		plate               LowCardinality(String),
		idx                 UInt32,
		daily_distance      String,
		cumulative_distance String,
		sample_time         String,
		speed               LowCardinality(String),
		rpm                 String,
		brake               LowCardinality(String),
		longitude           String,
		latitude            String,
		heading             String,
		accel_x             String,
		accel_y             String,
		status              LowCardinality(String),
		recorded_at         DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(recorded_at)
	ORDER BY (plate, run_id, idx)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertSamples stores one run's telemetry samples in a single batch.
func (d *ClickHouseDB) InsertSamples(ctx context.Context, runID uint64, plate string, samples []tacho.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO samples (run_id, plate, idx, daily_distance, cumulative_distance, sample_time, speed, rpm, brake, longitude, latitude, heading, accel_x, accel_y, status)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, s := range samples {
		err := batch.Append(runID, plate, uint32(s.Index), s.DailyDistance,
			s.CumulativeDistance, s.Timestamp, s.Speed, s.RPM, s.Brake,
			s.Longitude, s.Latitude, s.Heading, s.AccelX, s.AccelY, s.Status)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// SamplesForRun retrieves one run's samples in index order.
func (d *ClickHouseDB) SamplesForRun(ctx context.Context, runID uint64) ([]tacho.TelemetrySample, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT idx, daily_distance, cumulative_distance, sample_time, speed, rpm, brake, longitude, latitude, heading, accel_x, accel_y, status
		FROM samples WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []tacho.TelemetrySample
	for rows.Next() {
		var s tacho.TelemetrySample
		var idx uint32
		if err := rows.Scan(&idx, &s.DailyDistance, &s.CumulativeDistance,
			&s.Timestamp, &s.Speed, &s.RPM, &s.Brake, &s.Longitude, &s.Latitude,
			&s.Heading, &s.AccelX, &s.AccelY, &s.Status); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Index = int(idx)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return samples, nil
}
