package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tacho_parser/internal/tacho"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Registry: one row per vehicle, keyed by licence plate, carrying the
	-- identity from the most recent decode.
	CREATE TABLE IF NOT EXISTS vehicles (
		plate           TEXT PRIMARY KEY,
		model           TEXT NOT NULL,
		vin             TEXT NOT NULL,
		vehicle_type    TEXT,
		registration    TEXT,
		driver_code     TEXT,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		decode_count    INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_vin ON vehicles(vin);
	CREATE INDEX IF NOT EXISTS idx_vehicles_registration ON vehicles(registration);

	-- Bookkeeping: one row per decoded file (samples live in ClickHouse,
	-- keyed by the run id issued here).
	CREATE TABLE IF NOT EXISTS decode_runs (
		id              BIGSERIAL PRIMARY KEY,
		plate           TEXT NOT NULL,
		source          TEXT NOT NULL,
		sample_count    INTEGER NOT NULL,
		error_count     INTEGER NOT NULL,
		decoded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_decode_runs_plate ON decode_runs(plate);
	CREATE INDEX IF NOT EXISTS idx_decode_runs_decoded_at ON decode_runs(decoded_at);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create postgres schema: %w", err)
	}
	return nil
}

// Vehicle is one row of the vehicle registry.
type Vehicle struct {
	Plate        string    `json:"plate"`
	Model        string    `json:"model"`
	VIN          string    `json:"vin"`
	VehicleType  string    `json:"vehicle_type,omitempty"`
	Registration string    `json:"registration,omitempty"`
	DriverCode   string    `json:"driver_code,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	DecodeCount  int       `json:"decode_count"`
}

// UpsertVehicle inserts or refreshes the registry row for the header's
// plate. Vehicles with an empty plate are not tracked.
func (d *PostgresDB) UpsertVehicle(ctx context.Context, h tacho.VehicleHeader) error {
	if h.Plate == "" {
		return nil
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO vehicles (plate, model, vin, vehicle_type, registration, driver_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (plate) DO UPDATE SET
			model = EXCLUDED.model,
			vin = EXCLUDED.vin,
			vehicle_type = EXCLUDED.vehicle_type,
			registration = EXCLUDED.registration,
			driver_code = EXCLUDED.driver_code,
			last_seen = NOW(),
			decode_count = vehicles.decode_count + 1
	`, h.Plate, h.Model, h.VIN, h.VehicleType, h.Registration, h.DriverCode)
	if err != nil {
		return fmt.Errorf("upsert vehicle: %w", err)
	}
	return nil
}

// GetVehicle returns the registry row for a plate, or nil when unknown.
func (d *PostgresDB) GetVehicle(ctx context.Context, plate string) (*Vehicle, error) {
	var v Vehicle
	err := d.pool.QueryRow(ctx, `
		SELECT plate, model, vin, vehicle_type, registration, driver_code, first_seen, last_seen, decode_count
		FROM vehicles WHERE plate = $1
	`, plate).Scan(&v.Plate, &v.Model, &v.VIN, &v.VehicleType, &v.Registration,
		&v.DriverCode, &v.FirstSeen, &v.LastSeen, &v.DecodeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return &v, nil
}

// ListVehicles returns registry rows ordered by most recently seen.
func (d *PostgresDB) ListVehicles(ctx context.Context, limit int) ([]Vehicle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.pool.Query(ctx, `
		SELECT plate, model, vin, vehicle_type, registration, driver_code, first_seen, last_seen, decode_count
		FROM vehicles ORDER BY last_seen DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.Plate, &v.Model, &v.VIN, &v.VehicleType, &v.Registration,
			&v.DriverCode, &v.FirstSeen, &v.LastSeen, &v.DecodeCount); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// DecodeRun is one bookkeeping row for a decoded file.
type DecodeRun struct {
	ID          int64     `json:"id"`
	Plate       string    `json:"plate"`
	Source      string    `json:"source"`
	SampleCount int       `json:"sample_count"`
	ErrorCount  int       `json:"error_count"`
	DecodedAt   time.Time `json:"decoded_at"`
}

// RecordRun stores bookkeeping for one decode and returns the run id used
// to key the samples in ClickHouse.
func (d *PostgresDB) RecordRun(ctx context.Context, plate, source string, sampleCount, errorCount int) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO decode_runs (plate, source, sample_count, error_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, plate, source, sampleCount, errorCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// RunsForVehicle returns the decode runs recorded for a plate, newest first.
func (d *PostgresDB) RunsForVehicle(ctx context.Context, plate string, limit int) ([]DecodeRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, plate, source, sample_count, error_count, decoded_at
		FROM decode_runs WHERE plate = $1 ORDER BY decoded_at DESC LIMIT $2
	`, plate, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []DecodeRun
	for rows.Next() {
		var r DecodeRun
		if err := rows.Scan(&r.ID, &r.Plate, &r.Source, &r.SampleCount, &r.ErrorCount, &r.DecodedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
