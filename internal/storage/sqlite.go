package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tacho_parser/internal/tacho"
)

// Archive is a local SQLite store of decode runs, used by the CLI so a
// decoded file can be revisited without re-uploading it.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates a SQLite archive at the given path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createArchiveSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

func createArchiveSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		model TEXT,
		vin TEXT,
		vehicle_type TEXT,
		plate TEXT,
		registration TEXT,
		driver_code TEXT,
		sample_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		errors_json TEXT,
		decoded_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_runs_plate ON runs(plate);
	CREATE INDEX IF NOT EXISTS idx_runs_decoded_at ON runs(decoded_at);

	CREATE TABLE IF NOT EXISTS samples (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		daily_distance TEXT,
		cumulative_distance TEXT,
		sample_time TEXT NOT NULL,
		speed TEXT NOT NULL,
		rpm TEXT NOT NULL,
		brake TEXT NOT NULL,
		longitude TEXT NOT NULL,
		latitude TEXT NOT NULL,
		heading TEXT NOT NULL,
		accel_x TEXT NOT NULL,
		accel_y TEXT NOT NULL,
		status TEXT,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_samples_time ON samples(sample_time);
	`

	_, err := db.Exec(schema)
	return err
}

// RunSummary is one archived decode run.
type RunSummary struct {
	ID          int64
	Source      string
	Header      tacho.VehicleHeader
	SampleCount int
	ErrorCount  int
	DecodedAt   time.Time
}

// SaveResult archives one decode run and all of its samples in a single
// transaction. It returns the archive run id.
func (a *Archive) SaveResult(source string, result *tacho.DecodeResult) (int64, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errorsJSON []byte
	if len(result.Errors) > 0 {
		errorsJSON, err = json.Marshal(result.Errors)
		if err != nil {
			return 0, fmt.Errorf("marshal errors: %w", err)
		}
	}

	h := result.Header
	res, err := tx.Exec(`
		INSERT INTO runs (source, model, vin, vehicle_type, plate, registration, driver_code, sample_count, error_count, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, source, h.Model, h.VIN, h.VehicleType, h.Plate, h.Registration, h.DriverCode,
		len(result.Samples), len(result.Errors), string(errorsJSON))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO samples (run_id, idx, daily_distance, cumulative_distance, sample_time, speed, rpm, brake, longitude, latitude, heading, accel_x, accel_y, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare samples: %w", err)
	}
	defer stmt.Close()

	for _, s := range result.Samples {
		if _, err := stmt.Exec(runID, s.Index, s.DailyDistance, s.CumulativeDistance,
			s.Timestamp, s.Speed, s.RPM, s.Brake, s.Longitude, s.Latitude,
			s.Heading, s.AccelX, s.AccelY, s.Status); err != nil {
			return 0, fmt.Errorf("insert sample %d: %w", s.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the most recently archived runs, newest first.
func (a *Archive) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.Query(`
		SELECT id, source, model, vin, vehicle_type, plate, registration, driver_code, sample_count, error_count, decoded_at
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var decodedAt string
		if err := rows.Scan(&r.ID, &r.Source, &r.Header.Model, &r.Header.VIN,
			&r.Header.VehicleType, &r.Header.Plate, &r.Header.Registration,
			&r.Header.DriverCode, &r.SampleCount, &r.ErrorCount, &decodedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.DecodedAt, _ = time.Parse("2006-01-02 15:04:05", decodedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Samples returns the archived samples for one run in index order.
func (a *Archive) Samples(runID int64) ([]tacho.TelemetrySample, error) {
	rows, err := a.db.Query(`
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
		if err := rows.Scan(&s.Index, &s.DailyDistance, &s.CumulativeDistance,
			&s.Timestamp, &s.Speed, &s.RPM, &s.Brake, &s.Longitude, &s.Latitude,
			&s.Heading, &s.AccelX, &s.AccelY, &s.Status); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
