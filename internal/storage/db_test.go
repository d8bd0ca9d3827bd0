package storage

import (
	"context"
	"os"
	"testing"

	"tacho_parser/internal/tacho"
)

// setupTestStores opens both server-side stores.
// Returns nil if either connection is unavailable.
func setupTestStores(t *testing.T) *Stores {
	t.Helper()

	pg := setupTestPostgres(t)
	if pg == nil {
		return nil
	}

	chHost := os.Getenv("CLICKHOUSE_HOST")
	if chHost == "" {
		chHost = "localhost"
	}
	ctx := context.Background()
	ch, err := OpenClickHouse(ctx, ClickHouseConfig{
		Host:     chHost,
		Port:     9000,
		Database: "tacho",
		User:     "default",
	})
	if err != nil {
		pg.Close()
		return nil
	}
	if err := ch.CreateSchema(ctx); err != nil {
		pg.Close()
		_ = ch.Close()
		return nil
	}

	return &Stores{CH: ch, PG: pg}
}

func TestStoreResult(t *testing.T) {
	stores := setupTestStores(t)
	if stores == nil {
		t.Skip("No ClickHouse/PostgreSQL connection available")
	}
	defer stores.Close()

	ctx := context.Background()

	cleanup := func() {
		_, _ = stores.PG.pool.Exec(ctx, "DELETE FROM decode_runs WHERE plate = '98TEST98'")
		_, _ = stores.PG.pool.Exec(ctx, "DELETE FROM vehicles WHERE plate = '98TEST98'")
	}
	cleanup()
	defer cleanup()

	result := &tacho.DecodeResult{
		Header: tacho.VehicleHeader{
			Model: "TACHO-X1",
			VIN:   "KMHXX00XXXX000001",
			Plate: "98TEST98",
		},
		Samples: []tacho.TelemetrySample{
			{Index: 1, Timestamp: "2025-01-11 00:00:00.00", Speed: "60 km/h", DailyDistance: "123 km"},
			{Index: 2, Timestamp: "2025-01-11 00:00:01.00", Speed: "61 km/h"},
		},
	}

	runID, err := stores.StoreResult(ctx, "test.upload", result)
	if err != nil {
		t.Fatalf("StoreResult() error: %v", err)
	}
	if runID <= 0 {
		t.Fatalf("runID = %d, want > 0", runID)
	}

	runs, err := stores.PG.RunsForVehicle(ctx, "98TEST98", 10)
	if err != nil {
		t.Fatalf("RunsForVehicle() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].ID != runID {
		t.Errorf("run ID = %d, want %d", runs[0].ID, runID)
	}
	if runs[0].SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", runs[0].SampleCount)
	}

	samples, err := stores.CH.SamplesForRun(ctx, uint64(runID))
	if err != nil {
		t.Fatalf("SamplesForRun() error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if samples[0].Speed != "60 km/h" {
		t.Errorf("Speed = %q, want %q", samples[0].Speed, "60 km/h")
	}
	if samples[1].DailyDistance != "" {
		t.Errorf("second sample DailyDistance = %q, want empty", samples[1].DailyDistance)
	}
}
