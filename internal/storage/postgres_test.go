package storage

import (
	"context"
	"os"
	"testing"

	"tacho_parser/internal/tacho"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "tacho"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "tacho"
	}
	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		database = "tacho_state"
	}

	ctx := context.Background()
	pg, err := OpenPostgres(ctx, PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		return nil
	}

	// Ensure schema exists.
	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		return nil
	}

	return pg
}

func TestUpsertVehicle(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()

	// Clean up test data before and after the test.
	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM vehicles WHERE plate = '99TEST99'")
	}
	cleanup()
	defer cleanup()

	header := tacho.VehicleHeader{
		Model:        "TACHO-X1",
		VIN:          "KMHXX00XXXX000000",
		VehicleType:  "11",
		Plate:        "99TEST99",
		Registration: "123-45-67890",
		DriverCode:   "DRV001",
	}

	if err := pg.UpsertVehicle(ctx, header); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	v, err := pg.GetVehicle(ctx, "99TEST99")
	if err != nil {
		t.Fatalf("get vehicle failed: %v", err)
	}
	if v == nil {
		t.Fatal("vehicle not found after upsert")
	}
	if v.DecodeCount != 1 {
		t.Errorf("DecodeCount = %d, want 1", v.DecodeCount)
	}

	// Second upsert refreshes identity and bumps the decode count.
	header.DriverCode = "DRV002"
	if err := pg.UpsertVehicle(ctx, header); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	v, err = pg.GetVehicle(ctx, "99TEST99")
	if err != nil {
		t.Fatalf("get vehicle failed: %v", err)
	}
	if v.DecodeCount != 2 {
		t.Errorf("DecodeCount = %d, want 2", v.DecodeCount)
	}
	if v.DriverCode != "DRV002" {
		t.Errorf("DriverCode = %q, want %q", v.DriverCode, "DRV002")
	}
}

func TestGetVehicle_Unknown(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	v, err := pg.GetVehicle(context.Background(), "NO-SUCH-PLATE")
	if err != nil {
		t.Fatalf("GetVehicle() error: %v", err)
	}
	if v != nil {
		t.Errorf("GetVehicle(unknown) = %+v, want nil", v)
	}
}

func TestUpsertVehicle_EmptyPlateIgnored(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	if err := pg.UpsertVehicle(context.Background(), tacho.VehicleHeader{}); err != nil {
		t.Errorf("UpsertVehicle(empty plate) error: %v", err)
	}
}
