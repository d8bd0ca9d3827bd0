// Package main provides the tacho-ingest pipeline daemon.
//
// It subscribes to a NATS subject carrying raw drive-recorder uploads,
// decodes each payload, and stores the results: the vehicle registry and
// run bookkeeping in PostgreSQL, telemetry samples in ClickHouse.
//
// Usage:
//
//	tacho-ingest [options]
//
// Options:
//
//	-nats-url URL       NATS server URL (default: nats://localhost:4222, env: NATS_URL)
//	-subject SUBJ       Upload subject (default: tacho.raw.>, env: NATS_SUBJECT)
//	-queue NAME         Queue group name (default: tacho-ingest)
//	-ch-host HOST       ClickHouse host (default: localhost, env: CLICKHOUSE_HOST)
//	-ch-port PORT       ClickHouse port (default: 9000, env: CLICKHOUSE_PORT)
//	-ch-database DB     ClickHouse database (default: tacho, env: CLICKHOUSE_DATABASE)
//	-ch-user USER       ClickHouse user (default: default, env: CLICKHOUSE_USER)
//	-ch-password PASS   ClickHouse password (env: CLICKHOUSE_PASSWORD)
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: tacho_state, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: tacho, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (default: tacho, env: POSTGRES_PASSWORD)
//	-create-schema      Create database schemas on startup
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tacho_parser/internal/feed"
	"tacho_parser/internal/storage"
)

func main() {
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	subject := flag.String("subject", envOrDefault("NATS_SUBJECT", "tacho.raw.>"), "Upload subject")
	queue := flag.String("queue", "tacho-ingest", "Queue group name")

	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "tacho"), "ClickHouse database")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "tacho_state"), "PostgreSQL database")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "tacho"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "tacho"), "PostgreSQL password")

	createSchema := flag.Bool("create-schema", false, "Create database schemas on startup")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, storage.Config{
		ClickHouse: storage.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: *chDB,
			User:     *chUser,
			Password: *chPassword,
		},
		Postgres: storage.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			Database: *pgDB,
			User:     *pgUser,
			Password: *pgPassword,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening databases: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *createSchema {
		if err := db.CreateSchemas(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating schemas: %v\n", err)
			os.Exit(1)
		}
		log.Println("database schemas created")
	}

	consumer := feed.NewConsumer(feed.Config{
		URL:     *natsURL,
		Subject: *subject,
		Queue:   *queue,
	}, db)

	if err := consumer.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting feed: %v\n", err)
		os.Exit(1)
	}
	defer consumer.Stop()

	<-ctx.Done()

	st := consumer.Stats()
	log.Printf("shutting down: received=%d stored=%d fatal_input=%d store_failed=%d",
		st.Received, st.Stored, st.FatalInput, st.StoreFail)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
