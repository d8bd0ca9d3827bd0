// Package feed consumes raw drive-recorder uploads from NATS.
//
// Each message payload is one complete log file as uploaded from a
// vehicle gateway. The consumer decodes it and stores the result: vehicle
// identity and run bookkeeping in PostgreSQL, telemetry samples in
// ClickHouse. A payload that fails with a fatal input error is counted
// and dropped; the feed keeps running.
package feed

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"tacho_parser/internal/decoder"
	"tacho_parser/internal/storage"
)

// Config holds NATS connection settings for the upload feed.
type Config struct {
	URL     string // NATS server URL, e.g. nats://localhost:4222.
	Subject string // Subject carrying raw log payloads, e.g. "tacho.raw.>".
	Queue   string // Queue group so multiple consumers share the load.
}

// Stats holds feed counters. Values are cumulative since Start.
type Stats struct {
	Received   uint64 // Payloads received from the subject.
	Stored     uint64 // Payloads decoded and stored.
	FatalInput uint64 // Payloads rejected as undecodable/empty.
	StoreFail  uint64 // Decoded payloads that failed to store.
}

// Consumer subscribes to the upload subject and stores decode results.
type Consumer struct {
	cfg Config
	db  *storage.Stores

	nc  *nats.Conn
	sub *nats.Subscription

	received   atomic.Uint64
	stored     atomic.Uint64
	fatalInput atomic.Uint64
	storeFail  atomic.Uint64
}

// NewConsumer creates a consumer over an open storage handle.
func NewConsumer(cfg Config, db *storage.Stores) *Consumer {
	return &Consumer{cfg: cfg, db: db}
}

// Start connects to NATS and subscribes. It returns once the subscription
// is active; message handling runs on the NATS delivery goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.URL,
		nats.Name("tacho-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	c.nc = nc

	sub, err := nc.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub

	log.Printf("feed: subscribed to %s (queue %s)", c.cfg.Subject, c.cfg.Queue)
	return nil
}

// Stop drains the subscription and closes the connection.
func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Drain()
	}
	if c.nc != nil {
		c.nc.Close()
	}
}

// Stats returns a snapshot of the feed counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received:   c.received.Load(),
		Stored:     c.stored.Load(),
		FatalInput: c.fatalInput.Load(),
		StoreFail:  c.storeFail.Load(),
	}
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	c.received.Add(1)

	result, err := decoder.Decode(ctx, msg.Data)
	if err != nil {
		c.fatalInput.Add(1)
		log.Printf("feed: drop payload on %s: %v", msg.Subject, err)
		return
	}

	runID, err := c.db.StoreResult(ctx, msg.Subject, result)
	if err != nil {
		c.storeFail.Add(1)
		log.Printf("feed: store failed for %s: %v", msg.Subject, err)
		return
	}
	c.stored.Add(1)

	if len(result.Errors) > 0 {
		log.Printf("feed: run %d on %s decoded with %d record errors (%d samples kept)",
			runID, msg.Subject, len(result.Errors), len(result.Samples))
	}
}
