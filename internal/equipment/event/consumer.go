package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

type Handler interface {
	Handle(ctx context.Context, event entity.DatasetEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// Consumer drains a Bus with a fixed pool of workers, retrying failed
// deliveries with doubling backoff. Events with an id already handled are
// skipped.
type Consumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        sync.Map
	wg          sync.WaitGroup
}

func NewConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *Consumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &Consumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

func (c *Consumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.process(event)
	}
}

func (c *Consumer) process(event entity.DatasetEvent) {
	if c.handler == nil {
		return
	}

	if event.EventID != "" {
		if _, loaded := c.seen.LoadOrStore(event.EventID, struct{}{}); loaded {
			slog.Info("skip duplicate dataset event", "event_id", event.EventID, "dataset_id", event.DatasetID)
			return
		}
	}

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to handle dataset event after retries",
				"event_id", event.EventID,
				"kind", event.Kind,
				"dataset_id", event.DatasetID,
				"error", err,
			)
			return
		}

		time.Sleep(backoff)
		backoff *= 2
	}
}

// AuditLogger writes every dataset event to the structured log so evictions
// and deletes leave a trail after the data itself is gone.
type AuditLogger struct {
	Logger *slog.Logger
}

func (a AuditLogger) Handle(ctx context.Context, event entity.DatasetEvent) error {
	if event.EventID == "" {
		return errors.New("missing event id")
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if event.Kind == entity.EventDatasetEvicted || event.Kind == entity.EventDatasetDeleted {
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "dataset audit",
		"event_id", event.EventID,
		"kind", event.Kind,
		"owner", event.OwnerID,
		"dataset_id", event.DatasetID,
		"filename", event.Filename,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
