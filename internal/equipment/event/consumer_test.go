package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

type handlerFunc func(ctx context.Context, event entity.DatasetEvent) error

func (h handlerFunc) Handle(ctx context.Context, event entity.DatasetEvent) error {
	return h(ctx, event)
}

func TestConsumerRetriesAndIsIdempotent(t *testing.T) {
	bus := NewBus(10)

	var attempts int32
	done := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, event entity.DatasetEvent) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("temporary failure")
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	consumer := NewConsumer(bus, handler, ConsumerConfig{
		Workers:     1,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})
	consumer.Start()

	event := entity.DatasetEvent{EventID: "evt-1", Kind: entity.EventDatasetIngested, DatasetID: 1}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop consumer: %v", err)
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestBusRejectsPublishAfterClose(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	bus.Close()
	bus.Close()

	if err := bus.Publish(context.Background(), entity.DatasetEvent{EventID: "x"}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("Publish() err = %v, want ErrBusClosed", err)
	}
}

func TestBusPublishHonorsContext(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	if err := bus.Publish(context.Background(), entity.DatasetEvent{EventID: "a"}); err != nil {
		t.Fatalf("Publish() err = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := bus.Publish(ctx, entity.DatasetEvent{EventID: "b"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Publish() on full bus err = %v, want deadline exceeded", err)
	}
}

func TestAuditLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	audit := AuditLogger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := audit.Handle(context.Background(), entity.DatasetEvent{
		EventID:   "evt-9",
		Kind:      entity.EventDatasetEvicted,
		OwnerID:   "alice",
		DatasetID: 77,
	})
	if err != nil {
		t.Fatalf("Handle() err = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"kind":"DATASET_EVICTED"`, `"dataset_id":77`, `"owner":"alice"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}

	if err := audit.Handle(context.Background(), entity.DatasetEvent{}); err == nil {
		t.Fatalf("expected error for event without id")
	}
}
