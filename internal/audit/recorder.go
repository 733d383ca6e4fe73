package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

const (
	insertEvents = `INSERT INTO auth_events (event_id, event_type, user_id, phone_hash, outcome, error_code, occurred_at)`

	createEventsTable = `CREATE TABLE IF NOT EXISTS auth_events (
    event_id    UUID,
    event_type  LowCardinality(String),
    user_id     String,
    phone_hash  String,
    outcome     LowCardinality(String),
    error_code  LowCardinality(String),
    occurred_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(occurred_at)
ORDER BY (event_type, occurred_at)
TTL toDateTime(occurred_at) + INTERVAL 180 DAY`
)

// Recorder accepts audit events. Record never blocks the request path.
type Recorder interface {
	Record(ctx context.Context, event models.AuthEvent)
}

type BatchWriter interface {
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
}

type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// EnsureSchema creates the auth_events table when it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if err := db.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create auth_events table: %w", err)
	}
	return nil
}

// ClickHouseRecorder buffers events and flushes them in batches from one
// goroutine. When the buffer is full new events are dropped.
type ClickHouseRecorder struct {
	writer        BatchWriter
	events        chan models.AuthEvent
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

func NewClickHouseRecorder(writer BatchWriter, batchSize int, flushInterval time.Duration) *ClickHouseRecorder {
	if batchSize <= 0 {
		batchSize = 200
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	r := &ClickHouseRecorder{
		writer:        writer,
		events:        make(chan models.AuthEvent, batchSize*4),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *ClickHouseRecorder) Record(_ context.Context, event models.AuthEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case r.events <- event:
	default:
		util.Warn("Audit buffer full, dropping event", zap.String("event_type", event.EventType))
	}
}

func (r *ClickHouseRecorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]models.AuthEvent, 0, r.batchSize)
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *ClickHouseRecorder) flush(batch []models.AuthEvent) {
	if len(batch) == 0 {
		return
	}
	rows := make([][]interface{}, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []interface{}{
			ev.EventID, ev.EventType, ev.UserID, ev.PhoneHash, ev.Outcome, ev.ErrorCode, ev.OccurredAt,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.writer.BatchInsert(ctx, insertEvents, rows); err != nil {
		util.Error("Failed to flush audit events", zap.Int("count", len(rows)), zap.Error(err))
		return
	}
	util.Debug("Audit events flushed", zap.Int("count", len(rows)))
}

// Close flushes buffered events and stops the flush goroutine.
func (r *ClickHouseRecorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.events)
		<-r.done
	})
	return nil
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, models.AuthEvent) {}
