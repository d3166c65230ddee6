package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel drained events land on.
const DefaultChannel = "stocklane.events"

// Publisher delivers a drained event to its destination.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// RedisPublisher publishes events to a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher constructs RedisPublisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

type wireEvent struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publish sends the event as a JSON envelope.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(wireEvent{
		ID:        evt.ID.String(),
		Topic:     evt.Topic,
		Payload:   evt.Payload,
		CreatedAt: evt.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, raw).Err()
}

// Store is the slice of the repository the dispatcher needs.
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Dispatcher drains the outbox on an interval.
type Dispatcher struct {
	repo      Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewDispatcher constructs Dispatcher.
func NewDispatcher(repo Store, publisher Publisher, logger *slog.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, publisher: publisher, logger: logger, interval: interval, batchSize: 100}
}

// Run drains until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DrainOnce(ctx); err != nil {
				d.logger.Error("outbox drain failed", slog.Any("error", err))
			}
		}
	}
}

// DrainOnce publishes one batch of unpublished events. Events that fail to
// publish stay unpublished and are retried on the next pass.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	events, err := d.repo.FetchUnpublished(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(events))
	for _, evt := range events {
		if err := d.publisher.Publish(ctx, evt); err != nil {
			d.logger.Error("publish event failed",
				slog.String("event_id", evt.ID.String()),
				slog.String("topic", evt.Topic),
				slog.Any("error", err))
			break
		}
		published = append(published, evt.ID)
	}
	return d.repo.MarkPublished(ctx, published)
}
