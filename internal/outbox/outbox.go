// Package outbox persists domain events transactionally alongside the
// aggregates that raised them. A worker drains unpublished rows and
// publishes them to a Redis channel; the write path never dispatches
// events directly.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one persisted domain event.
type Event struct {
	ID          uuid.UUID
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEvent builds an Event with a JSON-encoded payload.
func NewEvent(topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: marshal payload: %w", err)
	}
	return Event{
		ID:        uuid.New(),
		Topic:     topic,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Repository persists and drains outbox rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx appends events inside the caller's transaction so the rows commit
// or roll back with the aggregate they describe.
func InsertTx(ctx context.Context, tx pgx.Tx, events ...Event) error {
	for _, evt := range events {
		_, err := tx.Exec(ctx, `INSERT INTO outbox_events (id, topic, payload, created_at)
VALUES ($1,$2,$3,$4)`, evt.ID, evt.Topic, evt.Payload, evt.CreatedAt)
		if err != nil {
			return fmt.Errorf("outbox: insert event: %w", err)
		}
	}
	return nil
}

// FetchUnpublished returns the oldest unpublished events, up to limit.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, topic, payload, created_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY created_at ASC, id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.Topic, &evt.Payload, &evt.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// MarkPublished stamps the events as delivered.
func (r *Repository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1)`, ids)
	return err
}
