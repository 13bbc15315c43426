package repository

import (
	"context"
	"fmt"

	"github.com/mptx4869/store/internal/domain"
)

// InsertOrderEvent writes an outbox row. It runs in the same transaction as
// the order mutation so the event exists iff the mutation committed.
func (r *Repository) InsertOrderEvent(ctx context.Context, q DBTX, ev *domain.OrderEvent) error {
	query := `INSERT INTO order_events (id, order_id, user_id, event_type, payload)
	          VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := q.QueryRowContext(ctx, query,
		ev.ID, ev.OrderID, ev.UserID, ev.Type, []byte(ev.Payload),
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// GetUnprocessedEvents fetches the oldest unpublished outbox rows.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.OrderEvent, error) {
	query := `SELECT id, order_id, user_id, event_type, payload, created_at, processed_at
	          FROM order_events WHERE processed_at IS NULL
	          ORDER BY created_at LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.UserID, &ev.Type, &payload,
			&ev.CreatedAt, &ev.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventProcessed(ctx context.Context, eventID string) error {
	query := `UPDATE order_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
