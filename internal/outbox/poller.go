// Package outbox publishes order events written by the order service. Events
// are inserted in the same transaction as the order mutation and drained here
// on a timer, so delivery is at-least-once and survives broker downtime.
package outbox

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mptx4869/store/internal/domain"
)

const topic = "order-events"

type Store interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.OrderEvent, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}

// Writer is the slice of kafka.Writer the poller uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Poller struct {
	store     Store
	writer    Writer
	tick      time.Duration
	batchSize int
	log       zerolog.Logger
}

func NewPoller(store Store, brokers []string, log zerolog.Logger) *Poller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Poller{
		store:     store,
		writer:    w,
		tick:      time.Second,
		batchSize: 100,
		log:       log,
	}
}

// Close flushes and closes the underlying writer when it supports it.
func (p *Poller) Close() error {
	if c, ok := p.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Run drains the outbox until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	events, err := p.store.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, ev := range events {
		msg := kafka.Message{
			Key:   []byte(ev.ID),
			Value: ev.Payload,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
			},
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to publish event")
			continue
		}
		if err := p.store.MarkEventProcessed(ctx, ev.ID); err != nil {
			// The event will be re-published next tick; consumers
			// deduplicate by event id.
			p.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to mark event processed")
		}
	}
}
