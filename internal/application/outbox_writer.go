package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type OutboxWriter interface {
	Enqueue(ctx context.Context, ev primitives.Event) error
}

type outboxWriter struct {
	repo domain.OutboxRepository
}

func NewOutboxWriter(repo domain.OutboxRepository) OutboxWriter {
	return &outboxWriter{repo: repo}
}

func (w *outboxWriter) Enqueue(ctx context.Context, ev primitives.Event) error {
	eventType := ev.GetRoutingKey()
	if eventType == "" {
		return errors.New("outbox event without routing key")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := domain.OutboxMessage{
		ID:            uuid.New(),
		Type:          eventType,
		PayloadJSON:   string(payload),
		OccurredAtUtc: time.Now().UTC().Unix(),
	}
	return w.repo.Insert(ctx, msg)
}
