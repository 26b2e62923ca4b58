package messaging

import (
	messaging "github.com/rodolfodevapp/eventshop-messaging-go/rabbitmq"
)

// NewAvailabilityEventBus builds the producer bus for availability
// integration events. This service only publishes; nobody here consumes.
func NewAvailabilityEventBus(rabbitUri string) *messaging.RabbitMqEventBus {
	opts := messaging.RabbitMqOptions{
		URI:          rabbitUri,
		ExchangeName: "catalog-availability.events",
		QueuePrefix:  "presto-sync.dispatcher.v1",
		Prefetch:     32,
		RetryDelayMs: 30000,
	}
	return messaging.NewRabbitMqEventBus(opts, nil, nil)
}
