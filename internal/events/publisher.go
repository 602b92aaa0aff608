package events

import (
	"context"
	"log"
)

// AuditPublisher pushes permission audit events to the permission-events
// exchange. With an empty URI it degrades to a no-op so local runs work
// without a broker.
type AuditPublisher struct {
	rabbitMQ *RabbitMQClient
	enabled  bool
}

func NewAuditPublisher(rabbitURI string) (*AuditPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &AuditPublisher{enabled: false}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	if err := client.setupExchangesAndQueues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AuditPublisher{
		rabbitMQ: client,
		enabled:  true,
	}, nil
}

// PublishPermissionEvent satisfies the manager's publisher contract. The
// routing key is the audit action name.
func (p *AuditPublisher) PublishPermissionEvent(ctx context.Context, routingKey string, payload any) error {
	if !p.enabled {
		return nil
	}

	event := NewPermissionEvent(EventType(routingKey), payload)
	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	if err := p.rabbitMQ.PublishEvent(PermissionExchange, routingKey, eventData); err != nil {
		return err
	}

	log.Printf("Published %s event", routingKey)
	return nil
}

func (p *AuditPublisher) Close() error {
	if !p.enabled || p.rabbitMQ == nil {
		return nil
	}
	return p.rabbitMQ.Close()
}
