package events

import (
	"context"
	"log"
)

// GuildStateInvalidator is what the consumer needs from the permission
// manager: dropping a guild's cached state, and wiping it on deletion.
type GuildStateInvalidator interface {
	InvalidateGuild(guildID int64)
	ResetGuildConfig(ctx context.Context, guildID int64, actorID int64) error
}

// GuildEventConsumer listens for guild lifecycle events and keeps the
// manager's view consistent: role changes invalidate, deletions wipe.
type GuildEventConsumer struct {
	rabbitMQ *RabbitMQClient
	manager  GuildStateInvalidator
	enabled  bool
	done     chan struct{}
}

func NewGuildEventConsumer(rabbitURI string, manager GuildStateInvalidator) (*GuildEventConsumer, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, guild event consumption is disabled")
		return &GuildEventConsumer{enabled: false}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	if err := client.setupExchangesAndQueues(); err != nil {
		client.Close()
		return nil, err
	}

	return &GuildEventConsumer{
		rabbitMQ: client,
		manager:  manager,
		enabled:  true,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming in a background goroutine. Safe to call on a
// disabled consumer.
func (c *GuildEventConsumer) Start(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	deliveries, err := c.rabbitMQ.channel.Consume(
		GuildQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		log.Printf("Consuming guild events from queue %s", GuildQueue)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Println("Guild event delivery channel closed")
					return
				}
				c.handleDelivery(ctx, delivery.RoutingKey, delivery.Body)
				if err := delivery.Ack(false); err != nil {
					log.Printf("Failed to ack guild event: %v", err)
				}
			}
		}
	}()
	return nil
}

func (c *GuildEventConsumer) handleDelivery(ctx context.Context, routingKey string, body []byte) {
	event, err := GuildEventFromJSON(body)
	if err != nil {
		log.Printf("Dropping malformed guild event on %s: %v", routingKey, err)
		return
	}

	switch EventType(routingKey) {
	case GuildRolesChanged:
		log.Printf("Roles changed in guild %d, invalidating cached state", event.GuildID)
		c.manager.InvalidateGuild(event.GuildID)
	case GuildDeleted:
		log.Printf("Guild %d deleted, wiping permission config", event.GuildID)
		if err := c.manager.ResetGuildConfig(ctx, event.GuildID, 0); err != nil {
			log.Printf("Failed to wipe config for deleted guild %d: %v", event.GuildID, err)
		}
	default:
		log.Printf("Ignoring guild event with unknown routing key %q", routingKey)
	}
}

func (c *GuildEventConsumer) Close() error {
	if !c.enabled {
		return nil
	}
	close(c.done)
	return c.rabbitMQ.Close()
}
