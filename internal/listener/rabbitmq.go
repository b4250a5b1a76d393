// Package listener feeds the events manager with infrastructure change
// notifications, from the OpenStack message bus and from the filesystem
// holding the hardware dumps.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/internal/events"
)

// RabbitMQListener consumes OpenStack service notifications from the
// topic exchanges of the control plane broker and dispatches them as
// events. Connection loss is handled by a bounded reconnect loop.
type RabbitMQListener struct {
	cfg     config.RabbitMQConfig
	manager *events.Manager
}

// NewRabbitMQListener creates the notification bus listener.
func NewRabbitMQListener(cfg config.RabbitMQConfig, manager *events.Manager) *RabbitMQListener {
	return &RabbitMQListener{cfg: cfg, manager: manager}
}

func (l *RabbitMQListener) Name() string { return "rabbitmq" }

// Listen consumes notifications until the context is cancelled or the
// configured number of reconnect attempts is exhausted.
func (l *RabbitMQListener) Listen(ctx context.Context) error {
	retries := 0
	for {
		err := l.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retries++
		if retries > l.cfg.Retries {
			return err
		}
		log.Printf("Broker connection error: %v. Attempting reconnect (%d/%d)", err, retries, l.cfg.Retries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// consume opens one connection, binds the notification queue to every
// configured exchange and processes deliveries until the connection dies.
func (l *RabbitMQListener) consume(ctx context.Context) error {
	conn, err := amqp.Dial(l.cfg.URL())
	if err != nil {
		return err
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	queue, err := channel.QueueDeclare(l.cfg.Queue, false, true, false, false, nil)
	if err != nil {
		return err
	}

	for _, exchange := range l.cfg.Exchanges {
		if err := channel.ExchangeDeclare(exchange, "topic", false, false, false, false, nil); err != nil {
			return err
		}
		if err := channel.QueueBind(queue.Name, l.cfg.Topic, exchange, false, nil); err != nil {
			return err
		}
	}

	consumer := fmt.Sprintf("landscaper-%s", uuid.NewString()[:8])
	deliveries, err := channel.Consume(queue.Name, consumer, false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("Connected to OpenStack message queue at %s:%d", l.cfg.Host, l.cfg.Port)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-closed:
			return err
		case delivery, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			l.handleDelivery(ctx, delivery)
		}
	}
}

func (l *RabbitMQListener) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	event, ok := DecodeNotification(delivery.Body)
	if !ok {
		_ = delivery.Ack(false)
		return
	}

	if l.manager.Subscribed(event.Type) {
		l.manager.Dispatch(ctx, event)
	}
	_ = delivery.Ack(false)
}

// DecodeNotification parses an OpenStack notification body into an
// event. Notifications arrive either as plain JSON or wrapped in an oslo
// envelope whose "oslo.message" field holds the JSON-encoded message.
func DecodeNotification(body []byte) (events.Event, bool) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return events.Event{}, false
	}

	if wrapped, ok := raw["oslo.message"].(string); ok {
		if err := json.Unmarshal([]byte(wrapped), &raw); err != nil {
			return events.Event{}, false
		}
	}

	eventType, _ := raw["event_type"].(string)
	if eventType == "" {
		return events.Event{}, false
	}

	return events.Event{
		Type:      eventType,
		Payload:   raw,
		Timestamp: notificationTimestamp(raw),
	}, true
}

// notificationTimestamp extracts the event time, falling back to now.
func notificationTimestamp(raw map[string]any) int64 {
	value, _ := raw["timestamp"].(string)
	for _, layout := range []string{"2006-01-02 15:04:05.000000", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix()
		}
	}
	return time.Now().Unix()
}
