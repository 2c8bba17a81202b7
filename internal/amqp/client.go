package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed means the broker closed the deliveries channel, which
// is how a dropped connection surfaces to a consumer.
var ErrDeliveriesClosed = errors.New("message channel closed")

// ReminderRoutingKey is where reminder messages are published. The shell
// binds its own queue to it; the sync worker never sees them.
const ReminderRoutingKey = "reminders"

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey, msgType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         msgType,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishEntrySync publishes a sync message for a newly added entry
func (c *Client) PublishEntrySync(ctx context.Context, id int64) error {
	body, err := NewEntrySyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.queueName, TypeEntrySync, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published entry sync message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishEntryDelete publishes a delete message for a removed entry
func (c *Client) PublishEntryDelete(ctx context.Context, id int64, amountML int, date string) error {
	body, err := NewEntryDeleteMessage(id, amountML, date).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.queueName, TypeEntryDelete, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published entry delete message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishReminder publishes a hydration reminder for the shell
func (c *Client) PublishReminder(ctx context.Context, msg *ReminderMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, ReminderRoutingKey, TypeReminder, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published reminder",
		"goal_ml", msg.GoalML,
		"total_ml", msg.TotalML,
		"exchange", c.exchangeName)
	return nil
}

// ConsumeMessages consumes entry sync and delete messages until the context
// is cancelled. Handler failures nack with requeue; undecodable messages are
// rejected without requeue.
func (c *Client) ConsumeMessages(
	ctx context.Context,
	syncHandler func(context.Context, *EntrySyncMessage) error,
	deleteHandler func(context.Context, *EntryDeleteMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.dispatch(ctx, delivery, syncHandler, deleteHandler)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	syncHandler func(context.Context, *EntrySyncMessage) error,
	deleteHandler func(context.Context, *EntryDeleteMessage) error,
) {
	switch delivery.Type {
	case TypeEntrySync:
		msg, err := EntrySyncMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal sync message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := syncHandler(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message", "error", err, "id", msg.ID)
			delivery.Nack(false, true)
			return
		}
		delivery.Ack(false)

	case TypeEntryDelete:
		msg, err := EntryDeleteMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal delete message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := deleteHandler(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle delete message", "error", err, "id", msg.ID)
			delivery.Nack(false, true)
			return
		}
		delivery.Ack(false)

	default:
		slog.WarnContext(ctx, "Unknown message type", "type", delivery.Type)
		delivery.Nack(false, false)
	}
}

// ConsumeWithReconnect runs ConsumeMessages and re-dials on connection
// failures so a broker restart does not kill the worker. Non-connection
// errors are returned to the caller.
func (c *Client) ConsumeWithReconnect(
	ctx context.Context,
	url string,
	syncHandler func(context.Context, *EntrySyncMessage) error,
	deleteHandler func(context.Context, *EntryDeleteMessage) error,
) error {
	for {
		err := c.ConsumeMessages(ctx, syncHandler, deleteHandler)
		if err == nil || ctx.Err() != nil {
			return err
		}
		if !isConnectionError(err) {
			return err
		}

		slog.WarnContext(ctx, "Consumer lost connection, reconnecting", "error", err)
		if err := c.Reconnect(ctx, url); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}
}

// isConnectionError reports whether an error looks like a broken AMQP
// connection, as opposed to a handler failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeliveriesClosed) {
		return true
	}
	s := err.Error()
	for _, marker := range []string{"connection refused", "connection closed", "EOF", "broken pipe"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// exponentialBackoff returns the reconnect delay for the given attempt,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Reconnect re-dials after a connection failure with exponential backoff,
// giving up when the context is cancelled.
func (c *Client) Reconnect(ctx context.Context, url string) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		conn, err := amqp091.Dial(url)
		if err != nil {
			slog.WarnContext(ctx, "Reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			slog.WarnContext(ctx, "Reconnect channel failed", "attempt", attempt, "error", err)
			continue
		}

		c.conn = conn
		c.channel = channel
		if err := c.setup(); err != nil {
			c.Close()
			return fmt.Errorf("setup after reconnect: %w", err)
		}

		slog.InfoContext(ctx, "Reconnected to AMQP", "attempt", attempt)
		return nil
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
