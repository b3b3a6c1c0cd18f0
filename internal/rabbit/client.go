package rabbit

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

// Publisher sends a message, optionally held back by the broker for delaySeconds.
type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

type Consumer interface {
	Consume(handler func([]byte) error) error
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
}

// NewRabbit connects and declares a delayed-message exchange bound to queue.
// The broker needs the rabbitmq_delayed_message_exchange plugin.
func NewRabbit(url, exchange, queue string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		queue:    queue,
	}

	args := amqp.Table{"x-delayed-type": "direct"}
	if err := ch.ExchangeDeclare(exchange, "x-delayed-message", true, false, false, false, args); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	zlog.Logger.Info().Str("exchange", exchange).Str("queue", queue).Msg("RabbitMQ initialized")
	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

func (c *Client) Publish(message []byte, delaySeconds int) error {
	headers := amqp.Table{}
	if delaySeconds > 0 {
		headers["x-delay"] = int64(delaySeconds) * 1000
	}

	err := c.channel.Publish(c.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         message,
		Timestamp:    time.Now(),
		Headers:      headers,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to publish message to RabbitMQ")
		return fmt.Errorf("publish: %w", err)
	}
	zlog.Logger.Debug().Str("exchange", c.exchange).Int("delay_s", delaySeconds).Msg("message published")
	return nil
}

// Consume acks messages the handler accepts and requeues the rest.
func (c *Client) Consume(handler func([]byte) error) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming messages")
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				zlog.Logger.Warn().Err(err).Msg("failed to process message")
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	zlog.Logger.Info().Str("queue", c.queue).Msg("started consuming")
	return nil
}

// Discard is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(message []byte, delaySeconds int) error {
	zlog.Logger.Debug().Int("bytes", len(message)).Int("delay_s", delaySeconds).Msg("broker disabled, notification dropped")
	return nil
}
