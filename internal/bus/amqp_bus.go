package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

type amqpBus struct {
	log      *logger.Logger
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	queue    string
}

// NewAMQPBus declares a durable topic exchange and publishes persistent JSON messages keyed by topic.
func NewAMQPBus(log *logger.Logger, cfg AMQPConfig) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("missing AMQP_URL")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "frontline.events"
	}
	if cfg.Queue == "" {
		cfg.Queue = "q.frontline.source_discovered"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	b := &amqpBus{
		log:      log.With("service", "AMQPBus", "exchange", cfg.Exchange),
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
	}
	b.log.Info("amqp bus initialized")
	return b, nil
}

func (b *amqpBus) Publish(ctx context.Context, msg SourceDiscovered) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b.mu.Lock()
	err = b.channel.PublishWithContext(
		ctx,
		b.exchange,            // exchange
		TopicSourceDiscovered, // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    fmt.Sprintf("%s:%s:%d", msg.Platform, msg.Handle, time.Now().UnixNano()),
		},
	)
	b.mu.Unlock()
	if err != nil {
		observability.Current().IncBusPublished(TopicSourceDiscovered, "error")
		return fmt.Errorf("failed to publish message: %w", err)
	}
	observability.Current().IncBusPublished(TopicSourceDiscovered, "ok")
	b.log.Debug("message published", "routing_key", TopicSourceDiscovered, "body_size", len(body))
	return nil
}

// StartForwarder consumes on a durable queue with manual acks; a handler panic or bad payload
// is nacked without requeue.
func (b *amqpBus) StartForwarder(ctx context.Context, onMsg func(m SourceDiscovered)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, TopicSourceDiscovered, b.exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				b.deliver(d, onMsg)
			}
		}
	}()
	return nil
}

func (b *amqpBus) deliver(d amqp.Delivery, onMsg func(m SourceDiscovered)) {
	var msg SourceDiscovered
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		b.log.Warn("bad amqp bus payload", "error", err)
		_ = d.Nack(false, false)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panic", "panic", r)
			_ = d.Nack(false, false)
		}
	}()
	onMsg(msg)
	_ = d.Ack(false)
}

func (b *amqpBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.log.Warn("failed to close amqp channel", "error", err)
		}
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
