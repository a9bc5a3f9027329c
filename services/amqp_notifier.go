package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/streadway/amqp"
)

const publishBuffer = 256

type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes every event to a topic exchange, routed by event
// name (for example "match.finished"). Publish only queues the event; one
// goroutine owns the channel and drains the queue, so a slow broker never
// holds up the request that produced the event.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  amqpPublisher
	exchange string
	logger   *slog.Logger
	queue    chan Event
	drained  chan struct{}
	mu       sync.Mutex
	closed   bool
}

func NewAMQPNotifier(url, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	n := newAMQPNotifier(ch, exchange, publishBuffer, logger)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch amqpPublisher, exchange string, buffer int, logger *slog.Logger) *AMQPNotifier {
	n := &AMQPNotifier{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
		queue:    make(chan Event, buffer),
		drained:  make(chan struct{}),
	}
	go n.run()
	return n
}

// Publish queues the event without blocking. When the queue is full or the
// notifier is closed the event is dropped and logged.
func (n *AMQPNotifier) Publish(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.logger.WarnContext(ctx, "event dropped, notifier closed", slog.String("event", event.Name))
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.WarnContext(ctx, "event dropped, publish queue full",
			slog.String("event", event.Name),
			slog.String("tournament_id", event.TournamentID))
	}
}

func (n *AMQPNotifier) run() {
	defer close(n.drained)
	for event := range n.queue {
		n.send(event)
	}
}

func (n *AMQPNotifier) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to encode event", slog.String("event", event.Name), slog.Any("error", err))
		return
	}
	err = n.channel.Publish(n.exchange, event.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    models.NewID(),
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		n.logger.Error("failed to publish event",
			slog.String("event", event.Name),
			slog.String("exchange", n.exchange),
			slog.Any("error", err))
	}
}

// Close stops accepting events, publishes what is already queued and then
// closes the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.drained
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
