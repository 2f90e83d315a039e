// Package service provides lifecycle.Notifier implementations that hand
// notifications to the RabbitMQ queue, or straight to the inbox when no
// broker is configured.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/queue"
)

// DefaultPublishBuffer is how many notifications may wait for the broker
// before Notify starts dropping them.
const DefaultPublishBuffer = 256

const publishTimeout = 5 * time.Second

// ErrPublisherBusy is returned by QueuePublisher.Notify when the buffer is
// full, usually because the broker has been unreachable for a while.
var ErrPublisherBusy = errors.New("notification publish buffer full")

// QueuePublisher publishes notifications to NotificationQueueName.  Notify
// only buffers; Run owns the broker connection and drains the buffer, so a
// slow or missing broker never holds up the request that caused the
// notification.
type QueuePublisher struct {
	url     string
	log     *slog.Logger
	pending chan model.Notification
}

var _ lifecycle.Notifier = (*QueuePublisher)(nil)

// NewQueuePublisher returns a publisher for url holding at most buffer
// unsent notifications.
func NewQueuePublisher(url string, buffer int, log *slog.Logger) *QueuePublisher {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}
	return &QueuePublisher{url: url, log: log, pending: make(chan model.Notification, buffer)}
}

// Notify queues n for publishing and returns immediately.
func (p *QueuePublisher) Notify(_ context.Context, n model.Notification) error {
	select {
	case p.pending <- n:
		return nil
	default:
		p.log.Warn("notification dropped", "kind", n.Kind, "recipient_id", n.RecipientID, "error", ErrPublisherBusy)
		return ErrPublisherBusy
	}
}

// Run connects to RabbitMQ and publishes buffered notifications until ctx
// is cancelled, redialling with exponential backoff.
func (p *QueuePublisher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := queue.Dial(p.url)
		if err != nil {
			p.log.Warn("notification publisher dial failed", "error", err, "retry_in", backoff)
			if !wait(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = p.publishLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		p.log.Warn("notification publisher loop ended, reconnecting", "error", err)
		if !wait(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (p *QueuePublisher) publishLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.NotificationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	p.log.Info("notification publisher started", "queue", queue.NotificationQueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cerr := <-closed:
			return fmt.Errorf("connection closed: %v", cerr)
		case n := <-p.pending:
			body, err := queue.Encode(n)
			if err != nil {
				p.log.Error("notification encode failed", "kind", n.Kind, "error", err)
				continue
			}
			if err := p.publish(ctx, ch, body); err != nil {
				p.retryLater(n)
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}

func (p *QueuePublisher) publish(ctx context.Context, ch *amqp.Channel, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(ctx, "", queue.NotificationQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// retryLater puts n back for the next connection, dropping it if the
// buffer has filled up meanwhile.
func (p *QueuePublisher) retryLater(n model.Notification) {
	select {
	case p.pending <- n:
	default:
		p.log.Warn("notification dropped", "kind", n.Kind, "recipient_id", n.RecipientID, "error", ErrPublisherBusy)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DirectNotifier writes notifications straight to the inbox.  It is used
// when RABBITMQ_URL is empty.
type DirectNotifier struct {
	Sink queue.Sink
}

var _ lifecycle.Notifier = (*DirectNotifier)(nil)

// Notify stores n.
func (d *DirectNotifier) Notify(ctx context.Context, n model.Notification) error {
	return d.Sink.Insert(ctx, &n)
}

// NewNotifier picks the queue publisher when url is set and the direct
// inbox writer otherwise.  A *QueuePublisher must also be started with Run.
func NewNotifier(url string, sink queue.Sink, log *slog.Logger) lifecycle.Notifier {
	if url == "" {
		return &DirectNotifier{Sink: sink}
	}
	return NewQueuePublisher(url, DefaultPublishBuffer, log)
}
