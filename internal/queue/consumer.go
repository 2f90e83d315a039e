package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// Sink stores a delivered notification.  *repository.NotificationRepo
// satisfies it.
type Sink interface {
	Insert(ctx context.Context, n *model.Notification) error
}

// DialTimeout bounds the TCP connect to the broker.  amqp's own default is
// 30 seconds.
const DialTimeout = 2 * time.Second

// Dial connects to the broker at url, giving up after DialTimeout.
func Dial(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DialTimeout),
	})
}

// Consumer drains the notification queue into the inbox table and mirrors
// each delivery to <LogDir>/notifications.log.
type Consumer struct {
	URL    string
	Sink   Sink
	LogDir string
	Log    *slog.Logger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, redialling
// with exponential backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	backoff := time.Second
	for {
		conn, err := Dial(c.URL)
		if err != nil {
			c.Log.Warn("notification consumer dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.Warn("notification consumer loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("notification consumer set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(NotificationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("notification consumer started", "queue", NotificationQueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.Log.Error("notification handling failed", "error", err)
				// reject without requeue to avoid tight redelivery loops
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body, stores it and appends the log line.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	ev, n, err := Decode(body)
	if err != nil {
		return err
	}
	if c.Sink != nil {
		if err := c.Sink.Insert(ctx, &n); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
	}
	return c.appendLog(ev)
}

func (c *Consumer) appendLog(ev NotificationEvent) error {
	dir := c.LogDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | event_id=%s | recipient_id=%d | actor_id=%d | application_id=%d | script_id=%d | listing_id=%d\n",
		ev.OccurredAt, ev.Kind, ev.EventID, ev.RecipientID, ev.ActorID, ev.ApplicationID, ev.ScriptID, ev.ListingID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
