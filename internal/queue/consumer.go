package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DefaultQueue is the durable queue print jobs are routed to.
const DefaultQueue = "print.tickets"

// Consumer drains a print queue and writes every job's PNG into Dir,
// standing in for a physical printer during development.
type Consumer struct {
	URL   string
	Queue string
	Dir   string
	Log   *logrus.Logger
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).Warnf("fakeprinter: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
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
			return ctx.Err()
		}
		c.Log.WithError(err).Warn("fakeprinter: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// printers handle one ticket at a time
	if err := ch.Qos(1, 0, false); err != nil {
		c.Log.WithError(err).Warn("fakeprinter: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			path, err := c.handleMessage(d.Body)
			if err != nil {
				c.Log.WithError(err).Error("fakeprinter: handle message failed")
				_ = d.Nack(false, false) // do not requeue a broken job
				continue
			}
			c.Log.WithField("file", path).Info("fakeprinter: printed")
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one job and writes its image, returning the path.
func (c *Consumer) handleMessage(body []byte) (string, error) {
	var job PrintJob
	if err := json.Unmarshal(body, &job); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if job.DataType != DataTypePNG {
		return "", fmt.Errorf("unsupported data_type %q", job.DataType)
	}
	name := job.TicketID
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("bad ticket_id %q", job.TicketID)
	}
	data, err := base64.StdEncoding.DecodeString(job.DataBase64)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	path := filepath.Join(c.Dir, name+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
