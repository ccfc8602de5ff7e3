// Package sink hands encoded receipts to the printer transport. Every
// sink is fire-and-forget: a nil error means the transport accepted the
// job, never that paper came out.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/receipt-printer/internal/queue"
)

// Kinds accepted by SINK_KIND.
const (
	KindMQTT  = "mqtt"
	KindAMQP  = "amqp"
	KindRedis = "redis"
)

// ErrUnavailable is returned when the transport cannot take a job.
var ErrUnavailable = errors.New("sink: unavailable")

// Sink publishes print jobs.
type Sink interface {
	Publish(ctx context.Context, job queue.PrintJob) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func marshal(job queue.PrintJob) ([]byte, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("sink: marshal job: %w", err)
	}
	return body, nil
}

// Memory records jobs in order. Fail, when set, is returned from Publish
// instead of recording.
type Memory struct {
	mu   sync.Mutex
	jobs []queue.PrintJob
	Fail error
}

func (m *Memory) Publish(_ context.Context, job queue.PrintJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return unavailable("memory", m.Fail)
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// Jobs returns a copy of everything published so far.
func (m *Memory) Jobs() []queue.PrintJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.PrintJob(nil), m.jobs...)
}

func (m *Memory) Close() error { return nil }
