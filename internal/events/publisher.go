// Package events implements the best-effort job-event publisher
// supplementing ingest.Pipeline's stage transitions with an outbound
// Kafka feed (off by default). Grounded on the segmentio/kafka-go
// dependency surfaced in the example pack's manifests and on the
// teacher's storage.TracingStore background-goroutine shape (a
// ticker/stop/done channel triple), here repurposed from a periodic
// sweep into an async best-effort publish queue.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/linelot/linelot/internal/tracing"
)

const (
	// publishTimeout bounds each outbound write so a stalled broker never
	// blocks the ingestion pipeline's stage-transition goroutine.
	publishTimeout = 2 * time.Second
	// queueCapacity is the best-effort buffer between PublishJobEvent's
	// caller and the writer goroutine; a full queue drops the event.
	queueCapacity = 1000
)

// JobEvent is the wire shape published to Kafka for a job's stage
// transitions (spec's supplemented observability feature — not named in
// the core spec, added because the original system emits comparable
// lifecycle notifications).
type JobEvent struct {
	JobID      string `json:"job_id"`
	TenantID   string `json:"tenant_id"`
	TableCode  string `json:"table_code"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	ErrorCount int    `json:"error_count"`
	Timestamp  string `json:"timestamp"`
}

// Publisher publishes JobEvents to a Kafka topic, best-effort: a
// publish failure is logged and dropped, never surfaced to the caller,
// matching ingest.EventPublisher's "never awaited for correctness"
// contract.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
	queue  chan *tracing.ImportJob
	done   chan struct{}
}

// Config carries the Kafka broker/topic settings (spec §6 supplemented
// EVENTS_KAFKA_* env surface).
type Config struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether Kafka publishing is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// New constructs a Publisher and starts its background writer goroutine.
// Returns nil, false when cfg is not enabled -- callers should fall back
// to a no-op publisher (ingest.New already defaults events to one).
func New(cfg Config, logger *slog.Logger) (*Publisher, bool) {
	if !cfg.Enabled() {
		return nil, false
	}

	p := &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		logger: logger,
		queue:  make(chan *tracing.ImportJob, queueCapacity),
		done:   make(chan struct{}),
	}

	go p.run()

	return p, true
}

// PublishJobEvent implements ingest.EventPublisher. Non-blocking: a full
// queue drops the event rather than stalling the caller.
func (p *Publisher) PublishJobEvent(_ context.Context, job *tracing.ImportJob) {
	select {
	case p.queue <- job:
	default:
		p.logger.Warn("job event queue full, dropping event", slog.String("job_id", job.ID))
	}
}

// Close stops the writer goroutine and flushes the underlying Kafka
// writer. Safe to call once.
func (p *Publisher) Close() error {
	close(p.queue)
	<-p.done

	return p.writer.Close()
}

func (p *Publisher) run() {
	defer close(p.done)

	for job := range p.queue {
		p.writeOne(job)
	}
}

func (p *Publisher) writeOne(job *tracing.ImportJob) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	payload, err := json.Marshal(toJobEvent(job))
	if err != nil {
		p.logger.Warn("marshal job event failed", slog.String("job_id", job.ID), slog.Any("error", err))

		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.ID),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("publish job event failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}

func toJobEvent(job *tracing.ImportJob) JobEvent {
	return JobEvent{
		JobID:      job.ID,
		TenantID:   job.TenantID,
		TableCode:  string(job.TableCode),
		Status:     string(job.Status),
		Progress:   job.Progress,
		ErrorCount: job.ErrorCount,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}
