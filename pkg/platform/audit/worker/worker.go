// Package worker drains the audit outbox to Kafka. Events land in the outbox
// inside the transaction that produced them; this worker publishes them in
// insertion order and stamps published_at, so a crash between publish and
// stamp re-delivers rather than loses.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vaultcore/internal/platform/logger"
	audit "vaultcore/pkg/platform/audit"
)

// Source is the outbox side of the drain loop, implemented by the Postgres
// audit store.
type Source interface {
	ListUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes one record to a topic. Implemented by the Kafka
// producer; tests supply a recorder.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Worker struct {
	source    Source
	producer  Producer
	baseTopic string
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

type Option func(*Worker)

// WithInterval sets the poll interval. Default is one second.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

// WithBatchSize caps how many entries one drain pass publishes. Default 100.
func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batchSize = n }
}

func WithLogger(log *logger.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// NewWorker builds an outbox drainer. Events route to a per-category topic
// under baseTopic, e.g. "vault.audit" publishes to "vault.audit.compliance".
func NewWorker(source Source, producer Producer, baseTopic string, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		producer:  producer,
		baseTopic: baseTopic,
		interval:  time.Second,
		batchSize: 100,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox until ctx is cancelled. Publish failures are logged
// and retried on the next tick; the failed entry stays unpublished.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Drain(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("outbox drain failed")
				continue
			}
			if n > 0 {
				w.log.Debug().Int("published", n).Msg("outbox drained")
			}
		}
	}
}

// Drain publishes one batch of unpublished entries and returns how many went
// out. Entries publish in insertion order; the first failure stops the batch
// so ordering per aggregate is preserved.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	entries, err := w.source.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		topic := w.topicFor(entry.EventType)
		if err := w.producer.Publish(ctx, topic, []byte(entry.AggregateID), entry.Payload); err != nil {
			// Stamp what did go out so it is not re-published.
			if markErr := w.source.MarkPublished(ctx, published); markErr != nil {
				w.log.Error().Err(markErr).Msg("mark published failed after partial drain")
			}
			return len(published), err
		}
		published = append(published, entry.ID)
	}

	if err := w.source.MarkPublished(ctx, published); err != nil {
		return len(published), err
	}
	return len(published), nil
}

func (w *Worker) topicFor(eventType string) string {
	return w.baseTopic + "." + string(audit.AuditEvent(eventType).Category())
}

// Topics returns every topic this worker can publish to, for startup
// provisioning.
func (w *Worker) Topics() []string {
	return []string{
		w.baseTopic + "." + string(audit.CategoryCompliance),
		w.baseTopic + "." + string(audit.CategorySecurity),
		w.baseTopic + "." + string(audit.CategoryOperations),
	}
}
