// Package publisher emits audit events to a store, synchronously or through
// a bounded async buffer. The store decides durability: in production it is
// the transactional outbox, in tests the in-memory store.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "vaultcore/pkg/domain"
	audit "vaultcore/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer has no room
// and the caller's context expires before space frees up.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store   audit.Store
	sampler *Sampler

	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking, queueing events through a buffer
// of the given size. A background goroutine drains the buffer; Close waits
// for it.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithSampler applies sampling to operations-category events. Compliance and
// security events are never sampled.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. A zero timestamp is stamped with the current
// time. In sync mode the event is appended before returning; in async mode it
// is queued, and a full buffer surfaces ErrBufferFull rather than blocking
// the caller indefinitely.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.sampler != nil && event.Category == audit.CategoryOperations && !p.sampler.ShouldSample(event.Action) {
		return nil
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for one scoped vault.
func (p *Publisher) List(ctx context.Context, scopedVaultID id.ScopedVaultID) ([]audit.Event, error) {
	return p.store.ListByScopedVault(ctx, scopedVaultID)
}

// Close stops the async drainer after flushing queued events. Safe to call
// in sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Queued events must not be lost to a caller's expired context.
		_ = p.store.Append(context.Background(), event)
	}
}
