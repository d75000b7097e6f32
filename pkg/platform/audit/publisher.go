// Package audit records key domain actions for later review. Events flow
// through a Publisher to a Sink; the kafka sink carries them off-process,
// the memory sink backs tests and single-node deployments.
package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives published events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Publisher emits audit events synchronously or, when configured with a
// buffer, on a background goroutine. Audit failures never fail the calling
// operation; they are logged and dropped.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	mu     sync.RWMutex
	ch     chan Event
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking, queueing up to n events for a
// background writer. When the buffer is full the event is dropped.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.ch = make(chan Event, n)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ch != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit publishes one event. Category is derived from the action when unset.
// Emit never returns an error for sink failures; those are logged.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Category == "" {
		event.Category = CategoryFor(AuditEvent(event.Action))
	}
	if p.ch == nil {
		if err := p.sink.Write(ctx, event); err != nil {
			p.logger.Warn("audit write failed", "action", event.Action, "error", err)
		}
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	select {
	case p.ch <- event:
	default:
		p.logger.Warn("audit buffer full, event dropped", "action", event.Action)
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.ch {
		if err := p.sink.Write(context.Background(), event); err != nil {
			p.logger.Warn("audit write failed", "action", event.Action, "error", err)
		}
	}
}

// Close stops accepting events and drains any queued ones.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.ch != nil {
		close(p.ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
