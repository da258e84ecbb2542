package goFleet

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves audit events off the request path. One goroutine
// feeds the sink in arrival order; Emit only enqueues.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	queue      chan AuditEvent
	stop       chan struct{}
	worker     sync.WaitGroup
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

// newAuditDispatcher returns nil when auditing is off. A nil dispatcher is
// valid and discards everything.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

// loop hands sinks context.Background(); the emitting request may already be
// finished.
func (d *auditDispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues event for the sink. With DropIfFull a full buffer drops the
// event and counts it; otherwise Emit blocks until there is room, ctx ends
// or the dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	select {
	case d.queue <- event:
	case <-done:
	case <-d.stop:
	}
}

// Close stops accepting events and drains the buffer into the sink. Safe to
// call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped is the number of events discarded because the buffer was full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
