package engine

import (
	"context"
	"log/slog"
	"sync"

	"dailyboard/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

const defaultQueueSize = 2048

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Handlers that panic are logged and do not affect other subscribers.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.EventType]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Event
	asyncWorkers int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *slog.Logger
	dropped      func()
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithBusLogger sets the logger used for handler failures.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(e *EventBus) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOnDrop registers a callback invoked when the async queue is full.
func WithOnDrop(fn func()) BusOption { return func(e *EventBus) { e.dropped = fn } }

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.EventType]map[int64]subscription),
		asyncQueue:   make(chan core.Event, defaultQueueSize),
		asyncWorkers: 1, // deliveries stay in publish order
		ctx:          ctx,
		cancel:       cancel,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(eb)
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case ev := <-e.asyncQueue:
					e.dispatchSync(context.Background(), ev)
				case <-e.ctx.Done():
					e.drain()
					return
				}
			}
		}()
	}
}

// drain delivers whatever is still queued when the bus closes.
func (e *EventBus) drain() {
	for {
		select {
		case ev := <-e.asyncQueue:
			e.dispatchSync(context.Background(), ev)
		default:
			return
		}
	}
}

// Close stops async workers after delivering queued events and waits for
// in-flight handlers.
func (e *EventBus) Close() {
	if n := len(e.asyncQueue); n > 0 {
		e.log.Info("delivering queued events before close", "queued", n)
	}
	e.cancel()
	e.wg.Wait()
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Forward subscribes b to typ, logging broadcast errors instead of returning them.
func (e *EventBus) Forward(typ core.EventType, b Broadcaster) func() {
	return e.Subscribe(typ, func(ctx context.Context, ev core.Event) {
		if err := b.Broadcast(ctx, ev); err != nil {
			e.log.Warn("broadcast failed", "event", ev.Type, "error", err)
		}
	})
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- ev:
		default:
			// Drop if queue full to preserve latency.
			if e.dropped != nil {
				e.dropped()
			}
			e.log.Warn("event dropped, queue full", "event", ev.Type)
		}
		return
	}
	e.dispatchSync(ctx, ev)
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		e.call(ctx, h, ev)
	}
}

func (e *EventBus) call(ctx context.Context, h func(context.Context, core.Event), ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handler panicked", "event", ev.Type, "panic", r)
		}
	}()
	h(ctx, ev)
}
