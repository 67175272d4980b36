package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"agendo/models"
	"agendo/utils"
)

// ErrQueueFull is returned when a sender's lane buffer is saturated.
// The webhook handler surfaces it as a 500 so the vendor redelivers.
var ErrQueueFull = errors.New("dispatch lane full")

// ErrShuttingDown is returned for enqueues after Shutdown started.
var ErrShuttingDown = errors.New("dispatcher shutting down")

type lane struct {
	ch chan models.InboundEvent
}

// Dispatcher fans inbound events out to per-sender lanes. Each lane is
// one bounded channel drained by one goroutine, which gives strict
// FIFO processing per (instance, sender) while different senders
// proceed in parallel. Lanes are reaped after sitting idle.
type Dispatcher struct {
	handler func(models.InboundEvent)
	bufSize int
	idleTTL time.Duration

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering events to handler.
func NewDispatcher(handler func(models.InboundEvent), bufSize int, idleTTL time.Duration) *Dispatcher {
	if bufSize <= 0 {
		bufSize = 16
	}
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	return &Dispatcher{
		handler: handler,
		bufSize: bufSize,
		idleTTL: idleTTL,
		lanes:   make(map[string]*lane),
	}
}

// Enqueue places the event on its sender's lane without blocking. A
// full lane is the caller's problem; dropping silently would lose
// customer messages.
func (d *Dispatcher) Enqueue(ev models.InboundEvent) error {
	key := ev.LaneKey()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}
	ln, ok := d.lanes[key]
	if !ok {
		ln = &lane{ch: make(chan models.InboundEvent, d.bufSize)}
		d.lanes[key] = ln
		d.wg.Add(1)
		go d.run(key, ln)
	}

	// The try-send happens under the lock so a lane cannot be reaped
	// between lookup and send.
	select {
	case ln.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run(key string, ln *lane) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleTTL)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-ln.ch:
			if !ok {
				return
			}
			d.handler(ev)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTTL)

		case <-idle.C:
			d.mu.Lock()
			if d.closed {
				// Keep draining; the closed channel ends the loop.
				d.mu.Unlock()
				continue
			}
			if len(ln.ch) > 0 {
				// An enqueue raced the timer; keep the lane alive.
				d.mu.Unlock()
				idle.Reset(d.idleTTL)
				continue
			}
			delete(d.lanes, key)
			d.mu.Unlock()
			utils.GetLogger().Debug("reaped idle dispatch lane", zap.String("lane", key))
			return
		}
	}
}

// Shutdown stops accepting events and waits for in-flight lanes to
// drain, up to the context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, ln := range d.lanes {
		close(ln.ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
