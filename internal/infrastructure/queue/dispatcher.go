package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/api/metrics"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

var (
	// ErrQueueFull is returned by Dispatch when the owning worker's buffer is full.
	ErrQueueFull = errors.New("order event queue is full")
	// ErrStopped is returned by Dispatch once Stop has been called.
	ErrStopped = errors.New("order event dispatcher stopped")
)

type job struct {
	ctx   context.Context
	event domain.OrderEvent
	done  chan error
}

// Dispatcher routes commerce events to a fixed set of workers using
// consistent hashing on the order id, so events for one order are applied in
// arrival order.
type Dispatcher struct {
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	workers   []chan job
	processor ports.OrderEventProcessor
	log       zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, processor ports.OrderEventProcessor, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan job, numWorkers),
		processor: processor,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Stop refuses new events, lets the workers finish everything already
// buffered and waits for them. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch hands an event to the worker responsible for its order and waits
// for the outcome. Returning means the event was applied or it was not; the
// caller answers the sender accordingly.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.OrderEvent) error {
	done := make(chan error, 1)
	if err := d.submit(job{ctx: ctx, event: event, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit never blocks; a full buffer returns ErrQueueFull.
func (d *Dispatcher) submit(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	idx := d.shardIndex(j.event.OrderID())
	select {
	case d.workers[idx] <- j:
		metrics.OrderEventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		return ErrQueueFull
	}
}

// shardIndex maps an order id deterministically to a worker index.
func (d *Dispatcher) shardIndex(orderID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan job) {
	defer d.wg.Done()
	depth := metrics.OrderEventsQueueDepth.WithLabelValues(strconv.Itoa(id))
	for j := range ch {
		depth.Set(float64(len(ch)))
		j.done <- d.handle(id, j)
	}
}

func (d *Dispatcher) handle(workerID int, j job) error {
	// The sender is no longer waiting; it will redeliver.
	if err := j.ctx.Err(); err != nil {
		return err
	}

	eventType := string(j.event.Type)
	start := time.Now()
	err := d.processor.Process(j.ctx, j.event)
	metrics.OrderEventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.OrderEventsProcessedTotal.WithLabelValues(eventType).Inc()
		return nil
	}

	metrics.OrderEventsErrorsTotal.WithLabelValues(eventType).Inc()
	d.log.Error().Err(err).
		Str("event_id", j.event.ID).
		Str("event_type", eventType).
		Str("order_id", j.event.OrderID()).
		Int("worker_id", workerID).
		Msg("order event processing failed")
	return err
}
