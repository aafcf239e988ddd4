package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures the async audit recorder.
type RecorderConfig struct {
	// Buffer is the size of the async write channel.
	// Default: 1000.
	Buffer int

	// WriteTimeout bounds each store write.
	// Default: 5 seconds.
	WriteTimeout time.Duration

	// Now is the clock. Default: time.Now.
	Now func() time.Time

	// Metrics receives write/drop counts. Optional.
	Metrics *Metrics
}

func (c *RecorderConfig) applyDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = 1000
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Recorder writes audit events to a store asynchronously.
// Construct with NewRecorder; call Close to drain pending events.
type Recorder struct {
	store   Store
	config  RecorderConfig
	events  chan *Event
	dropped int64
	mu      sync.Mutex
	wg      sync.WaitGroup
	done    chan struct{}
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewRecorder creates an audit recorder over the given store and
// starts its background writer.
func NewRecorder(store Store, cfg RecorderConfig) *Recorder {
	cfg.applyDefaults()

	r := &Recorder{
		store:  store,
		config: cfg,
		events: make(chan *Event, cfg.Buffer),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "audit"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record stamps the event with an ID and timestamp and enqueues it.
// Record never blocks: when the buffer is full the event is dropped
// and counted.
func (r *Recorder) Record(event Event) {
	event.ID = uuid.New().String()
	if event.Timestamp.IsZero() {
		event.Timestamp = r.config.Now()
	}

	select {
	case r.events <- &event:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.config.Metrics.RecordDrop()
		r.logger.Warn("audit buffer full, event dropped",
			"kind", event.Kind,
			"identifier", event.Identifier,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains the buffer and stops the writer. The store is not
// closed; the caller owns it.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Drain whatever is still buffered before exit.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, event); err != nil {
		r.config.Metrics.RecordWriteFailure()
		r.logger.Error("failed to store audit event",
			"event_id", event.ID,
			"kind", event.Kind,
			"error", err,
		)
		return
	}
	r.config.Metrics.RecordWrite(event.Kind)
}
