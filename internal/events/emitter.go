package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jinkaiteo/edms/internal/metrics"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmitterClosed is returned by Close when called twice.
	ErrEmitterClosed = errors.New("emitter closed")
	// ErrDeliveryPending means the sink accepted the record but did not confirm
	// it in time. The emitter does not retry it.
	ErrDeliveryPending = errors.New("delivery pending")
)

// Sink receives committed transition records.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, record *model.TransitionRecord) error
	Close() error
}

type Options struct {
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	DeliveryTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		QueueSize:       1024,
		MaxRetries:      5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Emitter fans records out to sinks from a single background goroutine.
// Emit never blocks the caller and delivery failures never reach it.
type Emitter struct {
	opts  Options
	sinks []Sink
	queue chan *model.TransitionRecord

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEmitter(opts Options, sinks ...Sink) *Emitter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultOptions().InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultOptions().MaxInterval
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = DefaultOptions().DeliveryTimeout
	}

	e := &Emitter{
		opts:  opts,
		sinks: sinks,
		queue: make(chan *model.TransitionRecord, opts.QueueSize),
		done:  make(chan struct{}),
	}
	go e.run()

	return e
}

// Emit queues records for delivery. Records are dropped, and logged, when the
// queue is full or the emitter is closed.
func (e *Emitter) Emit(records ...*model.TransitionRecord) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, record := range records {
		if record == nil {
			continue
		}
		if e.closed {
			logrus.WithField("record", record.ID).Warn("emitter closed, dropping transition record")
			metrics.EventsDelivered.WithLabelValues("queue", "dropped").Inc()
			continue
		}

		select {
		case e.queue <- record:
			metrics.EventQueueDepth.Inc()
		default:
			logrus.WithFields(logrus.Fields{
				"record":   record.ID,
				"document": record.DocumentID,
				"action":   record.Action,
			}).Error("event queue full, dropping transition record")
			metrics.EventsDelivered.WithLabelValues("queue", "dropped").Inc()
		}
	}
}

// Close stops accepting records, delivers what is queued and closes the sinks.
func (e *Emitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEmitterClosed
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.done

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e *Emitter) run() {
	defer close(e.done)

	for record := range e.queue {
		metrics.EventQueueDepth.Dec()
		for _, sink := range e.sinks {
			e.deliver(sink, record)
		}
	}
}

func (e *Emitter) deliver(sink Sink, record *model.TransitionRecord) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.InitialInterval
	bo.MaxInterval = e.opts.MaxInterval
	bo.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.DeliveryTimeout)
		defer cancel()
		err := sink.Deliver(ctx, record)
		if errors.Is(err, ErrDeliveryPending) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(bo, e.opts.MaxRetries))

	if errors.Is(err, ErrDeliveryPending) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sink":     sink.Name(),
			"record":   record.ID,
			"document": record.DocumentID,
		}).Warn("transition record delivery unconfirmed")
		metrics.EventsDelivered.WithLabelValues(sink.Name(), "pending").Inc()
		return
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sink":     sink.Name(),
			"record":   record.ID,
			"document": record.DocumentID,
			"action":   record.Action,
			"attempts": attempt,
		}).Error("transition record delivery failed")
		metrics.EventsDelivered.WithLabelValues(sink.Name(), "failed").Inc()
		return
	}

	metrics.EventsDelivered.WithLabelValues(sink.Name(), "delivered").Inc()
}
