// Package dispatch fans published events out to subscribed workers.
//
// Publish records the event in its session log, emits an observability
// record and queues one delivery per subscriber. Deliveries run on a bounded
// pool of goroutines; Publish never waits for handlers and never blocks on a
// full queue. Handler errors and panics stay inside the dispatcher: they are
// logged with the worker id and passed to an optional error sink.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/logging"
	"github.com/hupe1980/salesswarm/registry"
)

const instrumentationName = "github.com/hupe1980/salesswarm/dispatch"

// Config tunes the delivery pool.
type Config struct {
	// Workers is the number of goroutines draining the delivery queue.
	Workers int

	// QueueSize is the capacity of the delivery queue. Deliveries that do not
	// fit run on their own goroutine instead of blocking the publisher.
	QueueSize int
}

// DefaultConfig suits a single process running a handful of workers.
var DefaultConfig = Config{
	Workers:   8,
	QueueSize: 256,
}

// Subscriptions resolves the handlers that should receive an event.
// *registry.Registry implements it.
type Subscriptions interface {
	Deliveries(kind core.EventKind, exclude string) []registry.Delivery
}

// Options configures a Dispatcher.
type Options struct {
	Config Config

	// Ledger receives a summary of every event whose session it knows.
	// Nil disables session logging.
	Ledger core.SessionLedger

	// ErrorSink is called once per failed or panicking delivery, from the
	// delivering goroutine.
	ErrorSink func(*DeliveryError)

	// Logger defaults to a no-op logger. A *logging.SwarmLogger additionally
	// gets its event and delivery helpers called.
	Logger logging.Logger

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type eventLogger interface {
	LogEvent(kind, sessionID, source string, subscribers int)
	LogDelivery(workerID, kind string, dur time.Duration, err error)
}

type job struct {
	ctx      context.Context
	event    core.Event
	delivery registry.Delivery
}

// Dispatcher is safe for concurrent use, including publishes made from
// inside handlers.
type Dispatcher struct {
	subs   Subscriptions
	ledger core.SessionLedger
	sink   func(*DeliveryError)
	logger logging.Logger
	tracer trace.Tracer

	published metric.Int64Counter
	delivered metric.Int64Counter
	overflows metric.Int64Counter
	duration  metric.Float64Histogram

	jobs     chan job
	pool     conc.WaitGroup
	overflow conc.WaitGroup

	mu     sync.RWMutex
	closed bool

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{} // closed while pending == 0
}

// New starts a dispatcher over subs. Call Close to stop its goroutines.
func New(subs Subscriptions, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Config.Workers <= 0 {
		opts.Config.Workers = DefaultConfig.Workers
	}
	if opts.Config.QueueSize < 0 {
		opts.Config.QueueSize = 0
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}

	d := &Dispatcher{
		subs:   subs,
		ledger: opts.Ledger,
		sink:   opts.ErrorSink,
		logger: opts.Logger,
		tracer: opts.TracerProvider.Tracer(instrumentationName),
		jobs:   make(chan job, opts.Config.QueueSize),
		idle:   make(chan struct{}),
	}
	close(d.idle)
	d.initInstruments(opts.MeterProvider.Meter(instrumentationName))

	for i := 0; i < opts.Config.Workers; i++ {
		d.pool.Go(func() { d.work(i) })
	}

	return d
}

func (d *Dispatcher) initInstruments(meter metric.Meter) {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	var err error

	if d.published, err = meter.Int64Counter("salesswarm.events.published",
		metric.WithDescription("Events accepted by Publish")); err != nil {
		d.logger.Warn("metric instrument unavailable", "name", "salesswarm.events.published", "error", err.Error())
		d.published, _ = fallback.Int64Counter("salesswarm.events.published")
	}
	if d.delivered, err = meter.Int64Counter("salesswarm.deliveries",
		metric.WithDescription("Handler invocations by outcome")); err != nil {
		d.logger.Warn("metric instrument unavailable", "name", "salesswarm.deliveries", "error", err.Error())
		d.delivered, _ = fallback.Int64Counter("salesswarm.deliveries")
	}
	if d.overflows, err = meter.Int64Counter("salesswarm.deliveries.overflow",
		metric.WithDescription("Deliveries that bypassed the full queue")); err != nil {
		d.logger.Warn("metric instrument unavailable", "name", "salesswarm.deliveries.overflow", "error", err.Error())
		d.overflows, _ = fallback.Int64Counter("salesswarm.deliveries.overflow")
	}
	if d.duration, err = meter.Float64Histogram("salesswarm.delivery.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Handler execution time")); err != nil {
		d.logger.Warn("metric instrument unavailable", "name", "salesswarm.delivery.duration", "error", err.Error())
		d.duration, _ = fallback.Float64Histogram("salesswarm.delivery.duration")
	}
}

// Publish records ev in its session log and schedules a delivery to every
// subscriber of ev.Kind except ev.Source. It returns as soon as the
// deliveries are scheduled.
//
// Handlers run with a context that carries ctx's values but not its
// cancellation, so a publisher finishing early does not abort them.
func (d *Dispatcher) Publish(ctx context.Context, ev core.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	if ev.SessionID != "" && d.ledger != nil {
		d.ledger.AppendEvent(ctx, ev.SessionID, core.Summarize(ev))
	}

	deliveries := d.subs.Deliveries(ev.Kind, ev.Source)

	kindAttr := attribute.String("salesswarm.event.kind", string(ev.Kind))
	spanCtx, span := d.tracer.Start(ctx, "publish "+string(ev.Kind),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			kindAttr,
			attribute.String("salesswarm.event.id", ev.ID),
			attribute.String("salesswarm.session.id", ev.SessionID),
			attribute.String("salesswarm.event.source", ev.Source),
			attribute.Int("salesswarm.subscribers", len(deliveries)),
		),
	)
	defer span.End()

	d.published.Add(ctx, 1, metric.WithAttributes(kindAttr))
	if el, ok := d.logger.(eventLogger); ok {
		el.LogEvent(string(ev.Kind), ev.SessionID, ev.Source, len(deliveries))
	} else {
		d.logger.Info("event published",
			"event_kind", string(ev.Kind),
			"session_id", ev.SessionID,
			"source", ev.Source,
			"subscribers", len(deliveries),
		)
	}

	handlerCtx := context.WithoutCancel(spanCtx)
	for _, del := range deliveries {
		j := job{ctx: handlerCtx, event: ev, delivery: del}
		d.track(1)
		select {
		case d.jobs <- j:
		default:
			d.overflows.Add(ctx, 1, metric.WithAttributes(kindAttr))
			d.logger.Warn("delivery queue full, running delivery on its own goroutine",
				"event_kind", string(ev.Kind),
				"worker_id", del.WorkerID,
			)
			d.overflow.Go(func() { d.deliver(j, -1) })
		}
	}
	return nil
}

// Drain blocks until no delivery is queued or running, including
// deliveries scheduled by handlers along the way, or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.pendingMu.Lock()
	idle := d.idle
	d.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) track(delta int) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if d.pending == 0 && delta > 0 {
		d.idle = make(chan struct{})
	}
	d.pending += delta
	if d.pending == 0 {
		close(d.idle)
	}
}

// Close stops accepting events and waits for queued and in-flight
// deliveries, or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pool.Wait()
		d.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: close: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(slot int) {
	for j := range d.jobs {
		d.deliver(j, slot)
	}
}

// deliver runs one handler. slot is the pool goroutine index, -1 for
// overflow deliveries.
func (d *Dispatcher) deliver(j job, slot int) {
	defer d.track(-1)

	workerID := j.delivery.WorkerID
	ctx, span := d.tracer.Start(j.ctx, "deliver "+string(j.event.Kind),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("salesswarm.event.kind", string(j.event.Kind)),
			attribute.String("salesswarm.worker.id", workerID),
		),
	)
	defer span.End()

	start := time.Now()
	var (
		pc     panics.Catcher
		runErr error
	)
	pc.Try(func() { runErr = j.delivery.Handler(ctx, workerID, j.event) })
	dur := time.Since(start)

	var derr *DeliveryError
	if r := pc.Recovered(); r != nil {
		derr = &DeliveryError{WorkerID: workerID, Event: j.event, Err: r.AsError(), Panicked: true}
		d.logger.Error("handler panicked",
			"worker_id", workerID,
			"event_kind", string(j.event.Kind),
			"dispatch_slot", slot,
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
	} else if runErr != nil {
		derr = &DeliveryError{WorkerID: workerID, Event: j.event, Err: runErr}
	}

	outcome := "ok"
	switch {
	case derr == nil:
	case derr.Panicked:
		outcome = "panic"
	default:
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("salesswarm.event.kind", string(j.event.Kind)),
		attribute.String("salesswarm.outcome", outcome),
	)
	d.delivered.Add(ctx, 1, attrs)
	d.duration.Record(ctx, dur.Seconds(), attrs)

	var logErr error
	if derr != nil {
		logErr = derr
	}
	if el, ok := d.logger.(eventLogger); ok {
		el.LogDelivery(workerID, string(j.event.Kind), dur, logErr)
	} else if logErr != nil {
		d.logger.Error("event delivery failed",
			"worker_id", workerID,
			"event_kind", string(j.event.Kind),
			"dispatch_slot", slot,
			"error", logErr.Error(),
		)
	}

	if derr == nil {
		return
	}
	span.RecordError(derr)
	span.SetStatus(codes.Error, derr.Error())
	d.report(derr)
}

func (d *Dispatcher) report(derr *DeliveryError) {
	if d.sink == nil {
		return
	}
	var pc panics.Catcher
	pc.Try(func() { d.sink(derr) })
	if r := pc.Recovered(); r != nil {
		d.logger.Error("error sink panicked", "worker_id", derr.WorkerID, "panic", fmt.Sprint(r.Value))
	}
}
