package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/internal/testutil"
	"github.com/hupe1980/salesswarm/registry"
	"github.com/hupe1980/salesswarm/store"
)

type sinkRecorder struct {
	mu   sync.Mutex
	errs []*DeliveryError
}

func (s *sinkRecorder) sink(e *DeliveryError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, e)
}

func (s *sinkRecorder) all() []*DeliveryError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*DeliveryError(nil), s.errs...)
}

func subscribe(t *testing.T, r *registry.Registry, id string, h core.Handler, kinds ...core.EventKind) {
	t.Helper()
	require.NoError(t, r.Register(core.WorkerCapability{WorkerID: id, Subscribes: kinds}))
	require.NoError(t, r.RegisterHandler(id, h))
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestPublish_FanOutIsolatesFailingSubscriber(t *testing.T) {
	reg := registry.New()
	rec := testutil.NewRecorder()
	sinks := &sinkRecorder{}
	boom := errors.New("smtp down")

	for i := 1; i <= 5; i++ {
		var err error
		if i == 3 {
			err = boom
		}
		subscribe(t, reg, fmt.Sprintf("w%d", i), rec.Handler(err), core.KindEmailGenerated)
	}

	d := New(reg, func(o *Options) { o.ErrorSink = sinks.sink })
	ev := testutil.NewEventBuilder().Source("manager").Payload(core.EmailGenerated{LeadID: "l1"}).Build()
	require.NoError(t, d.Publish(context.Background(), ev))
	closeDispatcher(t, d)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, 1, rec.CountFor(fmt.Sprintf("w%d", i)), "w%d", i)
	}

	errs := sinks.all()
	require.Len(t, errs, 1)
	assert.Equal(t, "w3", errs[0].WorkerID)
	assert.Equal(t, ev.ID, errs[0].Event.ID)
	assert.ErrorIs(t, errs[0], boom)
	assert.False(t, errs[0].Panicked)
}

func TestPublish_NeverDeliversToSource(t *testing.T) {
	reg := registry.New()
	rec := testutil.NewRecorder()
	subscribe(t, reg, "scheduler", rec.Handler(nil), core.KindEmailGenerated)
	subscribe(t, reg, "followup", rec.Handler(nil), core.KindEmailGenerated)

	d := New(reg)
	ev := testutil.NewEventBuilder().Source("scheduler").Payload(core.EmailGenerated{LeadID: "l1"}).Build()
	require.NoError(t, d.Publish(context.Background(), ev))
	closeDispatcher(t, d)

	assert.Equal(t, 0, rec.CountFor("scheduler"))
	assert.Equal(t, 1, rec.CountFor("followup"))
}

func TestPublish_SessionLogFollowsPublishOrder(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	_, _ = st.CreateSession(ctx, "s1", "campaign", nil)

	d := New(registry.New(), func(o *Options) { o.Ledger = st })
	var ids []string
	for i := 0; i < 20; i++ {
		ev := testutil.NewEventBuilder().Session("s1").Payload(core.EmailSent{LeadID: "l1", Step: i}).Build()
		ids = append(ids, ev.ID)
		require.NoError(t, d.Publish(ctx, ev))
	}
	closeDispatcher(t, d)

	sess, ok := st.Session(ctx, "s1")
	require.True(t, ok)
	require.Len(t, sess.Events, 20)
	for i, summary := range sess.Events {
		assert.Equal(t, ids[i], summary.EventID)
		assert.Equal(t, core.KindEmailSent, summary.Kind)
		assert.Equal(t, []string{"lead_id", "step"}, summary.DataKeys)
	}
}

func TestPublish_UnknownSessionIsNotCreated(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	d := New(registry.New(), func(o *Options) { o.Ledger = st })

	ev := testutil.NewEventBuilder().Session("ghost").Build()
	require.NoError(t, d.Publish(ctx, ev))
	closeDispatcher(t, d)

	_, ok := st.Session(ctx, "ghost")
	assert.False(t, ok)
}

func TestPublish_PanicIsContained(t *testing.T) {
	reg := registry.New()
	rec := testutil.NewRecorder()
	sinks := &sinkRecorder{}
	subscribe(t, reg, "crasher", func(context.Context, string, core.Event) error {
		panic("nil map write")
	}, core.KindLeadEnriched)
	subscribe(t, reg, "steady", rec.Handler(nil), core.KindLeadEnriched)

	d := New(reg, func(o *Options) {
		o.ErrorSink = sinks.sink
		o.Config = Config{Workers: 1, QueueSize: 4}
	})
	ev := testutil.NewEventBuilder().Payload(core.LeadEnriched{Lead: core.Record{"name": "Ada"}}).Build()
	require.NoError(t, d.Publish(context.Background(), ev))
	require.NoError(t, d.Publish(context.Background(), ev))
	closeDispatcher(t, d)

	assert.Equal(t, 2, rec.CountFor("steady"), "a panicking sibling must not stop the pool")
	errs := sinks.all()
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, e.Panicked)
		assert.Equal(t, "crasher", e.WorkerID)
		assert.Contains(t, e.Error(), "nil map write")
	}
}

func TestPublish_DoesNotBlockOnFullQueue(t *testing.T) {
	reg := registry.New()
	release := make(chan struct{})
	var handled atomic.Int32
	subscribe(t, reg, "slow", func(context.Context, string, core.Event) error {
		<-release
		handled.Add(1)
		return nil
	}, core.KindFollowupDue)

	d := New(reg, func(o *Options) { o.Config = Config{Workers: 1, QueueSize: 0} })

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 10; i++ {
			ev := testutil.NewEventBuilder().Payload(core.FollowupDue{LeadID: "l1", Step: i}).Build()
			assert.NoError(t, d.Publish(context.Background(), ev))
		}
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked behind a slow handler")
	}

	close(release)
	closeDispatcher(t, d)
	assert.EqualValues(t, 10, handled.Load())
}

func TestPublish_ReentrantPublishFromHandler(t *testing.T) {
	reg := registry.New()
	rec := testutil.NewRecorder()
	var d *Dispatcher

	subscribe(t, reg, "company_intel", func(ctx context.Context, workerID string, ev core.Event) error {
		p := ev.Payload.(core.CompanyIntelRequested)
		return d.Publish(ctx, core.NewEvent(ev.SessionID, workerID, core.CompanyIntelScraped{
			CompanyURL:   p.CompanyURL,
			Intelligence: core.Record{"industry": "robots"},
		}))
	}, core.KindCompanyIntelRequested)
	subscribe(t, reg, "email_generator", rec.Handler(nil), core.KindCompanyIntelScraped)

	d = New(reg, func(o *Options) { o.Config = Config{Workers: 1, QueueSize: 1} })
	ev := testutil.NewEventBuilder().Source("manager").Payload(core.CompanyIntelRequested{CompanyURL: "https://acme.test"}).Build()
	require.NoError(t, d.Publish(context.Background(), ev))

	require.Eventually(t, func() bool { return rec.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	closeDispatcher(t, d)

	got := rec.Deliveries()[0]
	assert.Equal(t, core.KindCompanyIntelScraped, got.Event.Kind)
	assert.Equal(t, "company_intel", got.Event.Source)
}

func TestPublish_HandlerOutlivesPublisherContext(t *testing.T) {
	reg := registry.New()
	started := make(chan struct{})
	result := make(chan error, 1)
	subscribe(t, reg, "w", func(ctx context.Context, _ string, _ core.Event) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		result <- ctx.Err()
		return nil
	}, core.KindCRMSyncRequested)

	d := New(reg)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, testutil.NewEventBuilder().Payload(core.CRMSyncRequested{LeadIDs: []string{"l1"}}).Build()))
	<-started
	cancel()
	closeDispatcher(t, d)
	assert.NoError(t, <-result)
}

func TestPublish_Validation(t *testing.T) {
	d := New(registry.New())
	assert.ErrorIs(t, d.Publish(context.Background(), core.Event{}), core.ErrInvalidEvent)

	closeDispatcher(t, d)
	closeDispatcher(t, d)
	err := d.Publish(context.Background(), testutil.NewEventBuilder().Build())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublish_Telemetry(t *testing.T) {
	reg := registry.New()
	subscribe(t, reg, "ok", func(context.Context, string, core.Event) error { return nil }, core.KindLookalikeRequested)
	subscribe(t, reg, "bad", func(context.Context, string, core.Event) error { return errors.New("quota") }, core.KindLookalikeRequested)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	d := New(reg, func(o *Options) {
		o.TracerProvider = tp
		o.MeterProvider = mp
	})
	ev := testutil.NewEventBuilder().Session("s1").Source("manager").Payload(core.LookalikeRequested{ProfileURLs: []string{"u"}}).Build()
	require.NoError(t, d.Publish(context.Background(), ev))
	closeDispatcher(t, d)

	ended := spans.Ended()
	require.Len(t, ended, 3)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	require.Len(t, byName["publish lookalike_requested"], 1)
	require.Len(t, byName["deliver lookalike_requested"], 2)

	publish := byName["publish lookalike_requested"][0]
	attrs := map[string]string{}
	for _, kv := range publish.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "lookalike_requested", attrs["salesswarm.event.kind"])
	assert.Equal(t, "s1", attrs["salesswarm.session.id"])
	assert.Equal(t, "2", attrs["salesswarm.subscribers"])

	errored := 0
	for _, s := range byName["deliver lookalike_requested"] {
		assert.Equal(t, publish.SpanContext().TraceID(), s.SpanContext().TraceID())
		if s.Status().Code == codes.Error {
			errored++
		}
	}
	assert.Equal(t, 1, errored)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.EqualValues(t, 1, sums["salesswarm.events.published"])
	assert.EqualValues(t, 2, sums["salesswarm.deliveries"])
}

func TestDrain_WaitsForFollowOnDeliveries(t *testing.T) {
	reg := registry.New()
	rec := testutil.NewRecorder()
	var d *Dispatcher

	// a -> b -> c chain, each hop published from inside a handler
	subscribe(t, reg, "hop1", func(ctx context.Context, id string, ev core.Event) error {
		time.Sleep(10 * time.Millisecond)
		return d.Publish(ctx, core.NewEvent(ev.SessionID, id, core.LeadEnriched{Lead: core.Record{"id": "l1"}}))
	}, core.KindLeadEnrichmentRequested)
	subscribe(t, reg, "hop2", func(ctx context.Context, id string, ev core.Event) error {
		time.Sleep(10 * time.Millisecond)
		return d.Publish(ctx, core.NewEvent(ev.SessionID, id, core.EmailGenerated{LeadID: "l1"}))
	}, core.KindLeadEnriched)
	subscribe(t, reg, "sink", rec.Handler(nil), core.KindEmailGenerated)

	d = New(reg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Drain(ctx), "an idle dispatcher drains immediately")
	require.NoError(t, d.Publish(ctx, testutil.NewEventBuilder().Payload(core.LeadEnrichmentRequested{LinkedInURLs: []string{"u"}}).Build()))
	require.NoError(t, d.Drain(ctx))
	assert.Equal(t, 1, rec.CountFor("sink"))
	closeDispatcher(t, d)
}

func TestDrain_HonoursContext(t *testing.T) {
	reg := registry.New()
	release := make(chan struct{})
	subscribe(t, reg, "stuck", func(context.Context, string, core.Event) error {
		<-release
		return nil
	}, core.KindCRMSynced)

	d := New(reg)
	require.NoError(t, d.Publish(context.Background(), testutil.NewEventBuilder().Payload(core.CRMSynced{Synced: 1}).Build()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)

	close(release)
	closeDispatcher(t, d)
}

type slowSetBackend struct {
	*cache.InMemoryBackend
}

func (b slowSetBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	time.Sleep(500 * time.Millisecond)
	return b.InMemoryBackend.Set(ctx, key, value, ttl)
}

func TestPublish_SlowCacheDoesNotDelayPublishers(t *testing.T) {
	ctx := context.Background()
	adapter := cache.New(slowSetBackend{cache.NewInMemoryBackend()})
	require.True(t, adapter.Connect(ctx))
	st := store.New(func(o *store.Options) { o.Cache = adapter })
	_, _ = st.CreateSession(ctx, "s1", "a", nil)
	_, _ = st.CreateSession(ctx, "s2", "b", nil)

	d := New(registry.New(), func(o *Options) { o.Ledger = st })
	defer closeDispatcher(t, d)

	var wg sync.WaitGroup
	elapsed := make([]time.Duration, 2)
	for i, id := range []string{"s1", "s2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			assert.NoError(t, d.Publish(ctx, testutil.NewEventBuilder().Session(id).Payload(core.EmailSent{LeadID: "l1"}).Build()))
			elapsed[i] = time.Since(start)
		}()
	}
	wg.Wait()

	for i, e := range elapsed {
		assert.Less(t, e, 100*time.Millisecond, "publish %d waited on the cache", i)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, st.Flush(flushCtx))
	got, ok := st.Session(ctx, "s2")
	require.True(t, ok)
	assert.Len(t, got.Events, 1)
}
