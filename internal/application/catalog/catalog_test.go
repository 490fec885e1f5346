package catalog

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pathway-overlay/internal/application/eventloop"
	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/testutil"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// scriptedFetcher answers each call with the next function in script.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []func(ctx context.Context) (*interactor.Payload, error)
	calls  int
}

func (f *scriptedFetcher) FetchInteractions(ctx context.Context, _, _ string) (*interactor.Payload, error) {
	f.mu.Lock()
	step := f.script[f.calls]
	f.calls++
	f.mu.Unlock()
	return step(ctx)
}

type harness struct {
	loop    *eventloop.Loop
	bus     *events.Bus
	catalog *Catalog
	logger  *testutil.RecordingLogger
	loaded  chan events.CatalogLoaded
	failed  chan events.ResourceLoadError
}

func newHarness(t *testing.T, f Fetcher, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		loop:   eventloop.New(logging.NewNopLogger()),
		bus:    events.NewBus(),
		logger: testutil.NewRecordingLogger(),
		loaded: make(chan events.CatalogLoaded, 8),
		failed: make(chan events.ResourceLoadError, 8),
	}
	h.catalog = New(f, h.loop, h.bus, h.logger, opts...)
	events.Subscribe(h.bus, func(e events.CatalogLoaded) { h.loaded <- e })
	events.Subscribe(h.bus, func(e events.ResourceLoadError) { h.failed <- e })

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.loop.Stopped()
	})
	return h
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Do(context.Background(), fn))
}

func payload(entities ...interactor.EntityInteractions) *interactor.Payload {
	return &interactor.Payload{Resource: "static", Entities: entities}
}

func ok(p *interactor.Payload) func(context.Context) (*interactor.Payload, error) {
	return func(context.Context) (*interactor.Payload, error) { return p, nil }
}

func TestCatalog_LoadAndGet(t *testing.T) {
	f := &scriptedFetcher{script: []func(context.Context) (*interactor.Payload, error){
		ok(payload(interactor.EntityInteractions{Accession: "P1", Interactions: []interactor.RawInteraction{
			{ID: 1, PartnerAccession: "Q1", Score: 0.9},
			{ID: 2, PartnerAccession: "Q2", Score: 0.4},
		}})),
	}}
	h := newHarness(t, f)

	h.do(t, func() { h.catalog.Load("static", "R-HSA-1") })
	select {
	case e := <-h.loaded:
		assert.Equal(t, "static", e.Resource)
		assert.Equal(t, "R-HSA-1", e.DiagramID)
		assert.Equal(t, 1, e.Entities)
		assert.Equal(t, 2, e.Records)
	case <-time.After(2 * time.Second):
		t.Fatal("no CatalogLoaded event")
	}

	h.do(t, func() {
		recs := h.catalog.Get("static", "P1")
		require.Len(t, recs, 2)
		assert.Equal(t, "P1", recs[0].SourceAccession, "source filled from entity accession")
		assert.NotNil(t, h.catalog.Get("static", "missing"))
		assert.Empty(t, h.catalog.Get("other", "P1"))
		assert.True(t, h.catalog.Loaded("static"))
		assert.False(t, h.catalog.Pending("static"))
		assert.Equal(t, []string{"static"}, h.catalog.Resources())
	})
}

func TestCatalog_DropsMalformedRecords(t *testing.T) {
	f := &scriptedFetcher{script: []func(context.Context) (*interactor.Payload, error){
		ok(payload(
			interactor.EntityInteractions{Accession: "P1", Interactions: []interactor.RawInteraction{
				{ID: 1, PartnerAccession: "Q1", Score: 0.5},
				{ID: 2, PartnerAccession: "", Score: 0.5},
				{ID: 3, PartnerAccession: "Q3", Score: 1.5},
				{ID: 4, PartnerAccession: "Q4", Score: math.NaN()},
				{ID: 5, PartnerAccession: "Q5", Score: -0.1},
			}},
			interactor.EntityInteractions{Accession: "", Interactions: []interactor.RawInteraction{
				{ID: 6, PartnerAccession: "Q6", Score: 0.5},
			}},
		)),
	}}
	h := newHarness(t, f)

	h.do(t, func() { h.catalog.Load("static", "R-HSA-1") })
	e := <-h.loaded
	assert.Equal(t, 1, e.Records)
	assert.Equal(t, 5, e.Skipped)

	reasons := map[interface{}]int{}
	for _, entry := range h.logger.Filter("debug", "skipping malformed record") {
		reason, _ := entry.Field("reason")
		reasons[reason]++
	}
	assert.Equal(t, map[interface{}]int{SkipEmptyPartner: 1, SkipInvalidScore: 3, SkipEmptySource: 1}, reasons)

	h.do(t, func() {
		recs := h.catalog.Get("static", "P1")
		require.Len(t, recs, 1)
		assert.Equal(t, int64(1), recs[0].ID)
	})
}

func TestCatalog_FailureKeepsExistingData(t *testing.T) {
	f := &scriptedFetcher{script: []func(context.Context) (*interactor.Payload, error){
		ok(payload(interactor.EntityInteractions{Accession: "P1", Interactions: []interactor.RawInteraction{
			{ID: 1, PartnerAccession: "Q1", Score: 0.5},
		}})),
		func(context.Context) (*interactor.Payload, error) {
			return nil, errors.New(errors.ErrCodeResourceLoad, "resource unavailable").WithDetail("HTTP 503")
		},
	}}
	h := newHarness(t, f)

	h.do(t, func() { h.catalog.Load("static", "R-HSA-1") })
	<-h.loaded
	h.do(t, func() { h.catalog.Load("static", "R-HSA-1") })

	select {
	case e := <-h.failed:
		assert.Equal(t, "static", e.Resource)
		assert.Equal(t, "resource unavailable: HTTP 503", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no ResourceLoadError event")
	}
	h.do(t, func() {
		assert.Len(t, h.catalog.Get("static", "P1"), 1)
	})
}

func TestCatalog_LastRequestWins(t *testing.T) {
	firstCancelled := make(chan struct{})
	f := &scriptedFetcher{script: []func(context.Context) (*interactor.Payload, error){
		func(ctx context.Context) (*interactor.Payload, error) {
			<-ctx.Done()
			close(firstCancelled)
			return payload(interactor.EntityInteractions{Accession: "OLD", Interactions: []interactor.RawInteraction{
				{ID: 1, PartnerAccession: "Q", Score: 0.5},
			}}), nil
		},
		func(ctx context.Context) (*interactor.Payload, error) {
			<-firstCancelled
			return payload(interactor.EntityInteractions{Accession: "NEW", Interactions: []interactor.RawInteraction{
				{ID: 2, PartnerAccession: "Q", Score: 0.5},
			}}), nil
		},
	}}
	h := newHarness(t, f)

	h.do(t, func() {
		h.catalog.Load("static", "R-HSA-1")
		assert.True(t, h.catalog.Pending("static"))
	})
	// The first fetch must have started before the second Load cancels it.
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls == 1
	}, 2*time.Second, time.Millisecond)
	h.do(t, func() { h.catalog.Load("static", "R-HSA-2") })

	e := <-h.loaded
	assert.Equal(t, "R-HSA-2", e.DiagramID)

	// Flush the loop so the stale completion, if posted, has been handled.
	h.do(t, func() {})
	h.do(t, func() {
		assert.Empty(t, h.catalog.Get("static", "OLD"))
		assert.Len(t, h.catalog.Get("static", "NEW"), 1)
	})
	select {
	case extra := <-h.loaded:
		t.Fatalf("superseded load delivered: %+v", extra)
	default:
	}
	assert.Empty(t, h.failed)
}

func TestCatalog_TimeoutAndReset(t *testing.T) {
	f := &scriptedFetcher{script: []func(context.Context) (*interactor.Payload, error){
		func(ctx context.Context) (*interactor.Payload, error) {
			<-ctx.Done()
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "fetch timed out")
		},
	}}
	h := newHarness(t, f, WithTimeout(10*time.Millisecond))

	h.do(t, func() { h.catalog.Load("IntAct", "R-HSA-1") })
	e := <-h.failed
	assert.Equal(t, "IntAct", e.Resource)
	assert.Equal(t, "fetch timed out", e.Message)

	h.do(t, func() {
		assert.False(t, h.catalog.Loaded("IntAct"))
		h.catalog.Reset()
		assert.Empty(t, h.catalog.Resources())
	})
}
