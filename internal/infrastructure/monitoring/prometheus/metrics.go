package prometheus

import (
	"strconv"
	"time"
)

// Resolve outcomes recorded on resolves_total.
const (
	ResolveExpand   = "expand"
	ResolveTeardown = "teardown"
	ResolveNoop     = "noop"
)

// OverlayMetrics holds every metric family the overlay service exports.
// A nil *OverlayMetrics is valid and records nothing.
type OverlayMetrics struct {
	// Resolution engine
	ResolvesTotal         CounterVec
	LinksCreatedTotal     CounterVec
	EntitiesTotal         CounterVec
	CollapsesTotal        CounterVec
	SpatialIndexEntries   GaugeVec
	HitTestDuration       HistogramVec
	HoverTransitionsTotal CounterVec

	// Catalog
	CatalogLoadDuration   HistogramVec
	CatalogLoadFailures   CounterVec
	CatalogLoadsDiscarded CounterVec
	CatalogRecordsSkipped CounterVec

	// Infrastructure
	PayloadCacheRequests CounterVec
	EventsPublishedTotal CounterVec
	HTTPRequestsTotal    CounterVec
	HTTPRequestDuration  HistogramVec
}

// Default buckets.
var (
	DefaultHitTestBuckets = []float64{.00001, .00005, .0001, .0005, .001, .005, .01}
	DefaultLoadBuckets    = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultHTTPBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
)

// NewOverlayMetrics registers all overlay metric families on collector.
func NewOverlayMetrics(collector MetricsCollector) *OverlayMetrics {
	return &OverlayMetrics{
		ResolvesTotal:         collector.RegisterCounter("resolves_total", "Anchor resolutions by outcome", "resource", "outcome"),
		LinksCreatedTotal:     collector.RegisterCounter("links_created_total", "Interactor links created", "resource", "kind"),
		EntitiesTotal:         collector.RegisterCounter("interactor_entities_total", "Dynamic interactor entities requested", "resource", "result"),
		CollapsesTotal:        collector.RegisterCounter("collapses_total", "Full overlay collapses", "resource"),
		SpatialIndexEntries:   collector.RegisterGauge("spatial_index_entries", "Visible primitives in the spatial index", "resource"),
		HitTestDuration:       collector.RegisterHistogram("hit_test_duration_seconds", "Hover hit-test latency", DefaultHitTestBuckets, "resource"),
		HoverTransitionsTotal: collector.RegisterCounter("hover_transitions_total", "Hovered primitive identity changes"),

		CatalogLoadDuration:   collector.RegisterHistogram("catalog_load_duration_seconds", "Interactor catalog fetch latency", DefaultLoadBuckets, "resource"),
		CatalogLoadFailures:   collector.RegisterCounter("catalog_load_failures_total", "Failed interactor catalog loads", "resource"),
		CatalogLoadsDiscarded: collector.RegisterCounter("catalog_loads_discarded_total", "Superseded catalog completions dropped", "resource"),
		CatalogRecordsSkipped: collector.RegisterCounter("catalog_records_skipped_total", "Malformed interaction records dropped", "resource", "reason"),

		PayloadCacheRequests: collector.RegisterCounter("payload_cache_requests_total", "Interaction payload cache lookups", "result"),
		EventsPublishedTotal: collector.RegisterCounter("events_published_total", "Overlay notifications published to the broker", "type", "status"),
		HTTPRequestsTotal:    collector.RegisterCounter("http_requests_total", "HTTP requests", "method", "route", "status_code"),
		HTTPRequestDuration:  collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", DefaultHTTPBuckets, "method", "route"),
	}
}

// RecordResolve counts one resolution with its outcome.
func (m *OverlayMetrics) RecordResolve(resource, outcome string) {
	if m == nil {
		return
	}
	m.ResolvesTotal.WithLabelValues(resource, outcome).Inc()
}

// RecordLinks adds n created links of kind.
func (m *OverlayMetrics) RecordLinks(resource, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.LinksCreatedTotal.WithLabelValues(resource, kind).Add(float64(n))
}

// RecordEntity counts a dynamic entity creation or reuse.
func (m *OverlayMetrics) RecordEntity(resource string, created bool) {
	if m == nil {
		return
	}
	result := "reused"
	if created {
		result = "created"
	}
	m.EntitiesTotal.WithLabelValues(resource, result).Inc()
}

// RecordCollapse counts a full collapse of resource.
func (m *OverlayMetrics) RecordCollapse(resource string) {
	if m == nil {
		return
	}
	m.CollapsesTotal.WithLabelValues(resource).Inc()
}

// SetIndexSize reports the number of visible primitives for resource.
func (m *OverlayMetrics) SetIndexSize(resource string, n int) {
	if m == nil {
		return
	}
	m.SpatialIndexEntries.WithLabelValues(resource).Set(float64(n))
}

// ResetIndexSizes drops the per-resource gauges after a diagram reset.
func (m *OverlayMetrics) ResetIndexSizes(resources ...string) {
	if m == nil {
		return
	}
	for _, r := range resources {
		m.SpatialIndexEntries.DeleteLabelValues(r)
	}
}

// ObserveHitTest records hit-test latency.
func (m *OverlayMetrics) ObserveHitTest(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.HitTestDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// RecordHoverTransition counts a hovered identity change.
func (m *OverlayMetrics) RecordHoverTransition() {
	if m == nil {
		return
	}
	m.HoverTransitionsTotal.WithLabelValues().Inc()
}

// RecordCatalogLoad records a finished fetch; failed loads also count as failures.
func (m *OverlayMetrics) RecordCatalogLoad(resource string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CatalogLoadDuration.WithLabelValues(resource).Observe(d.Seconds())
	if err != nil {
		m.CatalogLoadFailures.WithLabelValues(resource).Inc()
	}
}

// RecordCatalogDiscarded counts a superseded completion.
func (m *OverlayMetrics) RecordCatalogDiscarded(resource string) {
	if m == nil {
		return
	}
	m.CatalogLoadsDiscarded.WithLabelValues(resource).Inc()
}

// RecordSkippedRecord counts a malformed interaction record.
func (m *OverlayMetrics) RecordSkippedRecord(resource, reason string) {
	if m == nil {
		return
	}
	m.CatalogRecordsSkipped.WithLabelValues(resource, reason).Inc()
}

// RecordPayloadCache counts a cache lookup: "hit", "miss" or "error".
func (m *OverlayMetrics) RecordPayloadCache(result string) {
	if m == nil {
		return
	}
	m.PayloadCacheRequests.WithLabelValues(result).Inc()
}

// RecordPublish counts a broker publish attempt.
func (m *OverlayMetrics) RecordPublish(eventType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordHTTPRequest records an HTTP request keyed by its route pattern.
func (m *OverlayMetrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
