package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOverlayMetrics(t *testing.T) (*OverlayMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	m := NewOverlayMetrics(c)
	require.NotNil(t, m)
	return m, c
}

func TestOverlayMetrics_ResolutionFamilies(t *testing.T) {
	m, c := newTestOverlayMetrics(t)

	m.RecordResolve("static", ResolveExpand)
	m.RecordResolve("static", ResolveTeardown)
	m.RecordLinks("static", "dynamic", 4)
	m.RecordLinks("static", "loop", 0)
	m.RecordEntity("static", true)
	m.RecordEntity("static", false)
	m.RecordCollapse("static")
	m.SetIndexSize("static", 9)
	m.ObserveHitTest("static", 30*time.Microsecond)
	m.RecordHoverTransition()

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_resolves_total{outcome="expand",resource="static"} 1`)
	assert.Contains(t, out, `test_unit_resolves_total{outcome="teardown",resource="static"} 1`)
	assert.Contains(t, out, `test_unit_links_created_total{kind="dynamic",resource="static"} 4`)
	assert.NotContains(t, out, `kind="loop"`)
	assert.Contains(t, out, `test_unit_interactor_entities_total{resource="static",result="created"} 1`)
	assert.Contains(t, out, `test_unit_interactor_entities_total{resource="static",result="reused"} 1`)
	assert.Contains(t, out, `test_unit_collapses_total{resource="static"} 1`)
	assert.Contains(t, out, `test_unit_spatial_index_entries{resource="static"} 9`)
	assert.Contains(t, out, `test_unit_hit_test_duration_seconds_count{resource="static"} 1`)
	assert.Contains(t, out, "test_unit_hover_transitions_total 1")

	m.ResetIndexSizes("static")
	assert.NotContains(t, scrapeMetrics(t, c), "test_unit_spatial_index_entries{")
}

func TestOverlayMetrics_CatalogFamilies(t *testing.T) {
	m, c := newTestOverlayMetrics(t)

	m.RecordCatalogLoad("IntAct", 120*time.Millisecond, nil)
	m.RecordCatalogLoad("IntAct", time.Second, errors.New("502"))
	m.RecordCatalogDiscarded("IntAct")
	m.RecordSkippedRecord("IntAct", "score_range")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_catalog_load_duration_seconds_count{resource="IntAct"} 2`)
	assert.Contains(t, out, `test_unit_catalog_load_failures_total{resource="IntAct"} 1`)
	assert.Contains(t, out, `test_unit_catalog_loads_discarded_total{resource="IntAct"} 1`)
	assert.Contains(t, out, `test_unit_catalog_records_skipped_total{reason="score_range",resource="IntAct"} 1`)
}

func TestOverlayMetrics_InfrastructureFamilies(t *testing.T) {
	m, c := newTestOverlayMetrics(t)

	m.RecordPayloadCache("hit")
	m.RecordPublish("overlay_updated", nil)
	m.RecordPublish("overlay_updated", errors.New("broker down"))
	m.RecordHTTPRequest("GET", "/api/v1/hover", 200, 3*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_payload_cache_requests_total{result="hit"} 1`)
	assert.Contains(t, out, `test_unit_events_published_total{status="success",type="overlay_updated"} 1`)
	assert.Contains(t, out, `test_unit_events_published_total{status="failure",type="overlay_updated"} 1`)
	assert.Contains(t, out, `test_unit_http_requests_total{method="GET",route="/api/v1/hover",status_code="200"} 1`)
}

func TestOverlayMetrics_NilIsSafe(t *testing.T) {
	var m *OverlayMetrics
	assert.NotPanics(t, func() {
		m.RecordResolve("r", ResolveNoop)
		m.RecordLinks("r", "static", 1)
		m.RecordEntity("r", true)
		m.RecordCollapse("r")
		m.SetIndexSize("r", 1)
		m.ResetIndexSizes("r")
		m.ObserveHitTest("r", time.Millisecond)
		m.RecordHoverTransition()
		m.RecordCatalogLoad("r", time.Millisecond, nil)
		m.RecordCatalogDiscarded("r")
		m.RecordSkippedRecord("r", "x")
		m.RecordPayloadCache("miss")
		m.RecordPublish("x", nil)
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	})
}
