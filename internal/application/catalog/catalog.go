// Package catalog holds the raw interaction records of every loaded
// resource, keyed by diagram accession.  Loading is asynchronous: the fetch
// runs on its own goroutine and its completion is posted back to the event
// loop, where the last request per resource wins.
package catalog

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pathway-overlay/internal/application/eventloop"
	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Fetcher retrieves one resource's interactions for a diagram.
type Fetcher interface {
	FetchInteractions(ctx context.Context, resource, diagramID string) (*interactor.Payload, error)
}

// Skip reasons recorded for malformed records.
const (
	SkipEmptySource  = "empty_source"
	SkipEmptyPartner = "empty_partner"
	SkipInvalidScore = "invalid_score"
)

// Option configures a Catalog.
type Option func(*Catalog)

// WithTimeout bounds each fetch.  Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Catalog) { c.timeout = d }
}

// WithMetrics records loads on m.
func WithMetrics(m *prometheus.OverlayMetrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithBaseContext parents every fetch on ctx.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Catalog) { c.base = ctx }
}

type request struct {
	token     string
	diagramID string
	cancel    context.CancelFunc
}

// Catalog is the per-resource record store.  Every method except the fetch
// goroutine runs on the event loop.
type Catalog struct {
	fetcher Fetcher
	loop    eventloop.Poster
	bus     *events.Bus
	logger  logging.Logger
	metrics *prometheus.OverlayMetrics
	timeout time.Duration
	base    context.Context

	data    map[string]map[string][]interactor.RawInteraction
	pending map[string]*request
}

// New returns an empty catalog.
func New(fetcher Fetcher, loop eventloop.Poster, bus *events.Bus, logger logging.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Catalog{
		fetcher: fetcher,
		loop:    loop,
		bus:     bus,
		logger:  logger.Named("catalog"),
		base:    context.Background(),
		data:    make(map[string]map[string][]interactor.RawInteraction),
		pending: make(map[string]*request),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load starts fetching resource for diagramID and returns at once.  A pending
// load of the same resource is cancelled and its completion discarded.
func (c *Catalog) Load(resource, diagramID string) {
	if prev, ok := c.pending[resource]; ok {
		prev.cancel()
		c.logger.Debug("superseding pending load",
			logging.String(logging.FieldResource, resource),
			logging.String("token", prev.token))
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.base, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.base)
	}
	req := &request{token: uuid.NewString(), diagramID: diagramID, cancel: cancel}
	c.pending[resource] = req

	start := time.Now()
	go func() {
		payload, err := c.fetcher.FetchInteractions(ctx, resource, diagramID)
		posted := c.loop.Post(func() {
			c.complete(resource, req.token, payload, err, time.Since(start))
		})
		if !posted {
			cancel()
		}
	}()
}

// Pending reports whether a load of resource is outstanding.
func (c *Catalog) Pending(resource string) bool {
	_, ok := c.pending[resource]
	return ok
}

// Cancel abandons every outstanding load.
func (c *Catalog) Cancel() {
	for resource, req := range c.pending {
		req.cancel()
		delete(c.pending, resource)
	}
}

// Reset drops all data and outstanding loads.
func (c *Catalog) Reset() {
	c.Cancel()
	c.data = make(map[string]map[string][]interactor.RawInteraction)
}

// Get returns the records of accession in resource.  The result is never
// nil and must not be modified.
func (c *Catalog) Get(resource, accession string) []interactor.RawInteraction {
	if records, ok := c.data[resource][accession]; ok {
		return records
	}
	return []interactor.RawInteraction{}
}

// Loaded reports whether resource has a namespace.
func (c *Catalog) Loaded(resource string) bool {
	_, ok := c.data[resource]
	return ok
}

// Resources returns the loaded resources, sorted.
func (c *Catalog) Resources() []string {
	out := make([]string, 0, len(c.data))
	for r := range c.data {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) complete(resource, token string, payload *interactor.Payload, err error, elapsed time.Duration) {
	req, ok := c.pending[resource]
	if !ok || req.token != token {
		c.metrics.RecordCatalogDiscarded(resource)
		c.logger.Debug("discarding superseded load",
			logging.String(logging.FieldResource, resource),
			logging.String("token", token))
		return
	}
	delete(c.pending, resource)
	req.cancel()
	c.metrics.RecordCatalogLoad(resource, elapsed, err)

	if err != nil {
		c.logger.Warn("interactor load failed", append(logging.ErrFields(err),
			logging.String(logging.FieldResource, resource),
			logging.String(logging.FieldDiagram, req.diagramID))...)
		c.bus.Publish(events.ResourceLoadError{
			Resource:  resource,
			DiagramID: req.diagramID,
			Message:   loadErrorMessage(err),
		})
		return
	}

	ns, records, skipped := c.validate(resource, payload)
	c.data[resource] = ns
	c.logger.Info("interactors loaded",
		logging.String(logging.FieldResource, resource),
		logging.String(logging.FieldDiagram, req.diagramID),
		logging.Int("entities", len(ns)),
		logging.Int("records", records),
		logging.Int("skipped", skipped),
		logging.Duration("elapsed", elapsed))
	c.bus.Publish(events.CatalogLoaded{
		Resource:  resource,
		DiagramID: req.diagramID,
		Entities:  len(ns),
		Records:   records,
		Skipped:   skipped,
		Elapsed:   elapsed,
	})
}

func (c *Catalog) validate(resource string, payload *interactor.Payload) (map[string][]interactor.RawInteraction, int, int) {
	ns := make(map[string][]interactor.RawInteraction)
	if payload == nil {
		return ns, 0, 0
	}
	records, skipped := 0, 0
	for _, entity := range payload.Entities {
		if entity.Accession == "" {
			skipped += len(entity.Interactions)
			c.skip(resource, SkipEmptySource, logging.Int("records", len(entity.Interactions)))
			continue
		}
		kept := make([]interactor.RawInteraction, 0, len(entity.Interactions))
		for _, rec := range entity.Interactions {
			if reason := checkRecord(rec); reason != "" {
				skipped++
				c.skip(resource, reason,
					logging.String(logging.FieldAccession, entity.Accession),
					logging.Int64("interaction_id", rec.ID))
				continue
			}
			if rec.SourceAccession == "" {
				rec.SourceAccession = entity.Accession
			}
			kept = append(kept, rec)
		}
		ns[entity.Accession] = append(ns[entity.Accession], kept...)
		records += len(kept)
	}
	return ns, records, skipped
}

func (c *Catalog) skip(resource, reason string, fields ...logging.Field) {
	c.metrics.RecordSkippedRecord(resource, reason)
	c.logger.Debug("skipping malformed record", append(fields,
		logging.String(logging.FieldResource, resource),
		logging.String("reason", reason))...)
}

func checkRecord(rec interactor.RawInteraction) string {
	switch {
	case rec.PartnerAccession == "":
		return SkipEmptyPartner
	case math.IsNaN(rec.Score) || math.IsInf(rec.Score, 0) || rec.Score < 0 || rec.Score > 1:
		return SkipInvalidScore
	default:
		return ""
	}
}

func loadErrorMessage(err error) string {
	var app *errors.AppError
	if errors.As(err, &app) && app.Message != "" {
		if app.Detail != "" {
			return app.Message + ": " + app.Detail
		}
		return app.Message
	}
	return err.Error()
}
