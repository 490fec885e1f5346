package interactor

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// IdentifierIndex maps a normalized identifier to the diagram entities that
// carry it.  A known identifier may map to no placed entity (a component of a
// complex or set); ok still reports true in that case.
type IdentifierIndex interface {
	Lookup(identifier string) (entities []*DiagramEntity, ok bool)
}

// MapIndex is an IdentifierIndex backed by a map.
type MapIndex map[string][]*DiagramEntity

// Lookup implements IdentifierIndex.
func (m MapIndex) Lookup(identifier string) ([]*DiagramEntity, bool) {
	entities, ok := m[identifier]
	return entities, ok
}

// Add records that e carries identifier.  Adding the same entity twice
// under one identifier is a no-op.
func (m MapIndex) Add(identifier string, e *DiagramEntity) {
	for _, have := range m[identifier] {
		if have == e {
			return
		}
	}
	m[identifier] = append(m[identifier], e)
}

// Declare records identifier as known without placing it.
func (m MapIndex) Declare(identifier string) {
	if _, ok := m[identifier]; !ok {
		m[identifier] = nil
	}
}

// DiagramContext is what the loader binds once a diagram is loaded.
type DiagramContext struct {
	DiagramID string
	Entities  []*DiagramEntity
	Index     IdentifierIndex
}

// Entity finds a diagram entity by id.
func (c *DiagramContext) Entity(id int64) (*DiagramEntity, bool) {
	for _, e := range c.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Bounds returns the box spanning every entity, or the zero box when there
// are none.
func (c *DiagramContext) Bounds() r2.Box {
	if len(c.Entities) == 0 {
		return r2.Box{}
	}
	b := c.Entities[0].Box
	for _, e := range c.Entities[1:] {
		b.Min.X = minf(b.Min.X, e.Box.Min.X)
		b.Min.Y = minf(b.Min.Y, e.Box.Min.Y)
		b.Max.X = maxf(b.Max.X, e.Box.Max.X)
		b.Max.Y = maxf(b.Max.Y, e.Box.Max.Y)
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ─────────────────────────────────────────────────────────────────────────────
// Fetched payloads
// ─────────────────────────────────────────────────────────────────────────────

// EntityInteractions groups the records fetched for one diagram accession.
type EntityInteractions struct {
	Accession    string           `json:"acc"`
	Count        int              `json:"count"`
	Interactions []RawInteraction `json:"interactors"`
}

// Payload is one resource's interactions for one diagram.
type Payload struct {
	Resource  string               `json:"resource"`
	DiagramID string               `json:"diagram_id"`
	Entities  []EntityInteractions `json:"entities"`
}

// Records returns the number of interaction records in p.
func (p *Payload) Records() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, e := range p.Entities {
		n += len(e.Interactions)
	}
	return n
}

// Accessions returns the entity accessions of p, sorted.
func (p *Payload) Accessions() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Entities))
	for _, e := range p.Entities {
		out = append(out, e.Accession)
	}
	sort.Strings(out)
	return out
}
