package interactor

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Entity is a synthetic interactor node shared by every dynamic link to the
// same partner accession within a resource.
type Entity struct {
	accession string
	alias     string
	box       r2.Box
	links     []*DynamicLink
}

// NewEntity creates an entity occupying box.  The box is fixed for the
// entity's lifetime.
func NewEntity(accession, alias string, box r2.Box) *Entity {
	return &Entity{accession: accession, alias: alias, box: box}
}

func (e *Entity) Kind() PrimitiveKind { return KindEntity }
func (e *Entity) Bounds() r2.Box      { return e.box }
func (e *Entity) Key() string         { return "interactor:" + e.accession }

// Accession is the raw partner accession the entity was created for.
func (e *Entity) Accession() string { return e.accession }

// Alias is the display alias, or the accession when none was provided.
func (e *Entity) Alias() string {
	if e.alias == "" {
		return e.accession
	}
	return e.alias
}

// Center returns the centre of the entity's box.
func (e *Entity) Center() r2.Vec { return boxCenter(e.box) }

// AddLink attaches l unless it is already attached.
func (e *Entity) AddLink(l *DynamicLink) {
	for _, existing := range e.links {
		if existing == l {
			return
		}
	}
	e.links = append(e.links, l)
}

// RemoveLink detaches l and reports whether it was attached.
func (e *Entity) RemoveLink(l *DynamicLink) bool {
	for i, existing := range e.links {
		if existing == l {
			e.links = append(e.links[:i], e.links[i+1:]...)
			return true
		}
	}
	return false
}

// Links returns a copy of the attached links in attachment order.
func (e *Entity) Links() []*DynamicLink {
	out := make([]*DynamicLink, len(e.links))
	copy(out, e.links)
	return out
}

// LinkCount returns the number of attached links.
func (e *Entity) LinkCount() int { return len(e.links) }

// Orphaned reports whether no link references the entity any more.
func (e *Entity) Orphaned() bool { return len(e.links) == 0 }
