// Package overlay implements the per-resource overlay cache: which links each
// anchor created, one shared interactor entity per accession, and an R-tree
// over every visible primitive.
package overlay

import (
	"sort"

	"github.com/tidwall/rtree"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
)

// namespace holds one resource's overlay state.
type namespace struct {
	anchors  []*interactor.DiagramEntity
	byAnchor map[*interactor.DiagramEntity][]interactor.Link
	entities map[string]*interactor.Entity
	index    rtree.RTreeG[interactor.Primitive]
	// visible records the box each primitive was indexed under so that it
	// can be deleted even if its geometry changed since.
	visible map[interactor.Primitive]r2.Box
}

func newNamespace() *namespace {
	return &namespace{
		byAnchor: make(map[*interactor.DiagramEntity][]interactor.Link),
		entities: make(map[string]*interactor.Entity),
		visible:  make(map[interactor.Primitive]r2.Box),
	}
}

// Store is the overlay cache and spatial index for every resource of the
// current diagram.  It is not safe for concurrent use.
type Store struct {
	spaces map[string]*namespace
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{spaces: make(map[string]*namespace)}
}

func (s *Store) space(resource string) *namespace {
	ns, ok := s.spaces[resource]
	if !ok {
		ns = newNamespace()
		s.spaces[resource] = ns
	}
	return ns
}

// Reset drops every namespace.
func (s *Store) Reset() {
	s.spaces = make(map[string]*namespace)
}

// Resources lists the namespaces that hold state, sorted.
func (s *Store) Resources() []string {
	out := make([]string, 0, len(s.spaces))
	for r := range s.spaces {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────────────────────

// Cache records that anchor created link.
func (s *Store) Cache(resource string, anchor *interactor.DiagramEntity, link interactor.Link) {
	ns := s.space(resource)
	links, seen := ns.byAnchor[anchor]
	if !seen {
		ns.anchors = append(ns.anchors, anchor)
	}
	ns.byAnchor[anchor] = append(links, link)
}

// CacheEntity registers e as the shared entity for its accession.
func (s *Store) CacheEntity(resource string, e *interactor.Entity) {
	s.space(resource).entities[e.Accession()] = e
}

// InteractorEntity returns the shared entity for accession, if any.
func (s *Store) InteractorEntity(resource, accession string) (*interactor.Entity, bool) {
	ns, ok := s.spaces[resource]
	if !ok {
		return nil, false
	}
	e, ok := ns.entities[accession]
	return e, ok
}

// HasAnchor reports whether anchor has cached links in resource.
func (s *Store) HasAnchor(resource string, anchor *interactor.DiagramEntity) bool {
	ns, ok := s.spaces[resource]
	if !ok {
		return false
	}
	_, ok = ns.byAnchor[anchor]
	return ok
}

// Anchors returns a snapshot of the anchors with cached links, in the order
// they were first cached.
func (s *Store) Anchors(resource string) []*interactor.DiagramEntity {
	ns, ok := s.spaces[resource]
	if !ok {
		return nil
	}
	out := make([]*interactor.DiagramEntity, len(ns.anchors))
	copy(out, ns.anchors)
	return out
}

// InteractorLinks returns a snapshot of the links anchor created, or of every
// link in resource when anchor is nil.  The result is never nil.
func (s *Store) InteractorLinks(resource string, anchor *interactor.DiagramEntity) []interactor.Link {
	ns, ok := s.spaces[resource]
	if !ok {
		return []interactor.Link{}
	}
	if anchor != nil {
		links := ns.byAnchor[anchor]
		out := make([]interactor.Link, len(links))
		copy(out, links)
		return out
	}
	out := []interactor.Link{}
	for _, a := range ns.anchors {
		out = append(out, ns.byAnchor[a]...)
	}
	return out
}

// ForgetAnchor drops anchor's cached link list.  Primitives are not touched.
func (s *Store) ForgetAnchor(resource string, anchor *interactor.DiagramEntity) {
	ns, ok := s.spaces[resource]
	if !ok {
		return
	}
	if _, ok := ns.byAnchor[anchor]; !ok {
		return
	}
	delete(ns.byAnchor, anchor)
	for i, a := range ns.anchors {
		if a == anchor {
			ns.anchors = append(ns.anchors[:i], ns.anchors[i+1:]...)
			break
		}
	}
}

// EntityCount returns the number of shared entities in resource.
func (s *Store) EntityCount(resource string) int {
	if ns, ok := s.spaces[resource]; ok {
		return len(ns.entities)
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// View and spatial index
// ─────────────────────────────────────────────────────────────────────────────

// AddToView indexes p.  Adding a visible primitive again is a no-op.
func (s *Store) AddToView(resource string, p interactor.Primitive) {
	ns := s.space(resource)
	if _, ok := ns.visible[p]; ok {
		return
	}
	b := p.Bounds()
	ns.index.Insert(corner(b.Min), corner(b.Max), p)
	ns.visible[p] = b
}

// RemoveFromView un-indexes p.  Removing an interactor entity also drops it
// from the accession registry.  Absent primitives are ignored.
func (s *Store) RemoveFromView(resource string, p interactor.Primitive) {
	ns, ok := s.spaces[resource]
	if !ok {
		return
	}
	if b, ok := ns.visible[p]; ok {
		ns.index.Delete(corner(b.Min), corner(b.Max), p)
		delete(ns.visible, p)
	}
	if e, ok := p.(*interactor.Entity); ok && ns.entities[e.Accession()] == e {
		delete(ns.entities, e.Accession())
	}
}

// Visible reports whether p is indexed in resource.
func (s *Store) Visible(resource string, p interactor.Primitive) bool {
	ns, ok := s.spaces[resource]
	if !ok {
		return false
	}
	_, ok = ns.visible[p]
	return ok
}

// Query returns every visible primitive of resource whose indexed box
// contains point.
func (s *Store) Query(resource string, point r2.Vec) []interactor.Primitive {
	ns, ok := s.spaces[resource]
	if !ok {
		return nil
	}
	var out []interactor.Primitive
	pt := corner(point)
	ns.index.Search(pt, pt, func(_, _ [2]float64, p interactor.Primitive) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Len returns the number of indexed primitives in resource.
func (s *Store) Len(resource string) int {
	if ns, ok := s.spaces[resource]; ok {
		return ns.index.Len()
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Teardown
// ─────────────────────────────────────────────────────────────────────────────

// TeardownResult summarises what Teardown removed.
type TeardownResult struct {
	Links    int
	Entities int
}

// Teardown removes every primitive anchor created in resource: dynamic links
// are detached from their entity, orphaned entities are removed, and every
// link leaves the view.  It works on a snapshot of the anchor's links and is
// a no-op for unknown anchors.
func (s *Store) Teardown(resource string, anchor *interactor.DiagramEntity) TeardownResult {
	var res TeardownResult
	if anchor == nil {
		return res
	}
	for _, link := range s.InteractorLinks(resource, anchor) {
		if dl, ok := link.(*interactor.DynamicLink); ok {
			e := dl.Entity()
			e.RemoveLink(dl)
			if e.Orphaned() {
				s.RemoveFromView(resource, e)
				res.Entities++
			}
		}
		s.RemoveFromView(resource, link)
		res.Links++
	}
	s.ForgetAnchor(resource, anchor)
	return res
}

func corner(v r2.Vec) [2]float64 {
	return [2]float64{v.X, v.Y}
}
