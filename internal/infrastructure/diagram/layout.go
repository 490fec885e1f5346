// Package diagram reads diagram layouts from YAML files and turns them into
// the entities and identifier index the overlay engine works on.
package diagram

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Layout is one diagram file.
type Layout struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes       []Node       `yaml:"nodes" json:"nodes"`
	Identifiers []Identifier `yaml:"identifiers,omitempty" json:"identifiers,omitempty"`
}

// Node is a placed diagram entity.
type Node struct {
	ID          int64   `yaml:"id" json:"id"`
	Accession   string  `yaml:"accession" json:"accession"`
	SchemaClass string  `yaml:"schema_class,omitempty" json:"schema_class,omitempty"`
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	X           float64 `yaml:"x" json:"x"`
	Y           float64 `yaml:"y" json:"y"`
	Width       float64 `yaml:"width" json:"width"`
	Height      float64 `yaml:"height" json:"height"`
	// Aliases are further identifiers the node answers to (cross references).
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Identifier declares a graph identifier.  Without Nodes it is known to the
// graph but placed nowhere, like a component of a complex.
type Identifier struct {
	ID    string  `yaml:"id" json:"id"`
	Nodes []int64 `yaml:"nodes,omitempty" json:"nodes,omitempty"`
}

// Parse decodes and validates a layout.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLayoutInvalid, "diagram layout is not valid YAML")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks ids and geometry.
func (l *Layout) Validate() error {
	if l.ID == "" {
		return errors.New(errors.ErrCodeLayoutInvalid, "diagram layout has no id")
	}
	seen := make(map[int64]struct{}, len(l.Nodes))
	for _, n := range l.Nodes {
		if _, dup := seen[n.ID]; dup {
			return errors.New(errors.ErrCodeLayoutInvalid, "duplicate node id").WithDetail(fmt.Sprintf("id=%d", n.ID))
		}
		seen[n.ID] = struct{}{}
		if n.Width <= 0 || n.Height <= 0 {
			return errors.New(errors.ErrCodeLayoutInvalid, "node has no area").WithDetail(fmt.Sprintf("id=%d", n.ID))
		}
	}
	for _, ident := range l.Identifiers {
		if ident.ID == "" {
			return errors.New(errors.ErrCodeLayoutInvalid, "identifier without id")
		}
		for _, id := range ident.Nodes {
			if _, ok := seen[id]; !ok {
				return errors.New(errors.ErrCodeLayoutInvalid, "identifier references unknown node").
					WithDetail(fmt.Sprintf("identifier=%s node=%d", ident.ID, id))
			}
		}
	}
	return nil
}

// Entities builds fresh diagram entities from the layout nodes, in file
// order.
func (l *Layout) Entities() []*interactor.DiagramEntity {
	out := make([]*interactor.DiagramEntity, len(l.Nodes))
	for i, n := range l.Nodes {
		out[i] = &interactor.DiagramEntity{
			ID:          n.ID,
			Accession:   n.Accession,
			SchemaClass: n.SchemaClass,
			DisplayName: n.Name,
			Box: r2.Box{
				Min: r2.Vec{X: n.X, Y: n.Y},
				Max: r2.Vec{X: n.X + n.Width, Y: n.Y + n.Height},
			},
		}
	}
	return out
}

// Index fills idx from the layout: every node under its accession and
// aliases, then the declared identifiers.  entities must come from Entities.
func (l *Layout) Index(idx interactor.MapIndex, entities []*interactor.DiagramEntity) {
	byID := make(map[int64]*interactor.DiagramEntity, len(entities))
	for i, n := range l.Nodes {
		e := entities[i]
		byID[n.ID] = e
		if n.Accession != "" {
			idx.Add(n.Accession, e)
		}
		for _, alias := range n.Aliases {
			idx.Add(alias, e)
		}
	}
	for _, ident := range l.Identifiers {
		if len(ident.Nodes) == 0 {
			idx.Declare(ident.ID)
			continue
		}
		for _, id := range ident.Nodes {
			idx.Add(ident.ID, byID[id])
		}
	}
}
