package interactor

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

type linkBase struct {
	interactionID int64
	score         float64
	anchor        *DiagramEntity
}

func (l *linkBase) InteractionID() int64   { return l.interactionID }
func (l *linkBase) Score() float64         { return l.score }
func (l *linkBase) Anchor() *DiagramEntity { return l.anchor }

// StaticLink joins an anchor to another entity already in the diagram.
type StaticLink struct {
	linkBase
	target *DiagramEntity
}

// NewStaticLink links anchor to target for record.
func NewStaticLink(anchor, target *DiagramEntity, record RawInteraction) *StaticLink {
	return &StaticLink{
		linkBase: linkBase{interactionID: record.ID, score: record.Score, anchor: anchor},
		target:   target,
	}
}

func (l *StaticLink) Kind() PrimitiveKind { return KindStaticLink }

// Target returns the diagram entity at the far end.
func (l *StaticLink) Target() *DiagramEntity { return l.target }

// Segment returns the drawn line, centre to centre.
func (l *StaticLink) Segment() (from, to r2.Vec) {
	return l.anchor.Center(), l.target.Center()
}

func (l *StaticLink) Bounds() r2.Box {
	from, to := l.Segment()
	return boundsOf(HitTolerance, from, to)
}

func (l *StaticLink) Key() string {
	return fmt.Sprintf("static:%d:%d:%d", l.anchor.ID, l.target.ID, l.interactionID)
}

// LoopLink is a self interaction of its anchor.
type LoopLink struct {
	linkBase
}

// NewLoopLink creates the self link of anchor for record.
func NewLoopLink(anchor *DiagramEntity, record RawInteraction) *LoopLink {
	return &LoopLink{linkBase: linkBase{interactionID: record.ID, score: record.Score, anchor: anchor}}
}

func (l *LoopLink) Kind() PrimitiveKind { return KindLoopLink }

// Center returns the centre of the loop ring (the anchor's top-right corner).
func (l *LoopLink) Center() r2.Vec {
	return r2.Vec{X: l.anchor.Box.Max.X, Y: l.anchor.Box.Min.Y}
}

func (l *LoopLink) Bounds() r2.Box {
	return boundsOf(LoopRadius+HitTolerance, l.Center())
}

func (l *LoopLink) Key() string {
	return fmt.Sprintf("loop:%d:%d", l.anchor.ID, l.interactionID)
}

// DynamicLink joins an anchor to a synthetic interactor entity.
type DynamicLink struct {
	linkBase
	entity *Entity
}

// NewDynamicLink links anchor to entity for record.  It does not register
// itself with entity; see Entity.AddLink.
func NewDynamicLink(anchor *DiagramEntity, entity *Entity, record RawInteraction) *DynamicLink {
	return &DynamicLink{
		linkBase: linkBase{interactionID: record.ID, score: record.Score, anchor: anchor},
		entity:   entity,
	}
}

func (l *DynamicLink) Kind() PrimitiveKind { return KindDynamicLink }

// Entity returns the synthetic entity at the far end.
func (l *DynamicLink) Entity() *Entity { return l.entity }

// Segment returns the drawn line, centre to centre.
func (l *DynamicLink) Segment() (from, to r2.Vec) {
	return l.anchor.Center(), l.entity.Center()
}

func (l *DynamicLink) Bounds() r2.Box {
	from, to := l.Segment()
	return boundsOf(HitTolerance, from, to)
}

func (l *DynamicLink) Key() string {
	return fmt.Sprintf("dynamic:%d:%s:%d", l.anchor.ID, l.entity.accession, l.interactionID)
}
