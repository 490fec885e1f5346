package kafka

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// SchemaVersion is stamped on every envelope.
const SchemaVersion = "1"

// EventEnvelope standardizes overlay notification messages.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
	// key partitions messages; it is not serialized.
	key string
}

// Key is the partition key: the resource or diagram the event concerns.
func (e *EventEnvelope) Key() string { return e.key }

type diagramLoadedPayload struct {
	DiagramID string `json:"diagram_id"`
	Entities  int    `json:"entities"`
}

type hoveredChangedPayload struct {
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
}

// NewEnvelope wraps e.  Events carrying live object graphs are reduced to
// identifiers.
func NewEnvelope(e events.Event, source string, now time.Time) (*EventEnvelope, error) {
	payload, key := project(e)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encoding event payload").WithDetail(e.EventName())
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     e.EventName(),
		Source:        source,
		Timestamp:     now.UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
		key:           key,
	}, nil
}

func project(e events.Event) (interface{}, string) {
	switch ev := e.(type) {
	case events.DiagramLoaded:
		if ev.Context == nil {
			return diagramLoadedPayload{}, ""
		}
		return diagramLoadedPayload{DiagramID: ev.Context.DiagramID, Entities: len(ev.Context.Entities)}, ev.Context.DiagramID
	case events.HoveredChanged:
		var p hoveredChangedPayload
		if ev.Previous != nil {
			p.Previous = ev.Previous.Key()
		}
		if ev.Current != nil {
			p.Current = ev.Current.Key()
		}
		return p, ""
	case events.DiagramRequested:
		return ev, ev.DiagramID
	case events.GraphLoaded:
		return ev, ev.DiagramID
	case events.DiagramError:
		return ev, ev.DiagramID
	case events.ResourceChanged:
		return ev, ev.Resource
	case events.CatalogLoaded:
		return ev, ev.Resource
	case events.ResourceLoadError:
		return ev, ev.Resource
	case events.OverlayUpdated:
		return ev, ev.Resource
	case events.Collapsed:
		return ev, ev.Resource
	default:
		return e, ""
	}
}
