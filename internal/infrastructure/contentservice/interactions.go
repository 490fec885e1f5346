package contentservice

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

type wirePayload struct {
	Resource string            `json:"resource"`
	Entities []json.RawMessage `json:"entities"`
}

type wireEntity struct {
	Acc         string            `json:"acc"`
	Count       int               `json:"count"`
	Interactors []json.RawMessage `json:"interactors"`
}

type wireInteractor struct {
	ID    int64   `json:"id"`
	Acc   string  `json:"acc"`
	Alias string  `json:"alias"`
	Score float64 `json:"score"`
}

// FetchInteractions returns resource's interactions for the entities of
// diagramID.  Entries that fail to decode are skipped.
func (c *Client) FetchInteractions(ctx context.Context, resource, diagramID string) (*interactor.Payload, error) {
	if resource == "" || diagramID == "" {
		return nil, errors.InvalidParam("resource and diagram id are required")
	}
	path := basePath + "/" + url.PathEscape(resource) + "/pathway/" + url.PathEscape(diagramID)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	payload, skipped, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if payload.Resource == "" {
		payload.Resource = resource
	}
	payload.DiagramID = diagramID
	if skipped > 0 {
		c.logger.Debug("skipped undecodable entries",
			logging.String(logging.FieldResource, resource),
			logging.String(logging.FieldDiagram, diagramID),
			logging.Int("skipped", skipped))
	}
	return payload, nil
}

// DecodePayload decodes a ContentService interactor response entry by entry
// and returns the number of skipped entries.  Only an undecodable envelope
// is an error.
func DecodePayload(body []byte) (*interactor.Payload, int, error) {
	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeMalformedRecord, "interactor payload is not valid JSON")
	}

	out := &interactor.Payload{Resource: wire.Resource, Entities: make([]interactor.EntityInteractions, 0, len(wire.Entities))}
	skipped := 0
	for _, rawEntity := range wire.Entities {
		var we wireEntity
		if err := json.Unmarshal(rawEntity, &we); err != nil {
			skipped++
			continue
		}
		entity := interactor.EntityInteractions{
			Accession:    we.Acc,
			Count:        we.Count,
			Interactions: make([]interactor.RawInteraction, 0, len(we.Interactors)),
		}
		for _, rawRec := range we.Interactors {
			var wi wireInteractor
			if err := json.Unmarshal(rawRec, &wi); err != nil {
				skipped++
				continue
			}
			entity.Interactions = append(entity.Interactions, interactor.RawInteraction{
				ID:               wi.ID,
				SourceAccession:  we.Acc,
				PartnerAccession: wi.Acc,
				PartnerAlias:     wi.Alias,
				Score:            wi.Score,
			})
		}
		out.Entities = append(out.Entities, entity)
	}
	return out, skipped, nil
}
