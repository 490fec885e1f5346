package contentservice

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// StaticResource is the curated resource served without PSICQUIC.
const StaticResource = "static"

// Resource is one interaction resource the server can query.
type Resource struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ListResources returns the PSICQUIC resources known to the server, with the
// static resource first.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	body, err := c.get(ctx, basePath+"/psicquic/resources")
	if err != nil {
		return nil, err
	}
	var list []Resource
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMalformedRecord, "resource list is not valid JSON")
	}
	out := make([]Resource, 0, len(list)+1)
	out = append(out, Resource{Name: StaticResource, Active: true})
	for _, r := range list {
		if r.Name != "" && r.Name != StaticResource {
			out = append(out, r)
		}
	}
	return out, nil
}
