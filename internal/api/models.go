// ABOUTME: Model catalog listing with a short-lived cache
// ABOUTME: The catalog changes rarely; avoid refetching it on every builder view

package api

import (
	"context"

	"github.com/patrickmn/go-cache"
)

const modelCacheKey = "models"

// Models returns the catalog of chat models the backend can drive. Results
// are cached for the configured TTL.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	if cached, found := c.models.Get(modelCacheKey); found {
		return cached.([]Model), nil
	}

	var resp []wireModel
	if err := c.do(ctx, "GET", "/models", nil, &resp); err != nil {
		return nil, err
	}

	models := make([]Model, len(resp))
	for i, m := range resp {
		models[i] = m.toDomain()
	}

	c.models.Set(modelCacheKey, models, cache.DefaultExpiration)
	return models, nil
}
