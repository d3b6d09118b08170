package api

import (
	"context"
	"net/http"
)

// Health fetches the unauthenticated platform health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.gw.Do(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
