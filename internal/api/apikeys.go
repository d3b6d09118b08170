package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// ListAPIKeys fetches the tenant's key records. Only prefixes are returned;
// raw secrets are never retrievable after creation.
func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := c.gw.Do(ctx, http.MethodGet, "/api-keys", nil, nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAPIKey mints a new key. The response is the only time the raw secret
// is available; it is not persisted client-side.
func (c *Client) CreateAPIKey(ctx context.Context, name string, expiresAt *time.Time) (*CreatedAPIKey, error) {
	params := url.Values{}
	params.Set("name", name)
	if expiresAt != nil {
		params.Set("expiresAt", expiresAt.Format(time.RFC3339))
	}
	var created CreatedAPIKey
	if err := c.gw.Do(ctx, http.MethodPost, "/api-keys?"+params.Encode(), nil, nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RevokeAPIKey deletes a key by id.
func (c *Client) RevokeAPIKey(ctx context.Context, id string) error {
	return c.gw.Do(ctx, http.MethodDelete, "/api-keys/"+url.PathEscape(id), nil, nil, nil)
}
