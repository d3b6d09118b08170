package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// AuditLogs fetches a page of the tenant audit trail, optionally filtered by
// action.
func (c *Client) AuditLogs(ctx context.Context, page, size int, action string) (*Page[AuditEntry], error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	if action != "" {
		params.Set("action", action)
	}
	var out Page[AuditEntry]
	if err := c.gw.Do(ctx, http.MethodGet, "/audit?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditLogsByUser fetches a page of audit entries for a single user.
func (c *Client) AuditLogsByUser(ctx context.Context, userID string, page, size int) (*Page[AuditEntry], error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	var out Page[AuditEntry]
	if err := c.gw.Do(ctx, http.MethodGet, "/audit/user/"+url.PathEscape(userID)+"?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
