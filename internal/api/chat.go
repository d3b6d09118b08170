package api

import (
	"context"
	"net/http"
	"net/url"
)

// SendChat submits a question against a set of documents. When the request
// carries no conversation id the server creates a conversation and returns
// its id. Higher-level sequencing (optimistic append, rollback) lives in the
// conversation package.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListConversations fetches the caller's conversation summaries.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var convs []ConversationSummary
	if err := c.gw.Do(ctx, http.MethodGet, "/chat/conversations", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversation fetches a full conversation including its message log.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.gw.Do(ctx, http.MethodGet, "/chat/conversations/"+url.PathEscape(id), nil, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.gw.Do(ctx, http.MethodDelete, "/chat/conversations/"+url.PathEscape(id), nil, nil, nil)
}
