package api

import (
	"context"
	"net/http"
	"net/url"
)

// ListDocuments fetches the tenant's full document collection.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.gw.Do(ctx, http.MethodGet, "/documents", nil, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument fetches a single document by id.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.gw.Do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadDocument ingests a file. The returned document starts in UPLOADED
// state; the server advances it through the processing pipeline, which the
// caller observes by polling ListDocuments.
func (c *Client) UploadDocument(ctx context.Context, fileName string, data []byte, onProgress ProgressFunc) (*Document, error) {
	return c.gw.Upload(ctx, fileName, data, onProgress)
}

// DeleteDocument removes a document and all of its chunks and embeddings.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.gw.Do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil, nil)
}
