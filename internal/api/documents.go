package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ListDocuments fetches all knowledge-base document records.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	var docs []DocumentRecord
	if err := c.doJSON(ctx, c.crud, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument streams a file into the knowledge base.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (*UploadResponse, error) {
	var resp UploadResponse
	err := c.doMultipart(ctx, "/documents/upload", func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, content)
		return err
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteDocument removes a document by its backend identifier.
func (c *Client) DeleteDocument(ctx context.Context, docID int64) error {
	path := fmt.Sprintf("/documents/%d", docID)
	return c.doJSON(ctx, c.crud, http.MethodDelete, path, nil, nil)
}
