package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// VerifyText checks whether a piece of text matches an anchored generation
// record.
func (c *Client) VerifyText(ctx context.Context, text string) (*VerifyResult, error) {
	var result VerifyResult
	err := c.doMultipart(ctx, "/verify/check", func(w *multipart.Writer) error {
		if err := w.WriteField("type", ModeText); err != nil {
			return err
		}
		return w.WriteField("text", text)
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyFile checks whether an image file carries a known watermark or
// matches an anchored record.
func (c *Client) VerifyFile(ctx context.Context, filename string, content io.Reader) (*VerifyResult, error) {
	var result VerifyResult
	err := c.doMultipart(ctx, "/verify/check", func(w *multipart.Writer) error {
		if err := w.WriteField("type", ModeImage); err != nil {
			return err
		}
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, content)
		return err
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LookupTx fetches the anchored record behind a transaction hash.
func (c *Client) LookupTx(ctx context.Context, txHash string) (*TxRecord, error) {
	var record TxRecord
	path := fmt.Sprintf("/verify/tx/%s", url.PathEscape(txHash))
	if err := c.doJSON(ctx, c.crud, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
