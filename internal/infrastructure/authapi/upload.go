package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// UploadRecall streams the document to POST /v1 as multipart form data with
// the fields "recall" and "uid". A transport-level failure or a body with
// ok=false is reported as domain.ErrUploadFailed carrying the server message;
// the remaining body fields are returned as the extraction either way.
func (c *Client) UploadRecall(ctx context.Context, ts oauth2.TokenSource, doc ports.DocumentUpload) (*domain.UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, doc))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1", pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	hc := c.bearer(ctx, ts)
	// Uploads are bounded by ctx instead of the client timeout.
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		_ = pr.Close()
		return nil, unwrapTransportError(http.MethodPost, "/v1", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, domain.ErrUnauthenticated
	case http.StatusForbidden:
		return nil, domain.ErrForbidden
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	return decodeUploadResult(resp.StatusCode, raw)
}

func writeUploadForm(mw *multipart.Writer, doc ports.DocumentUpload) error {
	part, err := mw.CreateFormFile("recall", doc.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, doc.Content); err != nil {
		return err
	}
	if err := mw.WriteField("uid", doc.UID); err != nil {
		return err
	}
	return mw.Close()
}

func decodeUploadResult(status int, raw []byte) (*domain.UploadResult, error) {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil && status < 300 {
			return nil, fmt.Errorf("decode upload response: %w", err)
		}
	}

	res := &domain.UploadResult{}
	if ok, isBool := fields["ok"].(bool); isBool {
		res.OK = ok
	}
	if msg, isString := fields["error"].(string); isString {
		res.Error = msg
	}
	delete(fields, "ok")
	delete(fields, "error")
	if len(fields) > 0 {
		res.Extraction = fields
	}

	if status >= 300 || !res.OK {
		msg := res.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return res, fmt.Errorf("%w: %s", domain.ErrUploadFailed, msg)
	}
	return res, nil
}
