package client

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
)

// Files implements backend.Files by uploading to /v1/uploads. The server
// picks the storage path; p only names the file.
type Files struct{ c *Client }

func (c *Client) Files() *Files { return &Files{c: c} }

var _ backend.Files = (*Files)(nil)

func (f *Files) UploadFile(ctx context.Context, data []byte, p string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path.Base(p))
	if err != nil {
		return "", apperr.Transient(err)
	}
	if _, err := part.Write(data); err != nil {
		return "", apperr.Transient(err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.Transient(err)
	}
	body := buf.Bytes()
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.c.BaseURL+"/v1/uploads", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := f.c.send(ctx, build, &out, true); err != nil {
		return "", err
	}
	return out.URL, nil
}
