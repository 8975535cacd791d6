package transport

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// FilePart is one file field of a multipart upload.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

// Upload posts a multipart/form-data body built from fields and files.
// The body is buffered so retries can replay it.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []FilePart, out any, opts ...CallOption) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	for _, file := range files {
		field := file.Field
		if field == "" {
			field = "file"
		}
		part, err := writer.CreateFormFile(field, file.Filename)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", file.Filename, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, fmt.Errorf("write form file %s: %w", file.Filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req := Request{
		Method:      http.MethodPost,
		Path:        path,
		RawBody:     buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return resp, err
	}
	return resp, resp.Decode(out)
}
