package transport

import (
	"context"
	"net/http"
	"net/url"
)

// CallOption adjusts a single request built by the verb helpers.
type CallOption func(*Request)

// WithQuery adds query parameters.
func WithQuery(query url.Values) CallOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = url.Values{}
		}
		for key, values := range query {
			for _, value := range values {
				r.Query.Add(key, value)
			}
		}
	}
}

// WithParam adds one query parameter; empty values are skipped.
func WithParam(key, value string) CallOption {
	return func(r *Request) {
		if value == "" {
			return
		}
		if r.Query == nil {
			r.Query = url.Values{}
		}
		r.Query.Add(key, value)
	}
}

// WithHeader sets a request header, replacing client defaults of the same name.
func WithHeader(key, value string) CallOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

// Get issues a GET and decodes the body into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, out, opts)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, in, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, in, out, opts)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, in, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, in, out, opts)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, in, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodPatch, path, in, out, opts)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, out, opts)
}

// GetString issues a GET and returns the body as text (exports, markdown).
func (c *Client) GetString(ctx context.Context, path string, opts ...CallOption) (string, error) {
	resp, err := c.call(ctx, http.MethodGet, path, nil, nil, opts)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, opts []CallOption) (*Response, error) {
	req := Request{Method: method, Path: path, Body: in}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := resp.Decode(out); err != nil {
		return resp, err
	}
	return resp, nil
}

// DoJSON performs a request and decodes the response into a new T.
func DoJSON[T any](ctx context.Context, c *Client, method, path string, in any, opts ...CallOption) (T, error) {
	var out T
	_, err := c.call(ctx, method, path, in, &out, opts)
	return out, err
}
