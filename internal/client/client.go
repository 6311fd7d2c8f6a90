// Package client talks to the contactdesk HTTP API. It satisfies the same
// record-store contract as the server repository, so the views can run
// against either.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/upload"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:8080.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTP exposes the underlying client for direct storage transfers.
func (c *Client) HTTP() *http.Client { return c.http }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			FieldErrors map[string]string `json:"field_errors"`
		} `json:"details"`
	} `json:"error"`
}

func (c *Client) List(ctx context.Context, q contact.ListQuery) (*contact.ListResult, error) {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.SortKey != "" {
		v.Set("sort", q.SortKey)
	}
	if q.SortDir != "" {
		v.Set("dir", string(q.SortDir))
	}
	v.Set("page", strconv.Itoa(q.Page))
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}

	var out contact.ListResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/contacts?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*contact.Contact, error) {
	var out contact.Contact
	if err := c.do(ctx, http.MethodGet, "/api/v1/contacts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, req contact.CreateContactRequest) (*contact.Contact, error) {
	var out contact.Contact
	if err := c.do(ctx, http.MethodPost, "/api/v1/contacts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBatch(ctx context.Context, reqs []contact.CreateContactRequest) (*contact.BatchResult, error) {
	var out contact.BatchResult
	body := contact.BatchCreateRequest{Contacts: reqs}
	if err := c.do(ctx, http.MethodPost, "/api/v1/contacts/batch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, id string, patch contact.UpdateContactRequest) (*contact.Contact, error) {
	var out contact.Contact
	if err := c.do(ctx, http.MethodPatch, "/api/v1/contacts/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/contacts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AuthorizeUpload(ctx context.Context, fileName, fileType string) (*upload.AuthorizeResponse, error) {
	var out upload.AuthorizeResponse
	body := upload.AuthorizeRequest{FileName: fileName, FileType: fileType}
	if err := c.do(ctx, http.MethodPost, "/api/v1/uploads/authorize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.FieldErrors = env.Error.Details.FieldErrors
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
