package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	errMissingBaseURL     = errors.New("docstore: base url required")
	errMissingTokenSource = errors.New("docstore: token source required")
)

// TokenSource supplies the bearer session token attached to every request.
type TokenSource interface {
	SessionToken() (string, error)
}

// StaticToken is a TokenSource returning a fixed token string.
type StaticToken string

// SessionToken returns the wrapped token.
func (t StaticToken) SessionToken() (string, error) {
	return string(t), nil
}

// HTTPClientConfig configures the document store HTTP client.
type HTTPClientConfig struct {
	BaseURL     string
	TokenSource TokenSource
	HTTPClient  *http.Client
}

// HTTPClient talks to the collaboration backend's document endpoints.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewHTTPClient constructs a document store client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errMissingBaseURL
	}
	if cfg.TokenSource == nil {
		return nil, errMissingTokenSource
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: base, tokens: cfg.TokenSource, client: client}, nil
}

// Create persists a brand-new document and returns the stored record.
func (c *HTTPClient) Create(ctx context.Context, req CreateRequest) (Record, error) {
	var record Record
	err := c.do(ctx, http.MethodPost, "/documents", req, &record)
	return record, err
}

// Get fetches a document record by id.
func (c *HTTPClient) Get(ctx context.Context, id string) (Record, error) {
	documentID, err := NewDocumentID(id)
	if err != nil {
		return Record{}, err
	}
	var record Record
	err = c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID.String()), nil, &record)
	return record, err
}

// Update writes a document record, honoring the request's version and force
// semantics.
func (c *HTTPClient) Update(ctx context.Context, req UpdateRequest) (Record, error) {
	documentID, err := NewDocumentID(req.ID)
	if err != nil {
		return Record{}, err
	}
	var record Record
	err = c.do(ctx, http.MethodPut, "/documents/"+url.PathEscape(documentID.String()), req, &record)
	return record, err
}

// List returns the caller's documents ordered by recency.
func (c *HTTPClient) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := c.do(ctx, http.MethodGet, "/documents", nil, &records)
	return records, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("docstore: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("docstore: build request: %w", err)
	}
	token, err := c.tokens.SessionToken()
	if err != nil {
		return fmt.Errorf("docstore: session token: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("docstore: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if err := errorForStatus(response.StatusCode); err != nil {
		io.Copy(io.Discard, response.Body) //nolint:errcheck
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("docstore: decode response: %w", err)
	}
	return nil
}

func errorForStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return ErrPermissionDenied
	case status == http.StatusConflict:
		return ErrVersionConflict
	case status == http.StatusGone:
		return ErrDocumentDeleted
	default:
		return fmt.Errorf("docstore: unexpected status %d", status)
	}
}
