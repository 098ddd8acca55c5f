// Package citelinker implements the HTTP client for the local reference
// manager's citation-linker API.
package citelinker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"citetrack/internal/services"
)

const (
	defaultBaseURL     = "http://localhost:23119/citationlinker"
	defaultHTTPTimeout = 30 * time.Second

	stageName = "citelinker"
)

// Client talks to the citation-linker endpoints exposed by the local
// reference manager.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithAPIKey sets the bearer token sent with each request. The local
// endpoint usually runs unauthenticated; remote deployments may not.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewClient constructs a citation-linker API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

var _ services.ReferenceService = (*Client)(nil)

type itemPayload struct {
	Key      string            `json:"key"`
	Title    string            `json:"title"`
	ItemType string            `json:"itemType"`
	Fields   map[string]string `json:"fields"`
	Error    string            `json:"error"`
}

type validationPayload struct {
	Complete      bool     `json:"complete"`
	MissingFields []string `json:"missingFields"`
	Error         string   `json:"error"`
}

// AnalyzeURL asks the linker to resolve a URL into an item.
func (c *Client) AnalyzeURL(ctx context.Context, rawURL string) (*services.ItemSnapshot, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "analyzeurl", "url required", nil)
	}
	var payload itemPayload
	if err := c.post(ctx, "analyzeurl", map[string]string{"url": rawURL}, &payload); err != nil {
		return nil, err
	}
	return snapshotFromPayload("analyzeurl", payload)
}

// LookupURL returns the item the linker already holds for a URL. A linker
// that knows nothing about the URL answers 404, surfaced as ErrNotFound.
func (c *Client) LookupURL(ctx context.Context, rawURL string) (*services.ItemSnapshot, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "lookupurl", "url required", nil)
	}
	var payload itemPayload
	if err := c.post(ctx, "lookupurl", map[string]string{"url": rawURL}, &payload); err != nil {
		return nil, err
	}
	return snapshotFromPayload("lookupurl", payload)
}

// CreateItem stores an item built from an extracted metadata draft.
func (c *Client) CreateItem(ctx context.Context, draft *services.MetadataDraft) (*services.ItemSnapshot, error) {
	if draft == nil || strings.TrimSpace(draft.Title) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "createitem", "draft with title required", nil)
	}
	var payload itemPayload
	if err := c.post(ctx, "createitem", draft, &payload); err != nil {
		return nil, err
	}
	return snapshotFromPayload("createitem", payload)
}

// GetItem fetches a stored item by key.
func (c *Client) GetItem(ctx context.Context, key string) (*services.ItemSnapshot, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "getitem", "item key required", nil)
	}
	var payload itemPayload
	if err := c.post(ctx, "getitem", map[string]string{"key": key}, &payload); err != nil {
		return nil, err
	}
	return snapshotFromPayload("getitem", payload)
}

// ValidateCitation classifies the completeness of a stored item.
func (c *Client) ValidateCitation(ctx context.Context, key string) (*services.Validation, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "validatecitation", "item key required", nil)
	}
	var payload validationPayload
	if err := c.post(ctx, "validatecitation", map[string]string{"key": key}, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "validatecitation", payload.Error, nil)
	}
	return &services.Validation{
		Complete:      payload.Complete,
		MissingFields: payload.MissingFields,
	}, nil
}

func (c *Client) post(ctx context.Context, operation string, request any, response any) error {
	endpoint, err := url.JoinPath(c.baseURL, operation)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, operation, "build url", err)
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, operation, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and timeouts are all transient as far as
		// retry policy is concerned.
		return services.Wrap(services.ErrTransient, stageName, operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, operation, "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return services.Wrap(markerForStatus(resp.StatusCode), stageName, operation, detail, nil)
	}
	if err := json.Unmarshal(body, response); err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, operation, "decode response", err)
	}
	return nil
}

// markerForStatus maps an HTTP status to the sentinel used for failure
// classification.
func markerForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return services.ErrAuth
	case status == http.StatusNotFound:
		return services.ErrNotFound
	case status == http.StatusPaymentRequired, status == http.StatusInsufficientStorage:
		return services.ErrQuota
	case status >= 400 && status < 500:
		return services.ErrInvalidInput
	default:
		return services.ErrTransient
	}
}

func snapshotFromPayload(operation string, payload itemPayload) (*services.ItemSnapshot, error) {
	if payload.Error != "" {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, operation, payload.Error, nil)
	}
	if strings.TrimSpace(payload.Key) == "" {
		return nil, services.Wrap(services.ErrNotFound, stageName, operation, "response carried no item key", nil)
	}
	return &services.ItemSnapshot{
		Key:      payload.Key,
		Title:    payload.Title,
		ItemType: payload.ItemType,
		Fields:   payload.Fields,
	}, nil
}
