package apiclient

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
	"sync"
	"time"

	"pricebot/internal/domain"

	"go.uber.org/zap"
)

var (
	// ErrUnauthorized is returned when the backend rejects the credentials
	// and they could not be refreshed
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for a 404 from the backend
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response other than 401 and 404
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the product backend REST API with bearer authentication.
// A 401 triggers one token refresh followed by one retry of the request.
type Client struct {
	http   *http.Client
	server string
	tokens TokenStore
	logger *zap.Logger

	refreshMu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for server
func New(server string, tokens TokenStore, opts ...Option) (*Client, error) {
	normalized, err := normalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	c := &Client{
		http:   &http.Client{Timeout: 15 * time.Second},
		server: normalized,
		tokens: tokens,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// normalizeServerURL ensures a scheme and strips trailing slashes
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL")
	}
	return strings.TrimRight(fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), "/"), nil
}

// ListPage returns one page of products
func (c *Client) ListPage(ctx context.Context, skip, limit int) ([]domain.Product, error) {
	path := fmt.Sprintf("%s?skip=%d&limit=%d", endpointProducts, skip, limit)

	var wire []productDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	out := make([]domain.Product, 0, len(wire))
	for _, p := range wire {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// ListProducts pages through the whole catalog. It stops at the first
// short page, or at a page that brings no new ids, which guards against a
// backend that ignores skip.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	all := make([]domain.Product, 0, listPageSize)
	seen := make(map[string]bool)

	for skip := 0; ; skip += listPageSize {
		page, err := c.ListPage(ctx, skip, listPageSize)
		if err != nil {
			return nil, err
		}

		fresh := 0
		for _, p := range page {
			if !seen[p.ID] {
				seen[p.ID] = true
				all = append(all, p)
				fresh++
			}
		}
		if len(page) < listPageSize || fresh == 0 {
			return all, nil
		}
	}
}

// GetProduct fetches a single product
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var wire productDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(endpointProductsByID, url.PathEscape(id)), nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	p := wire.toDomain()
	return &p, nil
}

// CreateProduct adds a product to the catalog
func (c *Client) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	body := createProductDTO{
		Name:        p.Name,
		Description: p.Description,
		Quantity:    p.Quantity,
		Price:       p.Price,
		IsActive:    p.IsActive,
		ImageURL:    p.ImageURL,
	}

	var wire productDTO
	if err := c.do(ctx, http.MethodPost, endpointProducts, body, &wire); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	created := wire.toDomain()
	return &created, nil
}

// UpdateProduct sends a partial update; unset fields are left unchanged
func (c *Client) UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	var wire productDTO
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf(endpointProductsByID, url.PathEscape(id)), upd, &wire); err != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	p := wire.toDomain()
	return &p, nil
}

// DeleteProduct removes a product
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf(endpointProductsByID, url.PathEscape(id)), nil, nil); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}

// do sends a JSON request, refreshing the tokens once on 401
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	tokens, err := c.tokens.Load()
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, body, tokens.AccessToken)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		fresh, err := c.refresh(ctx, tokens.AccessToken)
		if err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, body, fresh.AccessToken); err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return ErrUnauthorized
		}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return resp, nil
}

// refresh exchanges the refresh token for a new pair. If another request
// already refreshed since staleAccess was read, the stored pair is reused.
func (c *Client) refresh(ctx context.Context, staleAccess string) (Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.tokens.Load()
	if err != nil {
		return Tokens{}, err
	}
	if current.AccessToken != "" && current.AccessToken != staleAccess {
		return current, nil
	}
	if current.RefreshToken == "" {
		return Tokens{}, ErrUnauthorized
	}

	body, err := json.Marshal(map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		return Tokens{}, fmt.Errorf("failed to marshal refresh request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, endpointRefresh, body, "")
	if err != nil {
		return Tokens{}, err
	}
	defer resp.Body.Close()

	var fresh Tokens
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Token refresh rejected", zap.Int("status", resp.StatusCode))
		if err := c.tokens.Clear(); err != nil {
			c.logger.Error("Failed to clear credentials", zap.Error(err))
		}
		return Tokens{}, ErrUnauthorized
	}
	if err := json.NewDecoder(resp.Body).Decode(&fresh); err != nil {
		return Tokens{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if err := c.tokens.Save(fresh); err != nil {
		return Tokens{}, err
	}

	c.logger.Info("Refreshed backend credentials")
	return fresh, nil
}

func decodeResponse(resp *http.Response, out any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var body struct {
			Detail any `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if body.Detail != nil {
			apiErr.Detail = fmt.Sprint(body.Detail)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
