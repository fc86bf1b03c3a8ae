package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"pricebot/internal/domain"
)

// fakeBackend serves the product API and accepts exactly one access token
type fakeBackend struct {
	validAccess  string
	validRefresh string
	issued       Tokens
	refreshes    atomic.Int32
	lastBody     atomic.Value
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshes.Add(1)
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != b.validRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.validAccess = b.issued.AccessToken
		json.NewEncoder(w).Encode(b.issued)
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+b.validAccess {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("GET /products/", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("skip") != "0" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected paging query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `[
			{"id": 1, "name": "Widget", "price": 9.5, "quantity": 3, "is_active": true, "created_at": "2024-05-01T12:00:00.123456"},
			{"id": 2, "name": "Gadget", "price": 20, "quantity": 0, "is_active": false, "min_price": 15, "max_price": 25, "created_at": "2024-05-01T12:00:00Z"}
		]`)
	}))

	mux.HandleFunc("PUT /products/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		b.lastBody.Store(string(raw))
		io.WriteString(w, `{"id": `+r.PathValue("id")+`, "name": "Widget", "price": 12.5}`)
	}))

	mux.HandleFunc("DELETE /products/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "404":
			w.WriteHeader(http.StatusNotFound)
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail": "database is down"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	return mux
}

func newTestClient(t *testing.T, b *fakeBackend, tokens TokenStore) *Client {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, tokens)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_ListProductsDecodesIntegerIDs(t *testing.T) {
	b := &fakeBackend{validAccess: "good"}
	c := newTestClient(t, b, NewMemoryTokenStore(Tokens{AccessToken: "good"}))

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
	if products[0].ID != "1" || products[1].ID != "2" {
		t.Errorf("ids = %q, %q", products[0].ID, products[1].ID)
	}
	if products[0].CreatedAt.IsZero() {
		t.Error("zone-less created_at was not parsed")
	}
	if !products[1].HasRecommendedRange() || *products[1].MinPrice != 15 {
		t.Errorf("recommended range not decoded: %+v", products[1])
	}
}

func TestClient_RefreshesOnceAndRetries(t *testing.T) {
	b := &fakeBackend{
		validAccess:  "fresh",
		validRefresh: "refresh-1",
		issued:       Tokens{AccessToken: "fresh", RefreshToken: "refresh-2"},
	}
	store := NewMemoryTokenStore(Tokens{AccessToken: "expired", RefreshToken: "refresh-1"})
	c := newTestClient(t, b, store)

	if _, err := c.ListProducts(context.Background()); err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if b.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", b.refreshes.Load())
	}
	saved, _ := store.Load()
	if saved != b.issued {
		t.Errorf("stored tokens = %+v, want %+v", saved, b.issued)
	}
}

func TestClient_RejectedRefreshClearsCredentials(t *testing.T) {
	b := &fakeBackend{validAccess: "other", validRefresh: "valid"}
	store := NewMemoryTokenStore(Tokens{AccessToken: "expired", RefreshToken: "revoked"})
	c := newTestClient(t, b, store)

	_, err := c.ListProducts(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	saved, _ := store.Load()
	if saved != (Tokens{}) {
		t.Errorf("credentials not cleared: %+v", saved)
	}
}

func TestClient_NoRefreshTokenIsUnauthorized(t *testing.T) {
	b := &fakeBackend{validAccess: "other"}
	c := newTestClient(t, b, NewMemoryTokenStore(Tokens{AccessToken: "expired"}))

	err := c.DeleteProduct(context.Background(), "1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if b.refreshes.Load() != 0 {
		t.Errorf("refresh attempted without a refresh token")
	}
}

func TestClient_UpdateSendsOnlySetFields(t *testing.T) {
	b := &fakeBackend{validAccess: "good"}
	c := newTestClient(t, b, NewMemoryTokenStore(Tokens{AccessToken: "good"}))

	price := 12.5
	got, err := c.UpdateProduct(context.Background(), "7", domain.ProductUpdate{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	if got.ID != "7" || got.Price != 12.5 {
		t.Errorf("updated product = %+v", got)
	}
	if body := b.lastBody.Load(); body != `{"price":12.5}` {
		t.Errorf("request body = %v", body)
	}
}

func TestClient_DeleteErrors(t *testing.T) {
	b := &fakeBackend{validAccess: "good"}
	c := newTestClient(t, b, NewMemoryTokenStore(Tokens{AccessToken: "good"}))
	ctx := context.Background()

	if err := c.DeleteProduct(ctx, "1"); err != nil {
		t.Errorf("DeleteProduct(1) error = %v", err)
	}
	if err := c.DeleteProduct(ctx, "404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteProduct(404) error = %v, want ErrNotFound", err)
	}

	err := c.DeleteProduct(ctx, "500")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("DeleteProduct(500) error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Detail != "database is down" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:8000", "http://localhost:8000", false},
		{"https://api.example.com/", "https://api.example.com", false},
		{"http://host/v1/", "http://host/v1", false},
		{"http://", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeServerURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeServerURL(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileTokenStore(path)

	empty, err := store.Load()
	if err != nil || empty != (Tokens{}) {
		t.Fatalf("Load() on missing file = %+v, %v", empty, err)
	}

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := NewFileTokenStore(path).Load()
	if err != nil || got != want {
		t.Errorf("Load() after save = %+v, %v", got, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing file error = %v", err)
	}
}

// catalogServer serves count products with integer ids, honouring skip and
// limit unless ignoreSkip is set
func catalogServer(t *testing.T, count int, ignoreSkip bool, requests *atomic.Int32) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if ignoreSkip {
			skip = 0
		}

		page := []map[string]interface{}{}
		for i := skip; i < count && i < skip+limit; i++ {
			page = append(page, map[string]interface{}{"id": i + 1, "name": fmt.Sprintf("Item %d", i+1), "price": 1})
		}
		json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, NewMemoryTokenStore(Tokens{AccessToken: "t"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_ListProductsPagesThroughCatalog(t *testing.T) {
	tests := []struct {
		count    int
		requests int32
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{250, 3},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.count), func(t *testing.T) {
			var requests atomic.Int32
			c := catalogServer(t, tt.count, false, &requests)

			products, err := c.ListProducts(context.Background())
			if err != nil {
				t.Fatalf("ListProducts() error = %v", err)
			}
			if len(products) != tt.count {
				t.Errorf("got %d products, want %d", len(products), tt.count)
			}
			if requests.Load() != tt.requests {
				t.Errorf("made %d requests, want %d", requests.Load(), tt.requests)
			}
		})
	}
}

func TestClient_ListProductsStopsWhenSkipIsIgnored(t *testing.T) {
	var requests atomic.Int32
	c := catalogServer(t, 300, true, &requests)

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(products) != 100 || requests.Load() != 2 {
		t.Errorf("got %d products in %d requests, want 100 in 2", len(products), requests.Load())
	}
}
