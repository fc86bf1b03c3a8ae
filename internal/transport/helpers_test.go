package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"pricebot/internal/chat"
	"pricebot/internal/domain"
	"pricebot/internal/middleware"
	"pricebot/internal/repository"
	"pricebot/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// memoryRepository is an in-memory ProductRepository
type memoryRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{products: make(map[string]domain.Product)}
}

func (m *memoryRepository) Create(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m *memoryRepository) Patch(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	upd.Apply(&p)
	m.products[id] = p
	return &p, nil
}

func (m *memoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memoryRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

// sorted returns the products whose name or description contains q,
// ordered by name
func (m *memoryRepository) sorted(q string) []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = strings.ToLower(q)
	all := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func paginate(all []domain.Product, skip, limit int) ([]domain.Product, int, error) {
	start := min(skip, len(all))
	end := min(start+limit, len(all))
	return all[start:end], len(all), nil
}

func (m *memoryRepository) List(ctx context.Context, skip, limit int, sortBy string, order repository.SortOrder) ([]domain.Product, int, error) {
	return paginate(m.sorted(""), skip, limit)
}

func (m *memoryRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	return m.sorted(""), nil
}

func (m *memoryRepository) Search(ctx context.Context, q string, skip, limit int) ([]domain.Product, int, error) {
	return paginate(m.sorted(strings.TrimSpace(q)), skip, limit)
}

type testAPI struct {
	router   chi.Router
	products service.ProductService
	tokens   *service.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	products := service.NewProductService(newMemoryRepository(), logger)
	resolver := chat.NewResolver(products, products, nil, logger)
	chats := service.NewChatService(chat.NewStore(), resolver, nil, logger)

	router := chi.NewRouter()
	auth := middleware.AuthMiddleware(testSecret, logger)
	NewChatHandler(chats, logger).RegisterRoutes(router, auth, nil)
	NewProductHandler(products, logger).RegisterRoutes(router, auth)

	return &testAPI{
		router:   router,
		products: products,
		tokens:   service.NewTokenService(testSecret, 0),
	}
}

// do sends a request as userID with role; an empty userID sends no token
func (a *testAPI) do(t *testing.T, method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := a.tokens.Issue(userID, role)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
