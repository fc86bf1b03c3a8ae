package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pricebot/internal/domain"

	"go.uber.org/zap"
)

var errBackend = errors.New("backend unavailable")

type fakeDirectory struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
	calls    int
}

func (d *fakeDirectory) ListProducts(ctx context.Context) ([]domain.Product, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make([]domain.Product, len(d.products))
	copy(out, d.products)
	return out, nil
}

type updateCall struct {
	id  string
	upd domain.ProductUpdate
}

type fakeMutator struct {
	mu        sync.Mutex
	deletes   []string
	updates   []updateCall
	deleteErr error
	updateErr error
	panicOn   string
}

func (m *fakeMutator) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn == "delete" {
		panic("mutator exploded")
	}
	m.deletes = append(m.deletes, id)
	return m.deleteErr
}

func (m *fakeMutator) UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, updateCall{id: id, upd: upd})
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &domain.Product{ID: id, Price: *upd.Price}, nil
}

func (m *fakeMutator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deletes) + len(m.updates)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note domain.Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

func fixedClock() func() time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return base }
}

type harness struct {
	dir      *fakeDirectory
	mut      *fakeMutator
	notifier *recordingNotifier
	resolver *Resolver
	conv     *Conversation
}

func newHarness(products ...domain.Product) *harness {
	h := &harness{
		dir:      &fakeDirectory{products: products},
		mut:      &fakeMutator{},
		notifier: &recordingNotifier{},
	}
	h.resolver = NewResolver(h.dir, h.mut, h.notifier, zap.NewNop(), WithClock(fixedClock()))
	h.conv = NewConversation("user-1", time.Now())
	return h
}

func (h *harness) send(t *testing.T, text string) *TurnResult {
	t.Helper()
	res, err := h.resolver.Turn(context.Background(), h.conv, text)
	if err != nil {
		t.Fatalf("Turn(%q) returned error: %v", text, err)
	}
	return res
}

func lastBotText(res *TurnResult) string {
	for i := len(res.Messages) - 1; i >= 0; i-- {
		if res.Messages[i].Sender == domain.SenderBot {
			return res.Messages[i].Text
		}
	}
	return ""
}

func product(id, name string, price float64) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     name,
		Price:    price,
		Quantity: 10,
		IsActive: true,
	}
}

func withRange(p domain.Product, min, max float64) domain.Product {
	p.MinPrice = &min
	p.MaxPrice = &max
	return p
}
