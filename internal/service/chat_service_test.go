package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pricebot/internal/chat"
	"pricebot/internal/domain"

	"go.uber.org/zap"
)

type fakeHistory struct {
	notes    []domain.Notification
	watchers map[string][]chan domain.Notification
}

func (h *fakeHistory) Watch(ctx context.Context, sessionID string) (<-chan domain.Notification, error) {
	if h.watchers == nil {
		h.watchers = make(map[string][]chan domain.Notification)
	}
	ch := make(chan domain.Notification, 8)
	h.watchers[sessionID] = append(h.watchers[sessionID], ch)
	return ch, nil
}

func (h *fakeHistory) Recent(ctx context.Context, sessionID string, limit int64) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range h.notes {
		if n.SessionID == sessionID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (h *fakeHistory) Notify(ctx context.Context, n domain.Notification) {
	h.notes = append(h.notes, n)
	for _, ch := range h.watchers[n.SessionID] {
		ch <- n
	}
}

func newChatFixture(t *testing.T) (ChatService, ProductService, *fakeHistory) {
	t.Helper()
	products := NewProductService(newMockProductRepository(), zap.NewNop())
	history := &fakeHistory{}
	resolver := chat.NewResolver(products, products, history, zap.NewNop())
	return NewChatService(chat.NewStore(), resolver, history, zap.NewNop()), products, history
}

func TestChatService_DeleteFlowReachesCatalog(t *testing.T) {
	svc, products, history := newChatFixture(t)
	ctx := context.Background()

	lamp, err := products.CreateProduct(ctx, CreateProductInput{Name: "Desk Lamp", Price: 25})
	if err != nil {
		t.Fatalf("CreateProduct error = %v", err)
	}

	session := svc.CreateSession(ctx, "alice")
	if _, err := svc.SendMessage(ctx, "alice", session.ID, "delete desk lamp"); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	res, err := svc.SendMessage(ctx, "alice", session.ID, "yes")
	if err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	if res.Pending != nil {
		t.Errorf("pending action should be cleared, got %+v", res.Pending)
	}

	if _, err := products.GetProduct(ctx, lamp.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("product still present after confirmed delete: %v", err)
	}

	notes, err := svc.Notifications(ctx, "alice", session.ID, 10)
	if err != nil {
		t.Fatalf("Notifications error = %v", err)
	}
	if len(notes) != 1 || notes[0].Level != domain.NotificationSuccess {
		t.Errorf("notifications = %+v", notes)
	}
	if len(history.notes) != 1 {
		t.Errorf("history saw %d notifications, want 1", len(history.notes))
	}
}

func TestChatService_PriceChangeIsApplied(t *testing.T) {
	svc, products, _ := newChatFixture(t)
	ctx := context.Background()

	lamp, _ := products.CreateProduct(ctx, CreateProductInput{Name: "Lamp", Price: 25})
	session := svc.CreateSession(ctx, "alice")

	res, err := svc.SendMessage(ctx, "alice", session.ID, "set the price of lamp to $19.99")
	if err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	if res.Pending == nil || res.Pending.Kind != domain.ActionSetPrice {
		t.Fatalf("pending = %+v, want setPrice", res.Pending)
	}
	if _, err := svc.SendMessage(ctx, "alice", session.ID, "confirm"); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}

	got, _ := products.GetProduct(ctx, lamp.ID)
	if got.Price != 19.99 {
		t.Errorf("price = %v, want 19.99", got.Price)
	}
}

func TestChatService_SessionsAreScopedToOwner(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()
	session := svc.CreateSession(ctx, "alice")

	if _, err := svc.GetSession(ctx, "bob", session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("GetSession(bob) error = %v", err)
	}
	if _, err := svc.SendMessage(ctx, "bob", session.ID, "hello"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("SendMessage(bob) error = %v", err)
	}
	if _, err := svc.Notifications(ctx, "bob", session.ID, 10); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("Notifications(bob) error = %v", err)
	}
	if err := svc.DeleteSession(ctx, "bob", session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("DeleteSession(bob) error = %v", err)
	}
}

func TestChatService_DiscardPending(t *testing.T) {
	svc, products, _ := newChatFixture(t)
	ctx := context.Background()
	products.CreateProduct(ctx, CreateProductInput{Name: "Lamp", Price: 25})
	session := svc.CreateSession(ctx, "alice")

	svc.SendMessage(ctx, "alice", session.ID, "edit lamp")
	snap, err := svc.DiscardPending(ctx, "alice", session.ID)
	if err != nil {
		t.Fatalf("DiscardPending error = %v", err)
	}
	if snap.Pending != nil {
		t.Errorf("pending = %+v, want nil", snap.Pending)
	}
}

func TestChatService_SummariesAndEmptyInput(t *testing.T) {
	products := NewProductService(newMockProductRepository(), zap.NewNop())
	resolver := chat.NewResolver(products, products, nil, zap.NewNop(), chat.WithThinkDelay(time.Millisecond))
	svc := NewChatService(chat.NewStore(), resolver, nil, zap.NewNop())
	ctx := context.Background()

	a := svc.CreateSession(ctx, "alice")
	svc.CreateSession(ctx, "bob")

	if _, err := svc.SendMessage(ctx, "alice", a.ID, "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Errorf("blank message error = %v, want ErrEmptyMessage", err)
	}

	res, err := svc.SendMessage(ctx, "alice", a.ID, "show my products")
	if err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Messages[len(res.Messages)-1].Text), "add") {
		t.Errorf("empty catalog reply = %q", res.Messages[len(res.Messages)-1].Text)
	}

	sums := svc.Summaries(ctx)
	if len(sums) != 2 || sums[0].MessageCount != 3 {
		t.Errorf("summaries = %+v", sums)
	}

	notes, err := svc.Notifications(ctx, "alice", a.ID, 10)
	if err != nil || len(notes) != 0 {
		t.Errorf("Notifications without history = %v, %v", notes, err)
	}
}

func TestChatService_WatchNotificationsFollowsSession(t *testing.T) {
	svc, products, _ := newChatFixture(t)
	ctx := context.Background()

	if _, err := products.CreateProduct(ctx, CreateProductInput{Name: "Desk Lamp", Price: 25}); err != nil {
		t.Fatalf("CreateProduct error = %v", err)
	}
	session := svc.CreateSession(ctx, "alice")

	if _, err := svc.WatchNotifications(ctx, "bob", session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("WatchNotifications(bob) error = %v, want ErrSessionNotFound", err)
	}

	feed, err := svc.WatchNotifications(ctx, "alice", session.ID)
	if err != nil {
		t.Fatalf("WatchNotifications error = %v", err)
	}
	for _, text := range []string{"delete desk lamp", "yes"} {
		if _, err := svc.SendMessage(ctx, "alice", session.ID, text); err != nil {
			t.Fatalf("SendMessage(%q) error = %v", text, err)
		}
	}

	select {
	case n := <-feed:
		if n.SessionID != session.ID || !strings.Contains(n.Text, "Desk Lamp") {
			t.Errorf("notification = %+v", n)
		}
	default:
		t.Fatal("no notification on the feed")
	}
}

func TestChatService_WatchWithoutHistoryEndsWithContext(t *testing.T) {
	products := NewProductService(newMockProductRepository(), zap.NewNop())
	svc := NewChatService(chat.NewStore(), chat.NewResolver(products, products, nil, zap.NewNop()), nil, zap.NewNop())
	session := svc.CreateSession(context.Background(), "alice")

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := svc.WatchNotifications(ctx, "alice", session.ID)
	if err != nil {
		t.Fatalf("WatchNotifications error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-feed:
		if ok {
			t.Error("expected an empty feed")
		}
	case <-time.After(time.Second):
		t.Fatal("feed still open after cancel")
	}
}

func TestChatService_SweepIdleEvictsQuietSessions(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()
	impl := svc.(*chatService)

	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	impl.now = func() time.Time { return t0 }
	quiet := svc.CreateSession(ctx, "alice")

	impl.now = func() time.Time { return t0.Add(90 * time.Minute) }
	active := svc.CreateSession(ctx, "alice")

	impl.now = func() time.Time { return t0.Add(2 * time.Hour) }
	if n := svc.SweepIdle(ctx, time.Hour); n != 1 {
		t.Fatalf("SweepIdle() = %d, want 1", n)
	}
	if _, err := svc.GetSession(ctx, "alice", quiet.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("quiet session survived: %v", err)
	}
	if _, err := svc.GetSession(ctx, "alice", active.ID); err != nil {
		t.Errorf("active session evicted: %v", err)
	}
}

// countingSweeper records SweepIdle calls
type countingSweeper struct {
	ChatService
	calls atomic.Int32
}

func (c *countingSweeper) SweepIdle(ctx context.Context, idle time.Duration) int {
	c.calls.Add(1)
	return 0
}

func TestRunSweeper_TicksUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, sweeper, 5*time.Millisecond, time.Hour)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunSweeper did not return after cancel")
	}
}
