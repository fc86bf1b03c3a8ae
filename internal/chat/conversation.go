package chat

import (
	"crypto/rand"
	"sync"
	"time"

	"pricebot/internal/domain"

	"github.com/oklog/ulid/v2"
)

const greeting = "Hello! I'm your PriceBot assistant. I can help you manage your products, analyze prices, and provide recommendations. What would you like to do today?"

// selection is a one-turn window opened when the assistant lists candidates
// and waits for the user to name one of them.
type selection int

const (
	selectionNone selection = iota
	selectionDelete
	selectionEdit
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID that sorts after every ID previously issued by this process
func newID(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), idEntropy).String()
}

// Conversation is one chat session: an append-only transcript, the single
// pending action slot and the last product snapshot read from the directory.
type Conversation struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	// sending is held for the whole duration of a turn
	sending sync.Mutex

	mu        sync.RWMutex
	messages  []domain.Message
	pending   *domain.PendingAction
	selection selection
	products  []domain.Product
}

// NewConversation creates a conversation that opens with the assistant greeting
func NewConversation(ownerID string, now time.Time) *Conversation {
	c := &Conversation{
		ID:        newID(now),
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	c.append(domain.SenderBot, greeting, nil, now)
	return c
}

// Snapshot is a consistent read-only copy of a conversation's state
type Snapshot struct {
	ID        string                `json:"id"`
	OwnerID   string                `json:"owner_id"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []domain.Message      `json:"messages"`
	Pending   *domain.PendingAction `json:"pending_action,omitempty"`
}

// Snapshot copies the transcript and the pending action
func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	messages := make([]domain.Message, len(c.messages))
	copy(messages, c.messages)

	return Snapshot{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt,
		Messages:  messages,
		Pending:   clonePending(c.pending),
	}
}

// LastActive is the time of the newest message, or the creation time
// when the transcript is empty
func (c *Conversation) LastActive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n := len(c.messages); n > 0 {
		return c.messages[n-1].Timestamp
	}
	return c.CreatedAt
}

// Pending returns a copy of the staged action, or nil
func (c *Conversation) Pending() *domain.PendingAction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePending(c.pending)
}

// DiscardPending drops the staged action without committing it.
// It fails with ErrTurnInProgress while a turn is being processed.
func (c *Conversation) DiscardPending() error {
	if !c.sending.TryLock() {
		return ErrTurnInProgress
	}
	defer c.sending.Unlock()

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	return nil
}

func (c *Conversation) append(sender domain.Sender, text string, products []domain.Product, now time.Time) domain.Message {
	msg := domain.Message{
		ID:               newID(now),
		Sender:           sender,
		Text:             text,
		Timestamp:        now,
		AttachedProducts: products,
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	return msg
}

func (c *Conversation) setPending(a *domain.PendingAction) {
	c.mu.Lock()
	c.pending = clonePending(a)
	c.mu.Unlock()
}

// takeSelection returns the open selection window and closes it
func (c *Conversation) takeSelection() selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.selection
	c.selection = selectionNone
	return s
}

func (c *Conversation) openSelection(s selection) {
	c.mu.Lock()
	c.selection = s
	c.mu.Unlock()
}

func (c *Conversation) cachedProducts() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products
}

func (c *Conversation) cacheProducts(products []domain.Product) {
	c.mu.Lock()
	c.products = products
	c.mu.Unlock()
}

func clonePending(a *domain.PendingAction) *domain.PendingAction {
	if a == nil {
		return nil
	}
	cp := *a
	cp.ProposedPrice = cloneFloat(a.ProposedPrice)
	cp.CurrentPrice = cloneFloat(a.CurrentPrice)
	cp.MinPrice = cloneFloat(a.MinPrice)
	cp.MaxPrice = cloneFloat(a.MaxPrice)
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
