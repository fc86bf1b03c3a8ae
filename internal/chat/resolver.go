package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pricebot/internal/domain"

	"go.uber.org/zap"
)

// TurnResult describes what a single turn appended and raised
type TurnResult struct {
	Rule          string                `json:"rule"`
	Messages      []domain.Message      `json:"messages"`
	Pending       *domain.PendingAction `json:"pending_action,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the time source used for message timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithThinkDelay adds a cosmetic pause before the assistant replies
func WithThinkDelay(d time.Duration) Option {
	return func(r *Resolver) { r.thinkDelay = d }
}

// Resolver maps user messages to product intents and drives the single
// pending action of a conversation through its confirm/cancel lifecycle.
type Resolver struct {
	directory  Directory
	mutator    Mutator
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
	thinkDelay time.Duration
	rules      []rule
}

// NewResolver creates a Resolver. A nil notifier discards notifications.
func NewResolver(directory Directory, mutator Mutator, notifier Notifier, logger *zap.Logger, opts ...Option) *Resolver {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		directory: directory,
		mutator:   mutator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rules = r.dispatchTable()
	return r
}

// turn holds the per-message working state
type turn struct {
	conv      *Conversation
	lower     string
	products  []domain.Product
	match     *domain.Product
	pending   *domain.PendingAction
	selection selection
	rule      string
	messages  []domain.Message
	notes     []domain.Notification
}

// Turn processes one user message. Empty input is rejected with
// ErrEmptyMessage and nothing is appended; a concurrent turn on the same
// conversation is rejected with ErrTurnInProgress.
func (r *Resolver) Turn(ctx context.Context, conv *Conversation, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if !conv.sending.TryLock() {
		return nil, ErrTurnInProgress
	}
	defer conv.sending.Unlock()

	t := &turn{
		conv:      conv,
		lower:     strings.ToLower(text),
		pending:   conv.Pending(),
		selection: conv.takeSelection(),
	}
	t.messages = append(t.messages, conv.append(domain.SenderUser, text, nil, r.now()))

	r.think(ctx)

	if err := r.respond(ctx, t); err != nil {
		r.logger.Error("Failed to build chat reply",
			zap.String("session_id", conv.ID),
			zap.String("rule", t.rule),
			zap.Error(err),
		)
		r.reply(t, replyApology, nil)
	}

	if botReplies(t.messages) == 0 {
		r.reply(t, replyUnknown, nil)
	}

	r.logger.Debug("Chat turn processed",
		zap.String("session_id", conv.ID),
		zap.String("rule", t.rule),
		zap.Int("messages", len(t.messages)),
	)

	return &TurnResult{
		Rule:          t.rule,
		Messages:      t.messages,
		Pending:       conv.Pending(),
		Notifications: t.notes,
	}, nil
}

func (r *Resolver) think(ctx context.Context) {
	if r.thinkDelay <= 0 {
		return
	}
	timer := time.NewTimer(r.thinkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (r *Resolver) respond(ctx context.Context, t *turn) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while resolving intent: %v", p)
		}
	}()

	r.loadProducts(ctx, t)
	t.match = matchProduct(t.lower, t.products)

	for _, rl := range r.rules {
		if rl.match(t) {
			t.rule = rl.name
			return rl.handle(ctx, t)
		}
	}
	return nil
}

func (r *Resolver) loadProducts(ctx context.Context, t *turn) {
	products, err := r.directory.ListProducts(ctx)
	if err != nil {
		r.logger.Error("Failed to list products",
			zap.String("session_id", t.conv.ID),
			zap.Error(err),
		)
		r.notify(ctx, t, domain.NotificationError, notifyDirectoryFailed)
		r.reply(t, replyDirectoryFailed, nil)
		t.products = t.conv.cachedProducts()
		return
	}
	t.conv.cacheProducts(products)
	t.products = products
}

func (r *Resolver) reply(t *turn, text string, products []domain.Product) {
	t.messages = append(t.messages, t.conv.append(domain.SenderBot, text, products, r.now()))
}

func (r *Resolver) notify(ctx context.Context, t *turn, level domain.NotificationLevel, text string) {
	n := domain.Notification{
		Level:     level,
		Text:      text,
		SessionID: t.conv.ID,
		CreatedAt: r.now(),
	}
	t.notes = append(t.notes, n)
	r.notifier.Notify(ctx, n)
}

func (r *Resolver) stage(t *turn, a *domain.PendingAction) {
	t.conv.setPending(a)
	t.pending = clonePending(a)
}

func (r *Resolver) clear(t *turn) {
	t.conv.setPending(nil)
	t.pending = nil
}

func botReplies(messages []domain.Message) int {
	n := 0
	for _, m := range messages {
		if m.Sender == domain.SenderBot {
			n++
		}
	}
	return n
}

func attach(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}

func float(v float64) *float64 {
	return &v
}
