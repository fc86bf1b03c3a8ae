package service

import (
	"context"
	"time"

	"pricebot/internal/chat"
	"pricebot/internal/domain"

	"go.uber.org/zap"
)

// NotificationHistory returns the latest notifications of a session and
// follows new ones as they are published
type NotificationHistory interface {
	Recent(ctx context.Context, sessionID string, limit int64) ([]domain.Notification, error)
	Watch(ctx context.Context, sessionID string) (<-chan domain.Notification, error)
}

// ChatService owns the live conversations and runs turns against them
type ChatService interface {
	CreateSession(ctx context.Context, ownerID string) chat.Snapshot
	GetSession(ctx context.Context, ownerID, sessionID string) (chat.Snapshot, error)
	DeleteSession(ctx context.Context, ownerID, sessionID string) error
	SendMessage(ctx context.Context, ownerID, sessionID, text string) (*chat.TurnResult, error)
	DiscardPending(ctx context.Context, ownerID, sessionID string) (chat.Snapshot, error)
	Notifications(ctx context.Context, ownerID, sessionID string, limit int64) ([]domain.Notification, error)
	WatchNotifications(ctx context.Context, ownerID, sessionID string) (<-chan domain.Notification, error)
	Summaries(ctx context.Context) []chat.Summary
	SweepIdle(ctx context.Context, idle time.Duration) int
}

type chatService struct {
	store    *chat.Store
	resolver *chat.Resolver
	history  NotificationHistory
	logger   *zap.Logger
	now      func() time.Time
}

// NewChatService creates a chat service. history may be nil, in which case
// sessions report no notification history.
func NewChatService(store *chat.Store, resolver *chat.Resolver, history NotificationHistory, logger *zap.Logger) ChatService {
	return &chatService{
		store:    store,
		resolver: resolver,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *chatService) CreateSession(ctx context.Context, ownerID string) chat.Snapshot {
	conv := s.store.Create(ownerID, s.now())

	s.logger.Info("Chat session created",
		zap.String("session_id", conv.ID),
		zap.String("user_id", ownerID),
	)
	return conv.Snapshot()
}

func (s *chatService) GetSession(ctx context.Context, ownerID, sessionID string) (chat.Snapshot, error) {
	conv, err := s.store.Get(ownerID, sessionID)
	if err != nil {
		return chat.Snapshot{}, err
	}
	return conv.Snapshot(), nil
}

func (s *chatService) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	if err := s.store.Delete(ownerID, sessionID); err != nil {
		return err
	}
	s.logger.Info("Chat session closed",
		zap.String("session_id", sessionID),
		zap.String("user_id", ownerID),
	)
	return nil
}

func (s *chatService) SendMessage(ctx context.Context, ownerID, sessionID, text string) (*chat.TurnResult, error) {
	conv, err := s.store.Get(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Turn(ctx, conv, text)
}

func (s *chatService) DiscardPending(ctx context.Context, ownerID, sessionID string) (chat.Snapshot, error) {
	conv, err := s.store.Get(ownerID, sessionID)
	if err != nil {
		return chat.Snapshot{}, err
	}
	if err := conv.DiscardPending(); err != nil {
		return chat.Snapshot{}, err
	}
	return conv.Snapshot(), nil
}

func (s *chatService) Notifications(ctx context.Context, ownerID, sessionID string, limit int64) ([]domain.Notification, error) {
	if _, err := s.store.Get(ownerID, sessionID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.Notification{}, nil
	}
	return s.history.Recent(ctx, sessionID, limit)
}

// WatchNotifications streams the session's notifications until ctx ends.
// Without a history backend the stream stays empty.
func (s *chatService) WatchNotifications(ctx context.Context, ownerID, sessionID string) (<-chan domain.Notification, error) {
	if _, err := s.store.Get(ownerID, sessionID); err != nil {
		return nil, err
	}
	if s.history == nil {
		out := make(chan domain.Notification)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}
	return s.history.Watch(ctx, sessionID)
}

func (s *chatService) Summaries(ctx context.Context) []chat.Summary {
	return s.store.Summaries()
}

// SweepIdle evicts conversations that have been quiet for longer than idle
func (s *chatService) SweepIdle(ctx context.Context, idle time.Duration) int {
	removed := s.store.Sweep(s.now().Add(-idle))
	if removed > 0 {
		s.logger.Info("Evicted idle chat sessions",
			zap.Int("count", removed),
			zap.Duration("idle", idle),
		)
	}
	return removed
}

// RunSweeper calls SweepIdle every interval until ctx ends
func RunSweeper(ctx context.Context, chats ChatService, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chats.SweepIdle(ctx, idle)
		}
	}
}
