package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pricebot/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig controls where notifications are published and how much
// history is retained per session
type RedisConfig struct {
	KeyPrefix  string        // Channel and key prefix
	HistoryLen int64         // Notifications kept per session
	HistoryTTL time.Duration // Expiry of a session's history list
}

// DefaultRedisConfig returns the settings used by the API server
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		KeyPrefix:  "pricebot:notifications",
		HistoryLen: 50,
		HistoryTTL: 24 * time.Hour,
	}
}

// RedisPublisher publishes notifications on a per-session pub/sub channel
// and keeps a short history list so clients can catch up after reconnecting
type RedisPublisher struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher using client
func NewRedisPublisher(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisPublisher {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}
	if config.HistoryLen <= 0 {
		config.HistoryLen = DefaultRedisConfig().HistoryLen
	}
	return &RedisPublisher{client: client, config: config, logger: logger}
}

// Channel returns the pub/sub channel for a session
func (p *RedisPublisher) Channel(sessionID string) string {
	return fmt.Sprintf("%s:%s", p.config.KeyPrefix, sessionID)
}

func (p *RedisPublisher) historyKey(sessionID string) string {
	return p.Channel(sessionID) + ":recent"
}

// Notify publishes n and appends it to the session history
func (p *RedisPublisher) Notify(ctx context.Context, n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}

	key := p.historyKey(n.SessionID)
	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.Channel(n.SessionID), payload)
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -p.config.HistoryLen, -1)
	if p.config.HistoryTTL > 0 {
		pipe.Expire(ctx, key, p.config.HistoryTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Failed to publish notification",
			zap.Error(err),
			zap.String("session_id", n.SessionID),
		)
	}
}

// Recent returns up to limit of the latest notifications for a session,
// oldest first
func (p *RedisPublisher) Recent(ctx context.Context, sessionID string, limit int64) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = p.config.HistoryLen
	}

	raw, err := p.client.LRange(ctx, p.historyKey(sessionID), -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification history: %w", err)
	}

	out := make([]domain.Notification, 0, len(raw))
	for _, item := range raw {
		var n domain.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			p.logger.Warn("Skipping malformed notification", zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Watch follows a session's channel and delivers each notification on the
// returned channel. The subscription is confirmed before Watch returns, and
// the channel is closed once ctx ends.
func (p *RedisPublisher) Watch(ctx context.Context, sessionID string) (<-chan domain.Notification, error) {
	sub := p.client.Subscribe(ctx, p.Channel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	out := make(chan domain.Notification)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var n domain.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					p.logger.Warn("Skipping malformed notification",
						zap.Error(err),
						zap.String("session_id", sessionID),
					)
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
