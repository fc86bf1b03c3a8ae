package notify

import (
	"context"

	"pricebot/internal/domain"

	"go.uber.org/zap"
)

// Notifier receives toast notifications raised during chat turns.
// Delivery is best effort: failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// LogNotifier writes every notification to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level for successes and warn level for errors
func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) {
	fields := []zap.Field{
		zap.String("session_id", n.SessionID),
		zap.String("level", string(n.Level)),
		zap.String("text", n.Text),
	}
	if n.Level == domain.NotificationError {
		l.logger.Warn("Chat notification", fields...)
		return
	}
	l.logger.Info("Chat notification", fields...)
}

// Fanout delivers each notification to several notifiers in order
type Fanout []Notifier

// Notify forwards n to every notifier
func (f Fanout) Notify(ctx context.Context, n domain.Notification) {
	for _, target := range f {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}
