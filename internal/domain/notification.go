package domain

import "time"

// NotificationLevel is the severity of a toast notification
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a fire-and-forget toast raised during a chat turn
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Text      string            `json:"text"`
	SessionID string            `json:"session_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
