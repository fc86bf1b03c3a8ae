package domain

import "time"

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one turn in a conversation transcript. Messages are never
// modified after they are appended.
type Message struct {
	ID               string    `json:"id"`
	Sender           Sender    `json:"sender"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	AttachedProducts []Product `json:"attached_products,omitempty"`
}
