package chat

import (
	"errors"
	"time"
)

// Sender 标识消息来源。
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ErrUserRequired 表示消息缺少归属用户。
var ErrUserRequired = errors.New("user id is required")

// Message is one turn of a user's conversation. Messages are append-only.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the sender is one of the known values.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}
