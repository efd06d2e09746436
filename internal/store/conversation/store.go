package conversation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/portal/backend/internal/model/chat"
)

// Store persists each user's conversation as an append-only, time-ordered log.
type Store interface {
	// Append stores msg under userID and returns it with id and timestamp filled in.
	Append(ctx context.Context, userID string, msg chat.Message) (chat.Message, error)
	// List returns every message of userID ordered by timestamp ascending.
	List(ctx context.Context, userID string) ([]chat.Message, error)
}

// ownerKey 是 Append 与 List 共用的用户键。
func ownerKey(userID string) string {
	return strings.TrimSpace(userID)
}

// prepare 补全消息的归属、ID 与时间戳。
func prepare(userID string, msg chat.Message, now func() time.Time) (chat.Message, error) {
	userID = ownerKey(userID)
	if userID == "" {
		return chat.Message{}, chat.ErrUserRequired
	}
	msg.UserID = userID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func sortByTimestamp(messages []chat.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
