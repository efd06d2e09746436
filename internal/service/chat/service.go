package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/chat"
	triagemodel "github.com/campusmind/portal/backend/internal/model/triage"
	"github.com/campusmind/portal/backend/internal/store/conversation"
)

const (
	// notifyTimeout 限制一次升级通知（SMTP 投递）的总时长。
	notifyTimeout = 10 * time.Second
	// maxTrackedUsers 与 stampWindow 限制 stamp 记录的用户数。
	maxTrackedUsers = 4096
	stampWindow     = time.Minute
)

var (
	ErrEmptyMessage = errors.New("message text is required")
	ErrNoTriage     = errors.New("triage service is not configured")
)

// Triager produces the assistant reply for one user message.
type Triager interface {
	Triage(ctx context.Context, input string) (triagemodel.Result, error)
}

// EscalationNotifier is told about conversations that need a professional.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, userID, input string, result triagemodel.Result) error
}

// Exchange is the outcome of one Send call.
type Exchange struct {
	UserMessage chat.Message       `json:"userMessage"`
	AIMessage   chat.Message       `json:"aiMessage"`
	Result      triagemodel.Result `json:"result"`
}

// Service ties the triage policy to the conversation log.
type Service struct {
	store    conversation.Store
	triager  Triager
	notifier EscalationNotifier
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time

	pending sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier enables escalation notifications.
func WithNotifier(n EscalationNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the chat service.
func NewService(store conversation.Store, triager Triager, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		triager: triager,
		logger:  logging.OrNop(logger).Named("chat"),
		now:     time.Now,
		last:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send records the user's message, triages it, and records the reply.
// Storage failures are logged; the reply is returned regardless.
func (s *Service) Send(ctx context.Context, userID, text string) (Exchange, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if userID == "" {
		return Exchange{}, chat.ErrUserRequired
	}
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}
	if s.triager == nil {
		return Exchange{}, ErrNoTriage
	}

	userMsg := s.persist(ctx, userID, chat.SenderUser, text)

	result, err := s.triager.Triage(ctx, text)
	if err != nil {
		return Exchange{}, err
	}

	aiMsg := s.persist(ctx, userID, chat.SenderAI, result.Text())

	if result.Escalate {
		s.notify(ctx, userID, text, result)
	}

	return Exchange{UserMessage: userMsg, AIMessage: aiMsg, Result: result}, nil
}

// History returns the user's conversation; storage errors yield an empty list.
func (s *Service) History(ctx context.Context, userID string) []chat.Message {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []chat.Message{}
	}

	messages, err := s.store.List(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load history", zap.String("user_id", userID), zap.Error(err))
		return []chat.Message{}
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages
}

func (s *Service) persist(ctx context.Context, userID string, sender chat.Sender, text string) chat.Message {
	msg := chat.Message{
		UserID:    userID,
		Sender:    sender,
		Text:      text,
		Timestamp: s.stamp(userID),
	}

	saved, err := s.store.Append(ctx, userID, msg)
	if err != nil {
		s.logger.Error("failed to persist message",
			zap.String("user_id", userID),
			zap.String("sender", string(sender)),
			zap.Error(err),
		)
		return msg
	}
	return saved
}

// stamp 保证同一用户的时间戳严格递增，时钟回拨时沿用上一次的值再加 1ns。
func (s *Service) stamp(userID string) time.Time {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.last[userID]
	if ok && !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	if !ok && len(s.last) >= maxTrackedUsers {
		s.evictLocked(now)
	}
	s.last[userID] = now
	return now
}

// evictLocked 先丢弃超过 stampWindow 未发言的用户，仍然满时任意丢弃直到腾出空位。
func (s *Service) evictLocked(now time.Time) {
	cutoff := now.Add(-stampWindow)
	for id, t := range s.last {
		if t.Before(cutoff) {
			delete(s.last, id)
		}
	}
	for id := range s.last {
		if len(s.last) < maxTrackedUsers {
			break
		}
		delete(s.last, id)
	}
}

// Wait blocks until in-flight escalation notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// notify 在后台投递升级通知，不阻塞回复，也不随请求取消。
func (s *Service) notify(ctx context.Context, userID, input string, result triagemodel.Result) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.NotifyEscalation(ctx, userID, input, result); err != nil {
			s.logger.Warn("escalation notification failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}
