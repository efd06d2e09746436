package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/portal/backend/internal/model/chat"
	triagemodel "github.com/campusmind/portal/backend/internal/model/triage"
	chatsvc "github.com/campusmind/portal/backend/internal/service/chat"
	"github.com/campusmind/portal/backend/internal/store/conversation"
)

type stubTriager struct {
	result triagemodel.Result
	err    error
}

func (s stubTriager) Triage(context.Context, string) (triagemodel.Result, error) {
	return s.result, s.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingNotifier) NotifyEscalation(context.Context, string, string, triagemodel.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// blockingNotifier 在 release 关闭前一直阻塞。
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingNotifier) NotifyEscalation(ctx context.Context, _ string, _ string, _ triagemodel.Result) error {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	return nil
}

type brokenStore struct{}

func (brokenStore) Append(context.Context, string, chat.Message) (chat.Message, error) {
	return chat.Message{}, errors.New("disk full")
}

func (brokenStore) List(context.Context, string) ([]chat.Message, error) {
	return nil, errors.New("connection reset")
}

func reply(text string) triagemodel.Result {
	return triagemodel.Result{
		Version:  triagemodel.VersionConversational,
		Category: triagemodel.CategoryMildDistress,
		Payload:  triagemodel.Conversational{Response: text},
	}
}

func TestSendPersistsBothMessagesInOrder(t *testing.T) {
	store := conversation.NewMemoryStore()
	svc := chatsvc.NewService(store, stubTriager{result: reply("That sounds heavy. I'm here.")}, nil)
	ctx := context.Background()

	ex, err := svc.Send(ctx, "u1", "  exams are crushing me  ")
	require.NoError(t, err)
	assert.Equal(t, "exams are crushing me", ex.UserMessage.Text)
	assert.Equal(t, chat.SenderAI, ex.AIMessage.Sender)
	assert.Equal(t, "That sounds heavy. I'm here.", ex.AIMessage.Text)

	history := svc.History(ctx, "u1")
	require.Len(t, history, 2)
	assert.Equal(t, chat.SenderUser, history[0].Sender)
	assert.Equal(t, chat.SenderAI, history[1].Sender)
	assert.True(t, history[1].Timestamp.After(history[0].Timestamp))
}

func TestSendKeepsTimestampsMonotonicWhenClockGoesBack(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(-time.Hour), base.Add(-2 * time.Hour)}
	i := 0
	clock := func() time.Time {
		now := ticks[i%len(ticks)]
		i++
		return now
	}

	store := conversation.NewMemoryStore()
	svc := chatsvc.NewService(store, stubTriager{result: reply("ok")}, nil, chatsvc.WithClock(clock))
	ctx := context.Background()

	_, err := svc.Send(ctx, "u1", "first")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "u1", "second")
	require.NoError(t, err)

	history := svc.History(ctx, "u1")
	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
	assert.Equal(t, []string{"first", "ok", "second", "ok"},
		[]string{history[0].Text, history[1].Text, history[2].Text, history[3].Text})
}

func TestSendValidatesInput(t *testing.T) {
	svc := chatsvc.NewService(conversation.NewMemoryStore(), stubTriager{}, nil)

	_, err := svc.Send(context.Background(), "", "hi")
	assert.ErrorIs(t, err, chat.ErrUserRequired)

	_, err = svc.Send(context.Background(), "u1", "  ")
	assert.ErrorIs(t, err, chatsvc.ErrEmptyMessage)

	_, err = chatsvc.NewService(conversation.NewMemoryStore(), nil, nil).Send(context.Background(), "u1", "hi")
	assert.ErrorIs(t, err, chatsvc.ErrNoTriage)
}

func TestSendReturnsReplyWhenStoreFails(t *testing.T) {
	svc := chatsvc.NewService(brokenStore{}, stubTriager{result: reply("Still here for you.")}, nil)

	ex, err := svc.Send(context.Background(), "u1", "hello?")
	require.NoError(t, err)
	assert.Equal(t, "Still here for you.", ex.AIMessage.Text)
	assert.Empty(t, svc.History(context.Background(), "u1"))
}

func TestSendNotifiesOnEscalation(t *testing.T) {
	escalated := reply("Please reach out now.")
	escalated.Category = triagemodel.CategoryCrisis
	escalated.Escalate = true
	escalated.HelpChannel = "Write to support anonymously."

	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := chatsvc.NewService(conversation.NewMemoryStore(), stubTriager{result: escalated}, nil, chatsvc.WithNotifier(notifier))

	ex, err := svc.Send(context.Background(), "u1", "I want to disappear")
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, 1, notifier.count())
	assert.Contains(t, ex.AIMessage.Text, "Write to support anonymously.")

	_, err = svc.Send(context.Background(), "u1", "thanks")
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, 2, notifier.count())
}

func TestSendDoesNotWaitForEscalationNotice(t *testing.T) {
	escalated := reply("Please reach out now.")
	escalated.Category = triagemodel.CategoryCrisis
	escalated.Escalate = true

	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	svc := chatsvc.NewService(conversation.NewMemoryStore(), stubTriager{result: escalated}, nil, chatsvc.WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Send(ctx, "u1", "I can't do this anymore")
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on the escalation notice")
	}

	<-notifier.started
	cancel()
	close(notifier.release)
	svc.Wait()
	assert.NoError(t, notifier.ctxErr, "notice must outlive the request context")
}

func TestSendTrimsUserID(t *testing.T) {
	svc := chatsvc.NewService(conversation.NewMemoryStore(), stubTriager{result: reply("ok")}, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, "  u1 ", "first")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "u1", "second")
	require.NoError(t, err)

	history := svc.History(ctx, " u1")
	require.Len(t, history, 4)
	for _, msg := range history {
		assert.Equal(t, "u1", msg.UserID)
	}
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
}

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	svc := chatsvc.NewService(conversation.NewMemoryStore(), stubTriager{}, nil)
	got := svc.History(context.Background(), "ghost")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
