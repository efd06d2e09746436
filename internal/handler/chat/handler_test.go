package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/chat"
	"github.com/campusmind/portal/backend/internal/model/identity"
	triagemodel "github.com/campusmind/portal/backend/internal/model/triage"
	chatservice "github.com/campusmind/portal/backend/internal/service/chat"
	"github.com/campusmind/portal/backend/internal/store/conversation"
)

type scriptedTriager struct {
	result triagemodel.Result
}

func (s scriptedTriager) Triage(context.Context, string) (triagemodel.Result, error) {
	return s.result, nil
}

func withUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != "" {
				r = r.WithContext(middleware.WithSession(r.Context(), identity.Session{User: identity.User{ID: userID}}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setupRouter(userID string, result triagemodel.Result) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(conversation.NewMemoryStore(), scriptedTriager{result: result}, nil)
	handler := New(chatSvc, middleware.NewOriginPolicy([]string{"https://campusmind.app"}), nil)

	r := chi.NewRouter()
	r.Use(withUser(userID))
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func calmReply() triagemodel.Result {
	return triagemodel.Result{
		Version:  triagemodel.VersionConversational,
		Category: triagemodel.CategoryMildDistress,
		Payload:  triagemodel.Conversational{Response: "That sounds like a lot to carry right now, and it makes sense to feel tired."},
	}
}

func TestSendMessageReturnsExchange(t *testing.T) {
	r, _ := setupRouter("u1", calmReply())

	payload, _ := json.Marshal(map[string]string{"text": "I'm exhausted"})
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var got chatservice.Exchange
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.AIMessage.Sender != chat.SenderAI || !strings.HasPrefix(got.AIMessage.Text, "That sounds") {
		t.Fatalf("unexpected ai message: %+v", got.AIMessage)
	}
}

func TestSendMessageRequiresText(t *testing.T) {
	r, _ := setupRouter("u1", calmReply())

	req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(`{"text":"  "}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHistoryRequiresSession(t *testing.T) {
	r, _ := setupRouter("", calmReply())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/messages", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestHistoryListsMessagesInOrder(t *testing.T) {
	r, chatSvc := setupRouter("u1", calmReply())
	if _, err := chatSvc.Send(context.Background(), "u1", "first"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/messages", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[0].Sender != chat.SenderUser {
		t.Fatalf("unexpected history: %+v", body.Messages)
	}
}

func TestStreamEmitsEventsInOrder(t *testing.T) {
	result := calmReply()
	result.Category = triagemodel.CategoryCrisis
	result.Escalate = true
	result.HelpChannel = "Reach CampusMind support anonymously."
	r, _ := setupRouter("u1", result)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/stream?message=help", nil))

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var events, named []string
	var deltas strings.Builder
	var final string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			named = append(named, name)
			continue
		}
		line, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var chunk StreamResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			t.Fatalf("decode chunk: %v", err)
		}
		if len(events) == 0 || events[len(events)-1] != chunk.Event {
			events = append(events, chunk.Event)
		}
		switch chunk.Event {
		case "delta":
			deltas.WriteString(chunk.Content)
		case "message":
			final = chunk.Content
		}
	}

	want := []string{"start", "triage", "delta", "message", "escalation", "end"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", events)
	}
	if deltas.String() != final {
		t.Fatalf("deltas %q do not add up to %q", deltas.String(), final)
	}
	if strings.Join(named, ",") != "escalation" {
		t.Fatalf("expected a named escalation event, got %v", named)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	r, _ := setupRouter("u1", calmReply())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/stream", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSplitDeltas(t *testing.T) {
	text := "one two three four five six seven eight\nnine"
	chunks := splitDeltas(text, 3)
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks do not rebuild text: %q", chunks)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if splitDeltas("", 3) != nil {
		t.Fatal("expected nil for empty text")
	}
}

func TestWebSocketReply(t *testing.T) {
	r, _ := setupRouter("u1", calmReply())
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello outgoingMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "info" {
		t.Fatalf("expected info greeting, got %+v (%v)", hello, err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "message", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply struct {
		Type string               `json:"type"`
		Data chatservice.Exchange `json:"data"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != "reply" || reply.Data.UserMessage.Text != "hi" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var failure outgoingMessage
	if err := conn.ReadJSON(&failure); err != nil || failure.Type != "error" {
		t.Fatalf("expected error frame, got %+v (%v)", failure, err)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	r, _ := setupRouter("u1", calmReply())
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"

	header := http.Header{"Origin": {"https://evil.test"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	header = http.Header{"Origin": {"https://campusmind.app"}}
	conn, _, err = websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("listed origin should connect: %v", err)
	}
	conn.Close()
}
