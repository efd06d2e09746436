package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/middleware"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

func newUpgrader(origins middleware.OriginPolicy) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin:     origins.CheckOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type textPayload struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn 串行化写操作，ping 与回复来自不同 goroutine。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理实时聊天连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	userID := session.User.ID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsConn{conn: conn}
	defer conn.Close()

	h.logger.Info("websocket connected", zap.String("user_id", userID))

	ctx, cancel := context.WithCancel(r.Context())

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, c)
	}()
	defer wg.Wait()
	defer cancel()

	h.sendInfo(c, map[string]any{"type": "connected", "userId": userID})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, c, userID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *wsConn, userID string, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid message payload")
			return
		}
		exchange, err := h.chatSvc.Send(ctx, userID, payload.Text)
		if err != nil {
			_, message := sendErrorStatus(err)
			h.sendError(c, message)
			return
		}
		h.send(c, "reply", exchange)
	case "history":
		h.sendInfo(c, map[string]any{"type": "history", "messages": h.chatSvc.History(ctx, userID)})
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) send(c *wsConn, kind string, data interface{}) {
	msg := outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}
	if err := c.writeJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.String("type", kind), zap.Error(err))
	}
}

func (h *Handler) sendInfo(c *wsConn, data map[string]any) {
	h.send(c, "info", data)
}

func (h *Handler) sendError(c *wsConn, message string) {
	h.send(c, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
