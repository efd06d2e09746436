package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/chat"
	chatservice "github.com/campusmind/portal/backend/internal/service/chat"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Conversations is the chat service as seen by the HTTP layer.
type Conversations interface {
	Send(ctx context.Context, userID, text string) (chatservice.Exchange, error)
	History(ctx context.Context, userID string) []chat.Message
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  Conversations
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建聊天处理器，origins 决定哪些跨站页面可以建立 websocket
func New(chatSvc Conversations, origins middleware.OriginPolicy, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		logger:   logging.OrNop(logger).Named("chat"),
		upgrader: newUpgrader(origins),
	}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载会话校验中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(cr chi.Router) {
		cr.Get("/messages", h.handleHistory)
		cr.Post("/messages", h.handleSend)
		cr.Get("/stream", h.handleStream)
		cr.Get("/ws", h.handleWebSocket)
	})
}

// handleHistory 返回当前用户的完整对话
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": h.chatSvc.History(r.Context(), session.User.ID),
	})
}

// handleSend 保存用户消息并返回分诊回复
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exchange, err := h.chatSvc.Send(r.Context(), session.User.ID, payload.Text)
	if err != nil {
		status, message := sendErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("send message failed", zap.String("user_id", session.User.ID), zap.Error(err))
		}
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, exchange)
}

func sendErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return http.StatusBadRequest, "text is required"
	case errors.Is(err, chat.ErrUserRequired):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, chatservice.ErrNoTriage):
		return http.StatusServiceUnavailable, "chat unavailable"
	default:
		return http.StatusInternalServerError, "failed to process message"
	}
}
