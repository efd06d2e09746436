package chat

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// deltaWords 控制 SSE 增量分片的粒度。
const deltaWords = 6

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event       string `json:"event"`
	Content     string `json:"content,omitempty"`
	Category    string `json:"category,omitempty"`
	Version     string `json:"version,omitempty"`
	Escalate    bool   `json:"escalateToProfessional,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
	HelpChannel string `json:"helpChannel,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	Finished    bool   `json:"finished,omitempty"`
	Error       string `json:"error,omitempty"`
}

// handleStream 通过 SSE 推送一次分诊回复：start, triage, delta..., message, [escalation], end
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	userMessage := strings.TrimSpace(r.URL.Query().Get("message"))
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start"})

	exchange, err := h.chatSvc.Send(r.Context(), session.User.ID, userMessage)
	if err != nil {
		_, message := sendErrorStatus(err)
		h.logger.Warn("stream send failed", zap.String("user_id", session.User.ID), zap.Error(err))
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{Event: "error", Error: message})
		return
	}

	result := exchange.Result
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:    "triage",
		Category: string(result.Category),
		Version:  string(result.Version),
		Escalate: result.Escalate,
		Fallback: result.Fallback,
	})

	for _, chunk := range splitDeltas(exchange.AIMessage.Text, deltaWords) {
		if r.Context().Err() != nil {
			return
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "delta", Content: chunk})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		Content:   exchange.AIMessage.Text,
		MessageID: exchange.AIMessage.ID,
	})

	// escalation 与 error 是具名事件
	if result.Escalate {
		utils.SendSSEEvent(w, flusher, "escalation", StreamResponse{Event: "escalation", HelpChannel: result.HelpChannel})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", Finished: true})
}

// splitDeltas 把整段回复切成若干词组，拼接后与原文一致。
func splitDeltas(text string, words int) []string {
	if text == "" {
		return nil
	}
	var (
		chunks []string
		start  int
		count  int
		inWord bool
	)
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			if count == words {
				chunks = append(chunks, text[start:i])
				start = i
				count = 0
			}
			count++
		}
		inWord = !space
	}
	return append(chunks, text[start:])
}
