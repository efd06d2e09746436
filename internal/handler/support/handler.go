package support

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campusmind/portal/backend/internal/service/mail"
	"github.com/campusmind/portal/backend/pkg/utils"
)

const (
	msgSent        = "Support email sent successfully."
	msgInvalidForm = "Invalid form data."
	msgConnect     = "Could not connect to email server. Please check server configuration."
	msgSendFailed  = "An error occurred while trying to send the email."
	defaultToEmail = "support@campus.test"
)

// Mailer 发送支持邮件
type Mailer interface {
	SendSupportEmail(ctx context.Context, req mail.SupportRequest) error
}

// Handler 支持邮件的HTTP处理器
type Handler struct {
	mailer  Mailer
	toEmail string
}

// New 创建支持邮件处理器。toEmail 为空时使用默认收件地址。
func New(mailer Mailer, toEmail string) *Handler {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		toEmail = defaultToEmail
	}
	return &Handler{mailer: mailer, toEmail: toEmail}
}

// RegisterRoutes 注册支持邮件路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/support/email", h.handleSend)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req mail.SupportRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, msgInvalidForm)
		return
	}
	// 收件人固定为配置的支持邮箱，fromEmail 只作为 Reply-To。
	req.ToEmail = h.toEmail

	err := h.mailer.SendSupportEmail(r.Context(), req)
	switch {
	case err == nil:
		utils.RespondMessage(w, http.StatusOK, true, msgSent)
	case errors.Is(err, mail.ErrInvalidForm):
		utils.RespondMessage(w, http.StatusBadRequest, false, msgInvalidForm)
	case errors.Is(err, mail.ErrNotConfigured), errors.Is(err, mail.ErrConnect):
		utils.RespondMessage(w, http.StatusServiceUnavailable, false, msgConnect)
	default:
		utils.RespondMessage(w, http.StatusInternalServerError, false, msgSendFailed)
	}
}
