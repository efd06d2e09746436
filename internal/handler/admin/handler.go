package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/identity"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// UserLister 列出所有账户
type UserLister interface {
	ListUsers(ctx context.Context, actor identity.User) ([]identity.User, error)
}

// Handler 管理员路由处理器，挂载在 RequireAdmin 之后。
type Handler struct {
	users UserLister
}

// New 创建管理员处理器
func New(users UserLister) *Handler {
	return &Handler{users: users}
}

// RegisterRoutes 注册管理员路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleListUsers)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.users.ListUsers(r.Context(), session.User)
	if err != nil {
		utils.RespondError(w, http.StatusForbidden, "admin access required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}
