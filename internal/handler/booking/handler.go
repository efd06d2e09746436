package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/middleware"
	model "github.com/campusmind/portal/backend/internal/model/booking"
	bookingsvc "github.com/campusmind/portal/backend/internal/service/booking"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Booker 创建与列出预约
type Booker interface {
	Book(ctx context.Context, userID string, req model.Request) (model.Confirmation, error)
	List(ctx context.Context) ([]model.Booking, error)
}

// Handler 预约相关的HTTP处理器
type Handler struct {
	booker Booker
	logger *zap.Logger
}

// New 创建预约处理器
func New(booker Booker, logger *zap.Logger) *Handler {
	return &Handler{booker: booker, logger: logging.OrNop(logger).Named("booking")}
}

// RegisterRoutes 注册公开的预约路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/bookings", h.handleBook)
}

// RegisterAdminRoutes 注册管理员可见的预约列表
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/bookings", h.handleList)
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 未登录也可以预约，登录时记录用户ID。
	var userID string
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		userID = session.User.ID
	}

	confirmation, err := h.booker.Book(r.Context(), userID, req)
	if err != nil {
		var fields bookingsvc.FieldErrors
		if errors.As(err, &fields) {
			utils.RespondJSON(w, http.StatusBadRequest, map[string]any{"errors": fields})
			return
		}
		h.logger.Error("booking failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Could not book the appointment. Please try again.")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, confirmation)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.booker.List(r.Context())
	if err != nil {
		h.logger.Error("list bookings failed", zap.Error(err))
		bookings = []model.Booking{}
	}
	utils.RespondJSON(w, http.StatusOK, bookings)
}
