package schedule

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campusmind/portal/backend/internal/model/catalog"
	model "github.com/campusmind/portal/backend/internal/model/schedule"
	schedulesvc "github.com/campusmind/portal/backend/internal/service/schedule"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Composer builds a day plan.
type Composer interface {
	Compose(ctx context.Context, req model.Request) (model.Schedule, error)
}

// Handler 日程生成的HTTP处理器
type Handler struct {
	composer Composer
	notes    catalog.Store
}

// New 创建日程处理器。notes 用于按 consultationId 查找咨询摘要，可以为 nil。
func New(composer Composer, notes catalog.Store) *Handler {
	return &Handler{composer: composer, notes: notes}
}

// RegisterRoutes 注册日程路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/schedule", h.handleCompose)
}

type composeRequest struct {
	Tasks               []string `json:"tasks"`
	ConsultationID      string   `json:"consultationId,omitempty"`
	ConsultationSummary string   `json:"consultationSummary,omitempty"`
}

func (h *Handler) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary := strings.TrimSpace(req.ConsultationSummary)
	if summary == "" && req.ConsultationID != "" {
		if h.notes == nil {
			utils.RespondError(w, http.StatusNotFound, "consultation not found")
			return
		}
		note, ok := h.notes.FindConsultation(req.ConsultationID)
		if !ok {
			utils.RespondError(w, http.StatusNotFound, "consultation not found")
			return
		}
		summary = note.Summary
	}

	out, err := h.composer.Compose(r.Context(), model.Request{
		Tasks:               req.Tasks,
		ConsultationSummary: summary,
	})
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, out)
	case errors.Is(err, schedulesvc.ErrNoTasks), errors.Is(err, schedulesvc.ErrTooManyTasks):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusBadGateway, "Sorry, I couldn't generate a schedule right now. Please try again.")
	}
}
