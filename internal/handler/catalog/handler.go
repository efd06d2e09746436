package catalog

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/catalog"
	"github.com/campusmind/portal/backend/pkg/utils"
)

const (
	minTitleLength   = 5
	maxTitleLength   = 120
	minContentLength = 10
	maxContentLength = 2000
)

// Handler 资源中心、咨询师、论坛与咨询记录的HTTP处理器
type Handler struct {
	store catalog.Store
}

// New 创建目录处理器
func New(store catalog.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册公开的只读路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/resources", h.handleListResources)
	r.Get("/counselors", h.handleListCounselors)
	r.Get("/consultations", h.handleListConsultations)
	r.Get("/consultations/{consultationID}", h.handleGetConsultation)
	r.Get("/forum/posts", h.handleListPosts)
}

// RegisterProtectedRoutes 注册需要登录的路由
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/forum/posts", h.handleCreatePost)
}

// handleListResources 按类型列出资源
func (h *Handler) handleListResources(w http.ResponseWriter, r *http.Request) {
	kind := catalog.ResourceKind(strings.ToLower(r.URL.Query().Get("kind")))
	switch kind {
	case "", catalog.KindVideo, catalog.KindAudio, catalog.KindGuide:
	default:
		utils.RespondError(w, http.StatusBadRequest, "kind must be one of video, audio, guide")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.store.Resources(kind))
}

// handleListCounselors 列出咨询师与可选时段
func (h *Handler) handleListCounselors(w http.ResponseWriter, r *http.Request) {
	counselors := h.store.Counselors()
	type entry struct {
		catalog.Counselor
		Label string `json:"label"`
	}
	out := make([]entry, 0, len(counselors))
	for _, c := range counselors {
		out = append(out, entry{Counselor: c, Label: c.Label()})
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"counselors": out,
		"timeSlots":  h.store.TimeSlots(),
	})
}

func (h *Handler) handleListConsultations(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Consultations())
}

func (h *Handler) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	note, ok := h.store.FindConsultation(chi.URLParam(r, "consultationID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "consultation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, note)
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.ForumPosts())
}

// handleCreatePost 发布论坛帖子，作者取当前用户的显示名
func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if n := utf8.RuneCountInString(title); n < minTitleLength || n > maxTitleLength {
		utils.RespondError(w, http.StatusBadRequest, "title must be between 5 and 120 characters")
		return
	}
	if n := utf8.RuneCountInString(content); n < minContentLength || n > maxContentLength {
		utils.RespondError(w, http.StatusBadRequest, "content must be between 10 and 2000 characters")
		return
	}

	author := session.User.DisplayName
	if author == "" {
		author = "Anonymous"
	}
	post := h.store.AddForumPost(catalog.ForumPost{
		Author:    author,
		AvatarURL: session.User.PhotoURL,
		Title:     title,
		Content:   content,
	})
	utils.RespondJSON(w, http.StatusCreated, post)
}
