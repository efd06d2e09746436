package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/identity"
	authservice "github.com/campusmind/portal/backend/internal/service/auth"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Handler 认证相关的HTTP处理器
type Handler struct {
	gate         *authservice.Gate
	cookieSecure bool
	logger       *zap.Logger
}

// New 创建认证处理器
func New(gate *authservice.Gate, cookieSecure bool, logger *zap.Logger) *Handler {
	return &Handler{
		gate:         gate,
		cookieSecure: cookieSecure,
		logger:       logging.OrNop(logger).Named("auth"),
	}
}

// RegisterRoutes 注册认证路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/signup", h.handleSignup)
		ar.Post("/login", h.handleLogin)
		ar.Post("/google", h.handleGoogle)
		ar.Post("/phone/start", h.handlePhoneStart)
		ar.Post("/phone/confirm", h.handlePhoneConfirm)
		ar.Post("/logout", h.handleLogout)
		ar.Get("/me", h.handleMe)
		ar.Patch("/profile", h.handleUpdateProfile)
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	User      identity.User `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	session, err := h.gate.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		var verr *authservice.ValidationError
		switch {
		case errors.As(err, &verr):
			utils.RespondMessage(w, http.StatusBadRequest, false, verr.Error())
		case errors.Is(err, identity.ErrEmailInUse):
			utils.RespondMessage(w, http.StatusConflict, false, authservice.MsgEmailInUse)
		default:
			utils.RespondMessage(w, http.StatusInternalServerError, false, authservice.MsgUnknown)
		}
		return
	}

	h.respondSession(w, http.StatusCreated, session, authservice.MsgSignupOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	session, err := h.gate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var verr *authservice.ValidationError
		if errors.As(err, &verr) {
			utils.RespondMessage(w, http.StatusBadRequest, false, verr.Error())
			return
		}
		utils.RespondMessage(w, http.StatusUnauthorized, false, authservice.MsgLoginFailed)
		return
	}

	h.respondSession(w, http.StatusOK, session, authservice.MsgLoginOK)
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	session, err := h.gate.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		h.respondSignInError(w, err)
		return
	}
	h.respondSession(w, http.StatusOK, session, authservice.MsgLoginOK)
}

func (h *Handler) handlePhoneStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber    string `json:"phoneNumber"`
		RecaptchaToken string `json:"recaptchaToken"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	verificationID, err := h.gate.StartPhoneLogin(r.Context(), req.PhoneNumber, req.RecaptchaToken)
	if err != nil {
		var verr *authservice.ValidationError
		switch {
		case errors.As(err, &verr):
			utils.RespondMessage(w, http.StatusBadRequest, false, verr.Error())
		case errors.Is(err, identity.ErrUnsupported):
			utils.RespondMessage(w, http.StatusNotImplemented, false, authservice.MsgUnsupportedMethod)
		default:
			utils.RespondMessage(w, http.StatusBadGateway, false, authservice.MsgUnknown)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"verificationId": verificationID,
	})
}

func (h *Handler) handlePhoneConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VerificationID string `json:"verificationId"`
		Code           string `json:"code"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	session, err := h.gate.ConfirmPhoneLogin(r.Context(), req.VerificationID, req.Code)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCode) {
			utils.RespondMessage(w, http.StatusUnauthorized, false, authservice.MsgInvalidCode)
			return
		}
		h.respondSignInError(w, err)
		return
	}
	h.respondSession(w, http.StatusOK, session, authservice.MsgLoginOK)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.gate.Logout(r.Context(), middleware.TokenFromRequest(r))
	middleware.ClearSessionCookie(w, h.cookieSecure)
	utils.RespondMessage(w, http.StatusOK, true, "Signed out.")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"user":      session.User,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update identity.ProfileUpdate
	if err := utils.DecodeJSON(w, r, &update); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	session, err := h.gate.UpdateProfile(r.Context(), middleware.TokenFromRequest(r), update)
	if err != nil {
		var verr *authservice.ValidationError
		switch {
		case errors.Is(err, authservice.ErrUnauthenticated):
			utils.RespondMessage(w, http.StatusUnauthorized, false, authservice.MsgLoginRequired)
		case errors.As(err, &verr):
			utils.RespondMessage(w, http.StatusBadRequest, false, verr.Error())
		default:
			utils.RespondMessage(w, http.StatusInternalServerError, false, authservice.MsgProfileFailed)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": authservice.MsgProfileUpdated,
		"user":    session.User,
	})
}

func (h *Handler) respondSignInError(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrUnsupported) {
		utils.RespondMessage(w, http.StatusNotImplemented, false, authservice.MsgUnsupportedMethod)
		return
	}
	utils.RespondMessage(w, http.StatusUnauthorized, false, authservice.MsgLoginFailed)
}

func (h *Handler) respondSession(w http.ResponseWriter, status int, session identity.Session, message string) {
	middleware.SetSessionCookie(w, session, h.cookieSecure)
	utils.RespondJSON(w, status, sessionResponse{
		Success:   true,
		Message:   message,
		User:      session.User,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}
