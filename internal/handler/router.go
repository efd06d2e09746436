package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/handler/admin"
	authhandler "github.com/campusmind/portal/backend/internal/handler/auth"
	bookinghandler "github.com/campusmind/portal/backend/internal/handler/booking"
	cataloghandler "github.com/campusmind/portal/backend/internal/handler/catalog"
	chathandler "github.com/campusmind/portal/backend/internal/handler/chat"
	schedulehandler "github.com/campusmind/portal/backend/internal/handler/schedule"
	"github.com/campusmind/portal/backend/internal/handler/support"
	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/catalog"
	authservice "github.com/campusmind/portal/backend/internal/service/auth"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Deps 汇总路由所需的服务。
type Deps struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	CookieSecure   bool
	SupportTo      string

	Gate     *authservice.Gate
	Catalog  catalog.Store
	Chat     chathandler.Conversations
	Schedule schedulehandler.Composer
	Booking  bookinghandler.Booker
	Support  support.Mailer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.Session(deps.Gate))

	authHandler := authhandler.New(deps.Gate, deps.CookieSecure, deps.Logger)
	catalogHandler := cataloghandler.New(deps.Catalog)
	chatHandler := chathandler.New(deps.Chat, middleware.NewOriginPolicy(deps.AllowedOrigins), deps.Logger)
	scheduleHandler := schedulehandler.New(deps.Schedule, deps.Catalog)
	bookingHandler := bookinghandler.New(deps.Booking, deps.Logger)
	supportHandler := support.New(deps.Support, deps.SupportTo)
	adminHandler := admin.New(deps.Gate)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", handleHealthz)

		// 公开路由
		authHandler.RegisterRoutes(api)
		catalogHandler.RegisterRoutes(api)
		bookingHandler.RegisterRoutes(api)
		supportHandler.RegisterRoutes(api)

		// 需要登录
		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireSession)
			chatHandler.RegisterRoutes(protected)
			scheduleHandler.RegisterRoutes(protected)
			catalogHandler.RegisterProtectedRoutes(protected)
		})

		// 管理员
		api.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.RequireAdmin)
			adminHandler.RegisterRoutes(ar)
			bookingHandler.RegisterAdminRoutes(ar)
		})
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
