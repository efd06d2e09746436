package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/handler"
	"github.com/campusmind/portal/backend/internal/identity/firebase"
	"github.com/campusmind/portal/backend/internal/identity/local"
	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/catalog"
	"github.com/campusmind/portal/backend/internal/model/identity"
	"github.com/campusmind/portal/backend/internal/service/ai"
	"github.com/campusmind/portal/backend/internal/service/auth"
	"github.com/campusmind/portal/backend/internal/service/booking"
	"github.com/campusmind/portal/backend/internal/service/chat"
	"github.com/campusmind/portal/backend/internal/service/mail"
	"github.com/campusmind/portal/backend/internal/service/schedule"
	"github.com/campusmind/portal/backend/internal/service/triage"
	"github.com/campusmind/portal/backend/internal/store/conversation"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	seed, err := catalog.Seed()
	if err != nil {
		return err
	}
	catalogStore := catalog.NewMemoryStore(seed)

	store, closeStore, err := conversation.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close conversation store", zap.Error(err))
		}
	}()

	// 推理服务，未配置时分诊走固定回退文案
	var completer ai.Completer
	invoker, err := ai.New(ctx, cfg.AI, logger.Named("ai"))
	switch {
	case err == nil:
		completer = invoker
		logger.Info("inference provider ready", zap.String("provider", cfg.AI.ResolvedProvider()))
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("no inference provider configured, triage will use the fallback reply")
	default:
		logger.Warn("failed to initialize inference provider, continuing without it", zap.Error(err))
	}

	triageSvc, err := triage.NewService(completer, triage.Config{
		SchemaVersion: cfg.Triage.SchemaVersion,
		HelpChannel:   cfg.Triage.HelpChannel,
	}, logger)
	if err != nil {
		return err
	}

	mailSvc := mail.NewService(cfg.Mail, nil, logger)
	chatOpts := []chat.Option{}
	var bookingMailer booking.Mailer
	if mailSvc.Configured() {
		chatOpts = append(chatOpts, chat.WithNotifier(mailSvc))
		bookingMailer = mailSvc
	} else {
		logger.Warn("SMTP not configured, support and confirmation emails are disabled")
	}

	chatSvc := chat.NewService(store, triageSvc, logger, chatOpts...)
	scheduleSvc := schedule.NewService(completer, logger)
	bookingSvc := booking.NewService(catalogStore, booking.NewMemoryRepository(), bookingMailer, logger)

	provider, err := newIdentityProvider(cfg.Auth, logger)
	if err != nil {
		return err
	}
	gate := auth.NewGate(provider, auth.Config{
		AdminEmail: cfg.Auth.AdminEmail,
		SessionTTL: cfg.Auth.SessionTTL,
	}, logger)

	if cfg.Auth.AdminPassword != "" {
		_, created, err := gate.Provision(ctx, identity.AdminSeed{
			Email:       cfg.Auth.AdminEmail,
			Password:    cfg.Auth.AdminPassword,
			DisplayName: cfg.Auth.AdminDisplayName,
		})
		if err != nil {
			logger.Error("admin provisioning failed", zap.Error(err))
		} else {
			logger.Info("admin account ready", zap.Bool("created", created))
		}
	}

	router := handler.NewRouter(handler.Deps{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CookieSecure:   cfg.Auth.CookieSecure,
		SupportTo:      cfg.Mail.SupportTo,
		Gate:           gate,
		Catalog:        catalogStore,
		Chat:           chatSvc,
		Schedule:       scheduleSvc,
		Booking:        bookingSvc,
		Support:        mailSvc,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("CampusMind backend listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		chatSvc.Wait()
		return err
	})
	g.Go(func() error {
		return gate.RunJanitor(gctx, sessionSweepInterval)
	})

	return g.Wait()
}

func newIdentityProvider(cfg config.AuthConfig, logger *zap.Logger) (auth.Provider, error) {
	switch cfg.Provider {
	case "firebase":
		provider, err := firebase.New(cfg.Firebase, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		logger.Warn("using in-memory identity provider, accounts are lost on restart")
		return local.New(logger), nil
	}
}
