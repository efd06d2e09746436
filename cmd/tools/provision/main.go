package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/identity/firebase"
	"github.com/campusmind/portal/backend/internal/identity/local"
	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/catalog"
	"github.com/campusmind/portal/backend/internal/model/identity"
	"github.com/campusmind/portal/backend/internal/service/auth"
)

// providerFactory 根据认证配置创建身份提供方
type providerFactory func(cfg config.AuthConfig, logger *zap.Logger) (auth.Provider, error)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(defaultProvider).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultProvider(cfg config.AuthConfig, logger *zap.Logger) (auth.Provider, error) {
	if cfg.Provider == "firebase" {
		p, err := firebase.New(cfg.Firebase, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	logger.Warn("AUTH_PROVIDER=local keeps accounts in memory; the provisioned admin only lives for this run")
	return local.New(logger), nil
}

func newRootCmd(newProvider providerFactory) *cobra.Command {
	var (
		logLevel string
		logger   *zap.Logger
	)

	root := &cobra.Command{
		Use:           "provision",
		Short:         "Provision CampusMind accounts and inspect seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(config.LogConfig{Level: logLevel, Format: "console"})
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newAdminCmd(newProvider, func() *zap.Logger { return logger }))
	root.AddCommand(newCatalogCmd())
	return root
}

func newAdminCmd(newProvider providerFactory, loggerFn func() *zap.Logger) *cobra.Command {
	var email, password, displayName string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create or verify the administrator account",
		Long: `Create the administrator account if it does not exist yet.

Running it again with the same password is a no-op. If the email is already
registered with a different password the command fails instead of taking
the account over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if email == "" {
				email = cfg.Auth.AdminEmail
			}
			if password == "" {
				password = cfg.Auth.AdminPassword
			}
			if displayName == "" {
				displayName = cfg.Auth.AdminDisplayName
			}
			if password == "" {
				return fmt.Errorf("--password or ADMIN_BOOTSTRAP_PASSWORD is required")
			}

			logger := logging.OrNop(loggerFn())
			provider, err := newProvider(cfg.Auth, logger)
			if err != nil {
				return fmt.Errorf("identity provider: %w", err)
			}

			gate := auth.NewGate(provider, auth.Config{AdminEmail: email, SessionTTL: cfg.Auth.SessionTTL}, logger)
			user, created, err := gate.Provision(cmd.Context(), identity.AdminSeed{
				Email:       email,
				Password:    password,
				DisplayName: displayName,
			})
			if err != nil {
				return fmt.Errorf("provision admin: %w", err)
			}

			state := "already present"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s): %s\n", user.Email, user.DisplayName, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (defaults to ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to ADMIN_BOOTSTRAP_PASSWORD)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "admin display name")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the embedded catalog seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !summary {
				_, err := out.Write(catalog.SeedYAML())
				return err
			}
			seed, err := catalog.Seed()
			if err != nil {
				return err
			}
			return printSummary(out, seed)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts instead of the raw YAML")
	return cmd
}

func printSummary(w io.Writer, c catalog.Catalog) error {
	_, err := fmt.Fprintf(w, "resources: %d\ncounselors: %d\ntime slots: %d\nforum posts: %d\nconsultations: %d\n",
		len(c.Resources), len(c.Counselors), len(c.TimeSlots), len(c.ForumPosts), len(c.Consultations))
	return err
}
