package auth

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/identity"
)

const minPasswordLength = 6

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Config controls the Gate.
type Config struct {
	AdminEmail string
	SessionTTL time.Duration
}

// Gate owns authentication state: it validates input, delegates to the
// identity provider, assigns roles, and issues sessions.
type Gate struct {
	provider   Provider
	sessions   *SessionStore
	adminEmail string
	logger     *zap.Logger
}

// NewGate wires a Gate around provider.
func NewGate(provider Provider, cfg Config, logger *zap.Logger) *Gate {
	return &Gate{
		provider:   provider,
		sessions:   NewSessionStore(cfg.SessionTTL),
		adminEmail: normalizeEmail(cfg.AdminEmail),
		logger:     logging.OrNop(logger).Named("auth"),
	}
}

// SessionTTL returns how long issued sessions stay valid.
func (g *Gate) SessionTTL() time.Duration {
	return g.sessions.TTL()
}

// Signup registers a new account and opens a session for it.
func (g *Gate) Signup(ctx context.Context, email, password string) (identity.Session, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return identity.Session{}, err
	}

	grant, err := g.provider.SignUp(ctx, email, password)
	if err != nil {
		if !errors.Is(err, identity.ErrEmailInUse) {
			g.logger.Error("signup failed", zap.String("email", email), zap.Error(err))
		}
		return identity.Session{}, err
	}

	if g.isAdminEmail(email) {
		grant = g.ensureAdminName(ctx, grant, "Admin")
	}
	return g.open(grant)
}

// Login checks credentials and opens a session.
func (g *Gate) Login(ctx context.Context, email, password string) (identity.Session, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return identity.Session{}, err
	}

	grant, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		g.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	return g.open(grant)
}

// LoginWithGoogle exchanges a Google ID token for a session.
func (g *Gate) LoginWithGoogle(ctx context.Context, idToken string) (identity.Session, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	grant, err := g.provider.SignInWithGoogle(ctx, idToken)
	if err != nil {
		g.logger.Warn("google sign-in failed", zap.Error(err))
		return identity.Session{}, err
	}
	return g.open(grant)
}

// StartPhoneLogin sends a one-time code and returns the verification id.
func (g *Gate) StartPhoneLogin(ctx context.Context, phone, recaptchaToken string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", &ValidationError{Messages: []string{MsgInvalidPhone}}
	}
	id, err := g.provider.StartPhoneSignIn(ctx, phone, recaptchaToken)
	if err != nil {
		g.logger.Warn("phone sign-in start failed", zap.Error(err))
		return "", err
	}
	return id, nil
}

// ConfirmPhoneLogin completes a phone sign-in.
func (g *Gate) ConfirmPhoneLogin(ctx context.Context, verificationID, code string) (identity.Session, error) {
	verificationID = strings.TrimSpace(verificationID)
	code = strings.TrimSpace(code)
	if verificationID == "" || code == "" {
		return identity.Session{}, identity.ErrInvalidCode
	}
	grant, err := g.provider.ConfirmPhoneSignIn(ctx, verificationID, code)
	if err != nil {
		g.logger.Warn("phone sign-in confirm failed", zap.Error(err))
		return identity.Session{}, err
	}
	return g.open(grant)
}

// Logout ends the session. Failures are only logged.
func (g *Gate) Logout(_ context.Context, token string) {
	if token == "" {
		return
	}
	session, ok := g.sessions.Get(token)
	g.sessions.Delete(token)
	if ok {
		g.logger.Info("signed out", zap.String("user_id", session.User.ID))
	}
}

// Resolve returns the active session for token.
func (g *Gate) Resolve(_ context.Context, token string) (identity.Session, error) {
	if token == "" {
		return identity.Session{}, ErrUnauthenticated
	}
	session, ok := g.sessions.Get(token)
	if !ok {
		return identity.Session{}, ErrUnauthenticated
	}
	return session, nil
}

// UpdateProfile changes the provided fields of the signed-in user's profile.
func (g *Gate) UpdateProfile(ctx context.Context, token string, update identity.ProfileUpdate) (identity.Session, error) {
	session, err := g.Resolve(ctx, token)
	if err != nil {
		return identity.Session{}, err
	}

	update, err = normalizeProfile(update)
	if err != nil {
		return identity.Session{}, err
	}
	if update.Empty() {
		return session, nil
	}

	user, err := g.provider.UpdateProfile(ctx, identity.Grant{User: session.User, Token: session.ProviderToken}, update)
	if err != nil {
		g.logger.Error("profile update failed", zap.String("user_id", session.User.ID), zap.Error(err))
		return identity.Session{}, err
	}
	user.Role = g.roleFor(user.Email)

	updated, ok := g.sessions.UpdateUser(token, user)
	if !ok {
		return identity.Session{}, ErrUnauthenticated
	}
	return updated, nil
}

// ListUsers returns every known account. Providers that cannot enumerate
// users yield an empty list.
func (g *Gate) ListUsers(ctx context.Context, actor identity.User) ([]identity.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	users, err := g.provider.ListUsers(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			g.logger.Warn("user listing unavailable", zap.String("provider", g.provider.Name()))
		} else {
			g.logger.Error("user listing failed", zap.Error(err))
		}
		return []identity.User{}, nil
	}

	for i := range users {
		users[i].Role = g.roleFor(users[i].Email)
	}
	return users, nil
}

// Provision makes sure the admin account exists with seed's password.
// It is safe to run repeatedly; created reports whether the account was new.
func (g *Gate) Provision(ctx context.Context, seed identity.AdminSeed) (identity.User, bool, error) {
	seed.Email = normalizeEmail(seed.Email)
	if err := validateCredentials(seed.Email, seed.Password); err != nil {
		return identity.User{}, false, err
	}
	if seed.DisplayName == "" {
		seed.DisplayName = "Admin"
	}

	created := false
	grant, err := g.provider.SignIn(ctx, seed.Email, seed.Password)
	if err != nil {
		grant, err = g.provider.SignUp(ctx, seed.Email, seed.Password)
		if errors.Is(err, identity.ErrEmailInUse) {
			return identity.User{}, false, ErrAdminConflict
		}
		if err != nil {
			return identity.User{}, false, err
		}
		created = true
	}

	grant = g.ensureAdminName(ctx, grant, seed.DisplayName)
	grant.User.Role = g.roleFor(seed.Email)
	if !grant.User.IsAdmin() {
		g.logger.Warn("provisioned account does not match ADMIN_EMAIL", zap.String("email", seed.Email))
	}

	g.logger.Info("admin provisioned", zap.String("email", seed.Email), zap.Bool("created", created))
	return grant.User, created, nil
}

// Sweep drops expired sessions.
func (g *Gate) Sweep() int {
	return g.sessions.Sweep()
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (g *Gate) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				g.logger.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (g *Gate) open(grant identity.Grant) (identity.Session, error) {
	grant.User.Role = g.roleFor(grant.User.Email)
	grant.User.LastSignIn = time.Now().UTC()
	session, err := g.sessions.Create(grant)
	if err != nil {
		return identity.Session{}, err
	}
	g.logger.Info("signed in",
		zap.String("user_id", grant.User.ID),
		zap.String("provider", g.provider.Name()),
		zap.String("role", string(grant.User.Role)),
	)
	return session, nil
}

func (g *Gate) ensureAdminName(ctx context.Context, grant identity.Grant, name string) identity.Grant {
	if grant.User.DisplayName == name {
		return grant
	}
	user, err := g.provider.UpdateProfile(ctx, grant, identity.ProfileUpdate{DisplayName: &name})
	if err != nil {
		g.logger.Warn("could not set admin display name", zap.Error(err))
		return grant
	}
	grant.User = user
	return grant
}

func (g *Gate) roleFor(email string) identity.Role {
	if g.isAdminEmail(email) {
		return identity.RoleAdmin
	}
	return identity.RoleUser
}

func (g *Gate) isAdminEmail(email string) bool {
	return g.adminEmail != "" && normalizeEmail(email) == g.adminEmail
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	verr := &ValidationError{}
	if !validEmail(email) {
		verr.add(MsgInvalidEmail)
	}
	if len(password) < minPasswordLength {
		verr.add(MsgPasswordTooShort)
	}
	return verr.orNil()
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeProfile(update identity.ProfileUpdate) (identity.ProfileUpdate, error) {
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			update.DisplayName = nil
		} else {
			update.DisplayName = &name
		}
	}
	if update.PhotoURL != nil {
		raw := strings.TrimSpace(*update.PhotoURL)
		if raw == "" {
			update.PhotoURL = nil
		} else {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return update, &ValidationError{Messages: []string{MsgInvalidPhotoURL}}
			}
			update.PhotoURL = &raw
		}
	}
	return update, nil
}
