// Package local is an in-process identity provider backed by bcrypt hashes.
package local

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/identity"
)

const (
	codeLength = 6
	codeTTL    = 5 * time.Minute
)

// CodeSender delivers a one-time phone code.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogCodeSender writes codes to the log; useful for development.
type LogCodeSender struct {
	Logger *zap.Logger
}

// SendCode implements CodeSender.
func (l LogCodeSender) SendCode(_ context.Context, phone, code string) error {
	logging.OrNop(l.Logger).Info("phone verification code", zap.String("phone", phone), zap.String("code", code))
	return nil
}

type account struct {
	user identity.User
	hash []byte
}

type pendingCode struct {
	phone   string
	code    string
	expires time.Time
}

// Provider keeps accounts in memory.
type Provider struct {
	mu       sync.RWMutex
	accounts map[string]*account // by user id
	byEmail  map[string]string
	byPhone  map[string]string
	pending  map[string]pendingCode

	codes  CodeSender
	cost   int
	now    func() time.Time
	logger *zap.Logger
}

// Option customises the provider.
type Option func(*Provider)

// WithCodeSender overrides how phone codes are delivered.
func WithCodeSender(s CodeSender) Option {
	return func(p *Provider) { p.codes = s }
}

// WithBcryptCost sets the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

// New creates an empty provider.
func New(logger *zap.Logger, opts ...Option) *Provider {
	logger = logging.OrNop(logger).Named("identity.local")
	p := &Provider{
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
		pending:  make(map[string]pendingCode),
		codes:    LogCodeSender{Logger: logger},
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "local" }

// SignUp implements auth.Provider.
func (p *Provider) SignUp(_ context.Context, email, password string) (identity.Grant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return identity.Grant{}, fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return identity.Grant{}, identity.ErrEmailInUse
	}

	now := p.now().UTC()
	acc := &account{
		user: identity.User{
			ID:        uuid.NewString(),
			Email:     email,
			Role:      identity.RoleUser,
			Provider:  "password",
			CreatedAt: now,
		},
		hash: hash,
	}
	p.accounts[acc.user.ID] = acc
	p.byEmail[email] = acc.user.ID
	return identity.Grant{User: acc.user, Token: acc.user.ID}, nil
}

// SignIn implements auth.Provider.
func (p *Provider) SignIn(_ context.Context, email, password string) (identity.Grant, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.RLock()
	id, ok := p.byEmail[email]
	var acc account
	if ok {
		acc = *p.accounts[id]
	}
	p.mu.RUnlock()

	if !ok {
		return identity.Grant{}, identity.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return identity.Grant{}, identity.ErrInvalidCredentials
	}
	return identity.Grant{User: acc.user, Token: acc.user.ID}, nil
}

// SignInWithGoogle is not available without a Google backend.
func (p *Provider) SignInWithGoogle(context.Context, string) (identity.Grant, error) {
	return identity.Grant{}, identity.ErrUnsupported
}

// StartPhoneSignIn generates a code, hands it to the CodeSender and returns
// the verification id.
func (p *Provider) StartPhoneSignIn(ctx context.Context, phone, _ string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	p.mu.Lock()
	p.pending[id] = pendingCode{phone: phone, code: code, expires: p.now().Add(codeTTL)}
	p.mu.Unlock()

	if err := p.codes.SendCode(ctx, phone, code); err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return "", fmt.Errorf("send verification code: %w", err)
	}
	return id, nil
}

// ConfirmPhoneSignIn checks the code and signs the phone owner in, creating
// the account on first use. Codes are single-use.
func (p *Provider) ConfirmPhoneSignIn(_ context.Context, verificationID, code string) (identity.Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.pending[verificationID]
	if !ok || p.now().After(pending.expires) {
		delete(p.pending, verificationID)
		return identity.Grant{}, identity.ErrInvalidCode
	}
	if pending.code != code {
		return identity.Grant{}, identity.ErrInvalidCode
	}
	delete(p.pending, verificationID)

	if id, ok := p.byPhone[pending.phone]; ok {
		acc := p.accounts[id]
		return identity.Grant{User: acc.user, Token: id}, nil
	}

	acc := &account{user: identity.User{
		ID:          uuid.NewString(),
		PhoneNumber: pending.phone,
		Role:        identity.RoleUser,
		Provider:    "phone",
		CreatedAt:   p.now().UTC(),
	}}
	p.accounts[acc.user.ID] = acc
	p.byPhone[pending.phone] = acc.user.ID
	return identity.Grant{User: acc.user, Token: acc.user.ID}, nil
}

// UpdateProfile implements auth.Provider.
func (p *Provider) UpdateProfile(_ context.Context, grant identity.Grant, update identity.ProfileUpdate) (identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[grant.User.ID]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	if update.DisplayName != nil {
		acc.user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		acc.user.PhotoURL = *update.PhotoURL
	}
	return acc.user, nil
}

// ListUsers implements auth.Provider, oldest account first.
func (p *Provider) ListUsers(context.Context) ([]identity.User, error) {
	p.mu.RLock()
	users := make([]identity.User, 0, len(p.accounts))
	for _, acc := range p.accounts {
		users = append(users, acc.user)
	}
	p.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func randomCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
