// Package firebase signs users in through the Identity Toolkit REST API.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/internal/model/identity"
)

const defaultRequestURI = "http://localhost"

// Provider talks to Identity Toolkit with an API key. It has no admin
// credentials, so user enumeration is unavailable.
type Provider struct {
	client     *resty.Client
	apiKey     string
	requestURI string
	logger     *zap.Logger
}

// New builds a provider from cfg.
func New(cfg config.FirebaseConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, identity.ErrNotConfigured
	}
	requestURI := cfg.RequestURI
	if requestURI == "" {
		requestURI = defaultRequestURI
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")

	return &Provider{
		client:     client,
		apiKey:     cfg.APIKey,
		requestURI: requestURI,
		logger:     logging.OrNop(logger).Named("identity.firebase"),
	}, nil
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "firebase" }

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	PhoneNumber string `json:"phoneNumber"`
	IDToken     string `json:"idToken"`
	ProviderID  string `json:"providerId"`
}

func (a accountResponse) grant(provider string) identity.Grant {
	if a.ProviderID != "" {
		provider = a.ProviderID
	}
	return identity.Grant{
		User: identity.User{
			ID:          a.LocalID,
			Email:       strings.ToLower(a.Email),
			DisplayName: a.DisplayName,
			PhotoURL:    a.PhotoURL,
			PhoneNumber: a.PhoneNumber,
			Role:        identity.RoleUser,
			Provider:    provider,
		},
		Token: a.IDToken,
	}
}

// SignUp implements auth.Provider.
func (p *Provider) SignUp(ctx context.Context, email, password string) (identity.Grant, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return identity.Grant{}, err
	}
	return out.grant("password"), nil
}

// SignIn implements auth.Provider.
func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Grant, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return identity.Grant{}, err
	}
	return out.grant("password"), nil
}

// SignInWithGoogle exchanges a Google ID token.
func (p *Provider) SignInWithGoogle(ctx context.Context, idToken string) (identity.Grant, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", "google.com")

	var out accountResponse
	err := p.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          p.requestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &out)
	if err != nil {
		return identity.Grant{}, err
	}
	return out.grant("google.com"), nil
}

// StartPhoneSignIn sends an SMS code and returns the session info.
func (p *Provider) StartPhoneSignIn(ctx context.Context, phone, recaptchaToken string) (string, error) {
	var out struct {
		SessionInfo string `json:"sessionInfo"`
	}
	err := p.call(ctx, "accounts:sendVerificationCode", map[string]any{
		"phoneNumber":    phone,
		"recaptchaToken": recaptchaToken,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.SessionInfo, nil
}

// ConfirmPhoneSignIn verifies the SMS code.
func (p *Provider) ConfirmPhoneSignIn(ctx context.Context, verificationID, code string) (identity.Grant, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:signInWithPhoneNumber", map[string]any{
		"sessionInfo": verificationID,
		"code":        code,
	}, &out)
	if err != nil {
		return identity.Grant{}, err
	}
	return out.grant("phone"), nil
}

// UpdateProfile implements auth.Provider using the caller's ID token.
func (p *Provider) UpdateProfile(ctx context.Context, grant identity.Grant, update identity.ProfileUpdate) (identity.User, error) {
	body := map[string]any{
		"idToken":           grant.Token,
		"returnSecureToken": false,
	}
	if update.DisplayName != nil {
		body["displayName"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		body["photoUrl"] = *update.PhotoURL
	}

	var out accountResponse
	if err := p.call(ctx, "accounts:update", body, &out); err != nil {
		return identity.User{}, err
	}

	user := grant.User
	if out.DisplayName != "" || update.DisplayName != nil {
		user.DisplayName = out.DisplayName
	}
	if out.PhotoURL != "" || update.PhotoURL != nil {
		user.PhotoURL = out.PhotoURL
	}
	return user, nil
}

// ListUsers needs service-account credentials, which this provider does not hold.
func (p *Provider) ListUsers(context.Context) ([]identity.User, error) {
	return nil, identity.ErrNotConfigured
}

func (p *Provider) call(ctx context.Context, method string, body map[string]any, out any) error {
	var apiErr apiError
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	if resp.IsError() {
		mapped := mapError(apiErr.Error.Message)
		p.logger.Debug("identity toolkit error",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode()),
			zap.String("code", apiErr.Error.Message),
		)
		return fmt.Errorf("%s: %w", method, mapped)
	}
	return nil
}

var errorCodes = map[string]error{
	"EMAIL_EXISTS":              identity.ErrEmailInUse,
	"EMAIL_NOT_FOUND":           identity.ErrInvalidCredentials,
	"INVALID_PASSWORD":          identity.ErrInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS": identity.ErrInvalidCredentials,
	"USER_DISABLED":             identity.ErrInvalidCredentials,
	"INVALID_IDP_RESPONSE":      identity.ErrInvalidCredentials,
	"INVALID_ID_TOKEN":          identity.ErrInvalidCredentials,
	"USER_NOT_FOUND":            identity.ErrUserNotFound,
	"INVALID_CODE":              identity.ErrInvalidCode,
	"INVALID_SESSION_INFO":      identity.ErrInvalidCode,
	"SESSION_EXPIRED":           identity.ErrInvalidCode,
	"CODE_EXPIRED":              identity.ErrInvalidCode,
	"OPERATION_NOT_ALLOWED":     identity.ErrUnsupported,
}

// mapError 把 "WEAK_PASSWORD : ..." 之类的返回码映射为领域错误。
func mapError(message string) error {
	code := strings.TrimSpace(message)
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}
	if err, ok := errorCodes[code]; ok {
		return err
	}
	if code == "" {
		return errors.New("identity toolkit request failed")
	}
	return errors.New(strings.ToLower(code))
}
