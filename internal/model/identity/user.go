package identity

import (
	"errors"
	"time"
)

// Role 区分普通用户与管理员。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotConfigured      = errors.New("identity provider not configured for this operation")
	ErrUnsupported        = errors.New("sign-in method not supported by identity provider")
	ErrInvalidCode        = errors.New("invalid verification code")
)

// User is the identity visible to the rest of the backend.
type User struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Role        Role      `json:"role"`
	Provider    string    `json:"provider,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	LastSignIn  time.Time `json:"lastSignIn,omitempty"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session 绑定一个登录用户与其服务端令牌。
type Session struct {
	Token         string    `json:"-"`
	User          User      `json:"user"`
	ProviderToken string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ProfileUpdate carries optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// Empty reports whether no field is being changed.
func (p ProfileUpdate) Empty() bool {
	return p.DisplayName == nil && p.PhotoURL == nil
}

// AdminSeed describes the administrator identity to provision.
type AdminSeed struct {
	Email       string
	Password    string
	DisplayName string
}

// Grant is what an identity provider returns after a successful sign-in.
type Grant struct {
	User  User
	Token string
}
