package auth

import (
	"context"

	"github.com/campusmind/portal/backend/internal/model/identity"
)

// Provider is the identity backend the Gate delegates credential checks to.
type Provider interface {
	Name() string
	SignUp(ctx context.Context, email, password string) (identity.Grant, error)
	SignIn(ctx context.Context, email, password string) (identity.Grant, error)
	SignInWithGoogle(ctx context.Context, idToken string) (identity.Grant, error)
	StartPhoneSignIn(ctx context.Context, phone, recaptchaToken string) (string, error)
	ConfirmPhoneSignIn(ctx context.Context, verificationID, code string) (identity.Grant, error)
	UpdateProfile(ctx context.Context, grant identity.Grant, update identity.ProfileUpdate) (identity.User, error)
	ListUsers(ctx context.Context) ([]identity.User, error)
}
