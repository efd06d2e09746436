package auth

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("admin role required")
	ErrAdminConflict   = errors.New("admin account exists with a different password")
)

// User-facing messages returned by the auth endpoints.
const (
	MsgSignupOK          = "Signup successful! Redirecting..."
	MsgEmailInUse        = "This email is already in use. Please try logging in."
	MsgUnknown           = "An unknown error occurred."
	MsgLoginOK           = "Login successful!"
	MsgLoginFailed       = "Invalid email or password. Please try again."
	MsgLoginRequired     = "You must be logged in to update your profile."
	MsgProfileUpdated    = "Profile updated successfully."
	MsgProfileFailed     = "Failed to update profile."
	MsgInvalidEmail      = "Please enter a valid email address."
	MsgPasswordTooShort  = "Password must be at least 6 characters long."
	MsgInvalidPhotoURL   = "Please enter a valid photo URL."
	MsgInvalidPhone      = "Please enter a valid phone number."
	MsgInvalidCode       = "The verification code is invalid or has expired."
	MsgUnsupportedMethod = "This sign-in method is not available."
)

// ValidationError collects input problems; Error joins them with a space.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

func (e *ValidationError) add(msg string) {
	e.Messages = append(e.Messages, msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Messages) == 0 {
		return nil
	}
	return e
}
