package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmind/portal/backend/internal/identity/local"
	"github.com/campusmind/portal/backend/internal/middleware"
	authservice "github.com/campusmind/portal/backend/internal/service/auth"
)

func setupRouter() *chi.Mux {
	provider := local.New(nil, local.WithBcryptCost(bcrypt.MinCost))
	gate := authservice.NewGate(provider, authservice.Config{AdminEmail: "admin@campusmind.app", SessionTTL: time.Hour}, nil)
	handler := New(gate, false, nil)

	r := chi.NewRouter()
	r.Use(middleware.Session(gate))
	handler.RegisterRoutes(r)
	return r
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoURL"`
		Role        string `json:"role"`
	} `json:"user"`
}

func do(t *testing.T, r http.Handler, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, result) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var out result
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	return resp, out
}

func sessionCookie(resp *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

func TestSignupSetsCookie(t *testing.T) {
	r := setupRouter()

	resp, out := do(t, r, http.MethodPost, "/auth/signup", `{"email":"sam@uni.edu","password":"secret1"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if out.Message != authservice.MsgSignupOK {
		t.Fatalf("unexpected message %q", out.Message)
	}
	cookie := sessionCookie(resp)
	if cookie == nil || !cookie.HttpOnly || cookie.Value != out.Token {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	resp, out = do(t, r, http.MethodPost, "/auth/signup", `{"email":"sam@uni.edu","password":"secret1"}`)
	if resp.Code != http.StatusConflict || out.Message != authservice.MsgEmailInUse {
		t.Fatalf("expected conflict, got %d %q", resp.Code, out.Message)
	}
}

func TestSignupValidationMessage(t *testing.T) {
	r := setupRouter()
	resp, out := do(t, r, http.MethodPost, "/auth/signup", `{"email":"nope","password":"1"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	want := authservice.MsgInvalidEmail + " " + authservice.MsgPasswordTooShort
	if out.Message != want {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestLoginAndProfileFlow(t *testing.T) {
	r := setupRouter()
	do(t, r, http.MethodPost, "/auth/signup", `{"email":"sam@uni.edu","password":"secret1"}`)

	resp, out := do(t, r, http.MethodPost, "/auth/login", `{"email":"sam@uni.edu","password":"wrong12"}`)
	if resp.Code != http.StatusUnauthorized || out.Message != authservice.MsgLoginFailed {
		t.Fatalf("expected generic failure, got %d %q", resp.Code, out.Message)
	}

	resp, out = do(t, r, http.MethodPost, "/auth/login", `{"email":"sam@uni.edu","password":"secret1"}`)
	if resp.Code != http.StatusOK || out.Message != authservice.MsgLoginOK {
		t.Fatalf("expected login, got %d %q", resp.Code, out.Message)
	}
	cookie := sessionCookie(resp)

	resp, out = do(t, r, http.MethodPatch, "/auth/profile", `{"displayName":"Sam"}`, cookie)
	if resp.Code != http.StatusOK || out.Message != authservice.MsgProfileUpdated || out.User.DisplayName != "Sam" {
		t.Fatalf("unexpected profile response %d %+v", resp.Code, out)
	}

	resp, _ = do(t, r, http.MethodGet, "/auth/me", "", cookie)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"displayName":"Sam"`) {
		t.Fatalf("unexpected me response %d %s", resp.Code, resp.Body.String())
	}

	resp, _ = do(t, r, http.MethodPost, "/auth/logout", "", cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if c := sessionCookie(resp); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", c)
	}

	resp, _ = do(t, r, http.MethodGet, "/auth/me", "", cookie)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.Code)
	}
}

func TestUpdateProfileRequiresLogin(t *testing.T) {
	r := setupRouter()
	resp, out := do(t, r, http.MethodPatch, "/auth/profile", `{"displayName":"Sam"}`)
	if resp.Code != http.StatusUnauthorized || out.Message != authservice.MsgLoginRequired {
		t.Fatalf("unexpected response %d %q", resp.Code, out.Message)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	r := setupRouter()
	_, out := do(t, r, http.MethodPost, "/auth/signup", `{"email":"sam@uni.edu","password":"secret1"}`)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestGoogleUnsupportedWithLocalProvider(t *testing.T) {
	r := setupRouter()
	resp, out := do(t, r, http.MethodPost, "/auth/google", `{"idToken":"abc"}`)
	if resp.Code != http.StatusNotImplemented || out.Message != authservice.MsgUnsupportedMethod {
		t.Fatalf("unexpected response %d %q", resp.Code, out.Message)
	}
}
