package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmind/portal/backend/internal/identity/local"
	"github.com/campusmind/portal/backend/internal/middleware"
	"github.com/campusmind/portal/backend/internal/model/identity"
	authservice "github.com/campusmind/portal/backend/internal/service/auth"
)

func setup(t *testing.T) (*chi.Mux, identity.Session, identity.Session) {
	t.Helper()
	provider := local.New(nil, local.WithBcryptCost(bcrypt.MinCost))
	gate := authservice.NewGate(provider, authservice.Config{AdminEmail: "admin@campusmind.app", SessionTTL: time.Hour}, nil)

	ctx := context.Background()
	admin, err := gate.Signup(ctx, "admin@campusmind.app", "secret1")
	if err != nil {
		t.Fatalf("admin signup: %v", err)
	}
	student, err := gate.Signup(ctx, "sam@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("student signup: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Session(gate))
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.RequireAdmin)
		New(gate).RegisterRoutes(ar)
	})
	return r, admin, student
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAdminListsUsers(t *testing.T) {
	r, admin, _ := setup(t)

	resp := get(r, admin.Token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out struct {
		Users []identity.User `json:"users"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || len(out.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", out)
	}
	roles := map[string]identity.Role{}
	for _, u := range out.Users {
		roles[u.Email] = u.Role
	}
	if roles["admin@campusmind.app"] != identity.RoleAdmin || roles["sam@uni.edu"] != identity.RoleUser {
		t.Fatalf("unexpected roles %+v", roles)
	}
}

func TestNonAdminIsForbidden(t *testing.T) {
	r, _, student := setup(t)

	if resp := get(r, student.Token); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if resp := get(r, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
