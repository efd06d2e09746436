package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/identity/local"
	"github.com/campusmind/portal/backend/internal/service/auth"
)

func sharedProvider() (providerFactory, *local.Provider) {
	p := local.New(nil, local.WithBcryptCost(bcrypt.MinCost))
	return func(config.AuthConfig, *zap.Logger) (auth.Provider, error) { return p, nil }, p
}

func execute(t *testing.T, factory providerFactory, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAdminIsIdempotent(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "local")
	factory, _ := sharedProvider()
	args := []string{"admin", "--email", "admin@campusmind.app", "--password", "secret123"}

	out, err := execute(t, factory, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "admin admin@campusmind.app (Admin): created")

	out, err = execute(t, factory, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "already present")
}

func TestAdminRefusesTakeover(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "local")
	factory, _ := sharedProvider()

	_, err := execute(t, factory, "admin", "--email", "admin@campusmind.app", "--password", "secret123")
	require.NoError(t, err)

	_, err = execute(t, factory, "admin", "--email", "admin@campusmind.app", "--password", "different1")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAdminConflict)
}

func TestAdminRequiresPassword(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("ADMIN_BOOTSTRAP_PASSWORD", "")
	factory, _ := sharedProvider()

	_, err := execute(t, factory, "admin")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "password"))
}

func TestCatalogSummary(t *testing.T) {
	out, err := execute(t, nil, "catalog", "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "time slots: 7")

	out, err = execute(t, nil, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "counselors:")
}
