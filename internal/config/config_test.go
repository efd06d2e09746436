package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("AUTH_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Auth.Provider)
	assert.Equal(t, "admin@campusmind.app", cfg.Auth.AdminEmail)
	assert.Equal(t, "conversational.v3", cfg.Triage.SchemaVersion)
	assert.Equal(t, 20*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.NotEmpty(t, cfg.Triage.HelpChannel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_MAX_RETRIES", "5")
	t.Setenv("AI_TIMEOUT", "3s")
	t.Setenv("TRIAGE_SCHEMA_VERSION", "triage.v2")
	t.Setenv("ADMIN_EMAIL", " Root@Campus.Test ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.AI.ResolvedProvider())
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "triage.v2", cfg.Triage.SchemaVersion)
	assert.Equal(t, "root@campus.test", cfg.Auth.AdminEmail)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port with space", env: map[string]string{"PORT": "80 80"}},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "redis"}},
		{name: "postgres without dsn", env: map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{name: "firebase without key", env: map[string]string{"AUTH_PROVIDER": "firebase", "FIREBASE_API_KEY": ""}},
		{name: "unknown ai provider", env: map[string]string{"AI_PROVIDER": "llama"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestResolvedProviderPrefersArk(t *testing.T) {
	cfg := AIConfig{
		Ark:    ArkConfig{APIKey: "k", Model: "m"},
		OpenAI: OpenAIConfig{APIKey: "sk"},
	}
	assert.Equal(t, ProviderArk, cfg.ResolvedProvider())

	cfg.Ark.Model = ""
	assert.Equal(t, ProviderOpenAI, cfg.ResolvedProvider())

	cfg.OpenAI.APIKey = ""
	assert.Equal(t, "", cfg.ResolvedProvider())
}
