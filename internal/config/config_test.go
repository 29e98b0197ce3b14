package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "HOST", "ALLOWED_ORIGINS", "FRONTEND_URL", "PUBLIC_URL", "CHANGE_BUS", "MAX_UPLOAD_BYTES", "SESSION_TTL", "RECAPTCHA_SECRET", "RECAPTCHA_SITE_KEY", "GOOGLE_CLIENT_ID", "CLOUDINARY_CLOUD_NAME"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "http://localhost:8080", cfg.Host)
	assert.Equal(t, cfg.Host, cfg.PublicURL)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, "redis", cfg.ChangeBus)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.False(t, cfg.ChallengeEnabled())
	assert.False(t, cfg.FederatedEnabled())
	assert.False(t, cfg.CloudinaryEnabled())
	assert.Empty(t, cfg.AllowedHost())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", " Production ")
	t.Setenv("HOST", "https://chat.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("CHANGE_BUS", "NATS")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("RECAPTCHA_SECRET", "s")
	t.Setenv("RECAPTCHA_SITE_KEY", "k")
	t.Setenv("GOOGLE_CLIENT_ID", "cid")
	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://chat.example.com", cfg.Host)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com", "https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "nats", cfg.ChangeBus)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.ChallengeEnabled())
	assert.True(t, cfg.FederatedEnabled())
	assert.Equal(t, "chat.example.com", cfg.AllowedHost())
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	t.Setenv("SESSION_TTL", "-5m")
	cfg := Load()
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
}
