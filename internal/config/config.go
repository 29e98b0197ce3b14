package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment    string // ENV: production, development, etc.
	Port           string
	Host           string   // Raw HOST env (e.g. https://chat.example.com)
	PublicURL      string   // Base URL objects are served from; defaults to Host
	AllowedOrigins []string // CORS and WebSocket origin check: ALLOWED_ORIGINS or FRONTEND_URL(s)

	MongoURI      string
	MongoDatabase string
	PostgresURI   string
	RedisURI      string

	ChangeBus string // "redis" (default), "nats" or "local"
	NatsURL   string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	BlobDir             string // Pebble object store, used when Cloudinary is not configured

	RecaptchaSecret  string
	RecaptchaSiteKey string
	GoogleClientID   string

	MaxUploadBytes int64
	SessionTTL     time.Duration
	TrustProxy     bool // honour X-Forwarded-For / X-Real-IP
}

const (
	DefaultMaxUploadBytes = 25 << 20
	DefaultSessionTTL     = 7 * 24 * time.Hour
)

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	port := getEnv("PORT", "8080")
	host := strings.TrimRight(getEnv("HOST", "http://localhost:"+port), "/")

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", ""), getEnv("FRONTEND_URL_2", ""), getEnv("FRONTEND_URL_3", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	// The page is served by this process, so its own origin is always allowed.
	if !containsOrigin(allowedOrigins, host) {
		allowedOrigins = append(allowedOrigins, host)
	}

	return &Config{
		Environment:    env,
		Port:           port,
		Host:           host,
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", host), "/"),
		AllowedOrigins: allowedOrigins,

		MongoURI:      getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		MongoDatabase: getEnv("MONGODB_DATABASE", "globalchat"),
		PostgresURI:   getEnv("POSTGRES_URI", "postgres://localhost:5432/globalchat?sslmode=disable"),
		RedisURI:      getEnv("REDIS_URI", "redis://localhost:6379/0"),

		ChangeBus: strings.ToLower(getEnv("CHANGE_BUS", "redis")),
		NatsURL:   getEnv("NATS_URL", "nats://127.0.0.1:4222"),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "globalchat"),
		BlobDir:             getEnv("BLOB_DIR", "./data/objects"),

		RecaptchaSecret:  getEnv("RECAPTCHA_SECRET", ""),
		RecaptchaSiteKey: getEnv("RECAPTCHA_SITE_KEY", ""),
		GoogleClientID:   getEnv("GOOGLE_CLIENT_ID", ""),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		SessionTTL:     getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		TrustProxy:     getEnv("TRUST_PROXY", "") == "true",
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedHost is the bare hostname of Host, checked against r.Host in
// production. Empty outside production.
func (c *Config) AllowedHost() string {
	if !c.IsProduction() {
		return ""
	}
	if u, err := url.Parse(c.Host); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return ""
}

// CloudinaryEnabled reports whether uploads go to Cloudinary instead of the
// local Pebble store.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ChallengeEnabled reports whether sign-up requires a reCAPTCHA.
func (c *Config) ChallengeEnabled() bool {
	return c.RecaptchaSecret != "" && c.RecaptchaSiteKey != ""
}

// FederatedEnabled reports whether Google sign-in is offered.
func (c *Config) FederatedEnabled() bool {
	return c.GoogleClientID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
