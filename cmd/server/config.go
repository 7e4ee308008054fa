package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/screenhall/go-accounts/storage"
)

// Config is the env-backed configuration. It satisfies accounts.Config;
// defaults are development values, production overrides come from the
// environment (or a .env file loaded at startup).
type Config struct {
	HTTPAddr         string
	DSN              string
	FrontendURL      string
	DeterministicIDs bool

	SigningKey        string
	RefreshSigningKey string
	TokenExpiration   int // minutes
	RefreshDuration   int // days
	ActivationTTL     int // hours
	ResetTTL          int // hours
	Issuer            string
	Audience          []string

	ResendAPIKey string
	EmailFrom    string

	S3 storage.S3Config
}

func LoadConfig() *Config {
	return &Config{
		HTTPAddr:         envString("HTTP_ADDR", ":8080"),
		DSN:              envString("DATABASE_DSN", "file:accounts.db?cache=shared&mode=rwc"),
		FrontendURL:      envString("FRONTEND_URL", "http://localhost:3000"),
		DeterministicIDs: envBool("DETERMINISTIC_ACCOUNT_IDS", false),

		SigningKey:        envString("JWT_SIGNING_KEY", "dev-signing-key-change-me"),
		RefreshSigningKey: envString("JWT_REFRESH_SIGNING_KEY", ""),
		TokenExpiration:   envInt("JWT_ACCESS_TTL_MINUTES", 15),
		RefreshDuration:   envInt("JWT_REFRESH_TTL_DAYS", 30),
		ActivationTTL:     envInt("ACTIVATION_TOKEN_TTL_HOURS", 24),
		ResetTTL:          envInt("RESET_TOKEN_TTL_HOURS", 2),
		Issuer:            envString("JWT_ISSUER", "screenhall"),
		Audience:          envList("JWT_AUDIENCE", nil),

		ResendAPIKey: envString("RESEND_API_KEY", ""),
		EmailFrom:    envString("EMAIL_FROM", "Screenhall <no-reply@screenhall.example>"),

		S3: storage.S3Config{
			Region:          envString("S3_REGION", "us-east-1"),
			Bucket:          envString("S3_BUCKET", ""),
			AccessKeyID:     envString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: envString("S3_SECRET_ACCESS_KEY", ""),
			BaseEndpoint:    envString("S3_BASE_ENDPOINT", ""),
			URLExpiry:       time.Duration(envInt("S3_URL_EXPIRY_MINUTES", 15)) * time.Minute,
		},
	}
}

func (c *Config) GetSigningKey() string         { return c.SigningKey }
func (c *Config) GetRefreshSigningKey() string  { return c.RefreshSigningKey }
func (c *Config) GetSigningMethod() string      { return "HS256" }
func (c *Config) GetContextKey() string         { return "user" }
func (c *Config) GetTokenExpiration() int       { return c.TokenExpiration }
func (c *Config) GetRefreshTokenDuration() int  { return c.RefreshDuration }
func (c *Config) GetActivationTokenDuration() int { return c.ActivationTTL }
func (c *Config) GetResetTokenDuration() int    { return c.ResetTTL }
func (c *Config) GetTokenLookup() string        { return "header:Authorization" }
func (c *Config) GetAuthScheme() string         { return "Bearer" }
func (c *Config) GetIssuer() string             { return c.Issuer }
func (c *Config) GetAudience() []string         { return c.Audience }
func (c *Config) GetFrontendURL() string        { return c.FrontendURL }

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	}
	return def
}
