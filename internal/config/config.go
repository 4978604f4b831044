package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/plincohq/onboarding-service/internal/domain"
)

// Config holds the application configuration
type Config struct {
	Env  string
	Port int

	// Voice provider credentials. An empty key or assistant ID does not stop
	// startup; call starts fail with a configuration error instead.
	VapiPublicKey   string
	VapiAssistantID string
	VapiBaseURL     string

	// Identity provider (Clerk-compatible) backend API.
	IdentityAPIURL    string
	IdentitySecretKey string

	// Shared secret the identity provider sends on webhook requests. Empty
	// disables verification for local development.
	IdentityWebhookSecret string

	// Google OAuth tokeninfo endpoint; empty uses the Google default.
	GoogleTokenInfoURL string

	// Where the provider redirects the browser after Google consent.
	GoogleRedirectURL string

	// Secret for verifying session JWTs on authenticated routes.
	JWTSecret string

	// Identifier for this pod in the shared session registry.
	PodID string
}

// Load reads configuration from environment variables. The .env file is
// loaded in main for local development.
func Load() Config {
	return Config{
		Env:                   getEnvOrDefault("APP_ENV", "development"),
		Port:                  getEnvIntOrDefault("PORT", 8080),
		VapiPublicKey:         getEnvOrDefault("VAPI_PUBLIC_KEY", ""),
		VapiAssistantID:       getEnvOrDefault("VAPI_ASSISTANT_ID", ""),
		VapiBaseURL:           getEnvOrDefault("VAPI_BASE_URL", ""),
		IdentityAPIURL:        getEnvOrDefault("IDENTITY_API_URL", "https://api.clerk.com"),
		IdentitySecretKey:     getEnvOrDefault("IDENTITY_SECRET_KEY", ""),
		IdentityWebhookSecret: getEnvOrDefault("IDENTITY_WEBHOOK_SECRET", ""),
		GoogleTokenInfoURL:    getEnvOrDefault("GOOGLE_TOKENINFO_URL", ""),
		GoogleRedirectURL:     getEnvOrDefault("GOOGLE_REDIRECT_URL", "http://localhost:3000/onboarding"),
		JWTSecret:             getEnvOrDefault("JWT_SECRET", ""),
		PodID:                 getEnvOrDefault("POD_ID", hostnameOrDefault("local")),
	}
}

// Validate rejects configurations that cannot serve authenticated traffic.
// Missing voice credentials are deliberately not fatal here.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required: %w", domain.ErrConfiguration)
	}
	if c.IdentitySecretKey == "" {
		return fmt.Errorf("IDENTITY_SECRET_KEY is required: %w", domain.ErrConfiguration)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func hostnameOrDefault(defaultValue string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return defaultValue
}
