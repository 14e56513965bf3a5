// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	GitHubToken string
	// WebhookURL is the public callback URL registered on repositories when a
	// project is connected.
	WebhookURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ResendAPIKey string
	MailFrom     string
}

// Load reads configuration from environment variables and returns a validated
// Config. Required variables: GHOSTREVIEW_GITHUB_TOKEN, GHOSTREVIEW_WEBHOOK_URL,
// GHOSTREVIEW_OPENAI_API_KEY, GHOSTREVIEW_RESEND_API_KEY.
// Optional variables with defaults: GHOSTREVIEW_LISTEN_ADDR (127.0.0.1:8080),
// GHOSTREVIEW_DB_PATH (ghostreview.db), GHOSTREVIEW_OPENAI_MODEL (gpt-4o-mini),
// GHOSTREVIEW_MAIL_FROM. GHOSTREVIEW_OPENAI_BASE_URL overrides the provider
// endpoint for self-hosted gateways.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    getEnvDefault("GHOSTREVIEW_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:        getEnvDefault("GHOSTREVIEW_DB_PATH", "ghostreview.db"),
		GitHubToken:   os.Getenv("GHOSTREVIEW_GITHUB_TOKEN"),
		WebhookURL:    os.Getenv("GHOSTREVIEW_WEBHOOK_URL"),
		OpenAIAPIKey:  os.Getenv("GHOSTREVIEW_OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("GHOSTREVIEW_OPENAI_BASE_URL"),
		OpenAIModel:   getEnvDefault("GHOSTREVIEW_OPENAI_MODEL", "gpt-4o-mini"),
		ResendAPIKey:  os.Getenv("GHOSTREVIEW_RESEND_API_KEY"),
		MailFrom:      getEnvDefault("GHOSTREVIEW_MAIL_FROM", "GhostFounder Reports <reports@ghostfounder.dev>"),
	}

	required := []struct {
		name  string
		value string
	}{
		{"GHOSTREVIEW_GITHUB_TOKEN", cfg.GitHubToken},
		{"GHOSTREVIEW_WEBHOOK_URL", cfg.WebhookURL},
		{"GHOSTREVIEW_OPENAI_API_KEY", cfg.OpenAIAPIKey},
		{"GHOSTREVIEW_RESEND_API_KEY", cfg.ResendAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%s is required", r.name)
		}
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
