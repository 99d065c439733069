package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// AdminSecretHash is the bcrypt hash of the administrative secret. When
	// empty, every privileged request is refused.
	AdminSecretHash string

	// StreamURL is the Mastodon streaming WebSocket endpoint.
	StreamURL string

	// AccessToken authenticates against the streaming endpoint.
	AccessToken string

	// APIBaseURL is the base URL of the Mastodon REST API, used by the
	// hashtag poller.
	APIBaseURL string

	// Hashtag is the project hashtag the poller watches.
	Hashtag string
}

// Load reads configuration from a .env file (if present) and the
// environment. Environment variables win over .env entries.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	streamURL := os.Getenv("MASTODON_STREAM_URL")
	if streamURL == "" {
		streamURL = "wss://streaming.mastodon.social/api/v1/streaming"
	}

	apiBaseURL := os.Getenv("MASTODON_API_URL")
	if apiBaseURL == "" {
		apiBaseURL = "https://mastodon.social"
	}

	hashtag := os.Getenv("PROJECT_HASHTAG")
	if hashtag == "" {
		hashtag = "Fedivisualizer"
	}

	return &Config{
		Port:            port,
		AdminSecretHash: os.Getenv("ADMIN_SECRET_HASH"),
		StreamURL:       streamURL,
		AccessToken:     os.Getenv("MASTODON_ACCESS_TOKEN"),
		APIBaseURL:      apiBaseURL,
		Hashtag:         hashtag,
	}, nil
}
