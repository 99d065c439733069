package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MASTODON_STREAM_URL", "")
	t.Setenv("MASTODON_API_URL", "")
	t.Setenv("PROJECT_HASHTAG", "")
	t.Setenv("ADMIN_SECRET_HASH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "wss://streaming.mastodon.social/api/v1/streaming", cfg.StreamURL)
	require.Equal(t, "https://mastodon.social", cfg.APIBaseURL)
	require.Equal(t, "Fedivisualizer", cfg.Hashtag)
	require.Empty(t, cfg.AdminSecretHash)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("PROJECT_HASHTAG", "MyTag")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "MyTag", cfg.Hashtag)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
