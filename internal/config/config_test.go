package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLAUDE_API_KEY", "PARAM_PREFIX", "ALLOWED_ORIGINS", "ANTHROPIC_BASE_URL",
		"UPSTREAM_TIMEOUT_SECONDS", "USAGE_TABLE", "DEV_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.APIKey)
	require.Equal(t, DefaultAllowedOrigins, cfg.AllowedOrigins)
	require.Equal(t, "https://api.anthropic.com", cfg.AnthropicBaseURL)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, ":8787", cfg.DevAddr)
	require.Empty(t, cfg.UsageTable)
	require.False(t, cfg.NeedsAWS())
}

func TestLoad_RequiresCredentialSource(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.ErrorContains(t, err, "CLAUDE_API_KEY or PARAM_PREFIX")
}

func TestLoad_ParamPrefix(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARAM_PREFIX", " /portfolio-chat/ ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/portfolio-chat/claude-api-token", cfg.TokenParameterName())
	require.True(t, cfg.NeedsAWS())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_API_KEY", "sk-test")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "5")
	t.Setenv("USAGE_TABLE", "chat-usage")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, "chat-usage", cfg.UsageTable)
	require.True(t, cfg.NeedsAWS())
}

func TestLoad_InvalidTimeoutFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_API_KEY", "sk-test")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
}

func TestLoad_DoesNotShareDefaultOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	cfg.AllowedOrigins[0] = "https://evil.example"
	require.Equal(t, "http://localhost:3000", DefaultAllowedOrigins[0])
}
