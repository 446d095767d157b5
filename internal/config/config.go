package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAllowedOrigins are the browser origins allowed to read responses.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:5500",
	"https://ilyas-hassan.github.io",
}

// Config is read once at startup and treated as read-only afterwards.
type Config struct {
	// Upstream credential. Never logged.
	APIKey      string
	ParamPrefix string

	AllowedOrigins   []string
	AnthropicBaseURL string
	UpstreamTimeout  time.Duration

	// Usage ledger; empty disables it.
	UsageTable string

	// Local dev server
	DevAddr string
}

// Load reads configuration from the environment, loading .env first when present.
func Load() (Config, error) {
	// Missing .env is the normal case in Lambda.
	_ = godotenv.Load()

	cfg := Config{
		APIKey:           strings.TrimSpace(os.Getenv("CLAUDE_API_KEY")),
		ParamPrefix:      strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/"),
		AllowedOrigins:   envList("ALLOWED_ORIGINS", DefaultAllowedOrigins),
		AnthropicBaseURL: getEnvOrDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		UpstreamTimeout:  time.Duration(envInt("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		UsageTable:       strings.TrimSpace(os.Getenv("USAGE_TABLE")),
		DevAddr:          getEnvOrDefault("DEV_ADDR", ":8787"),
	}

	if cfg.APIKey == "" && cfg.ParamPrefix == "" {
		return Config{}, errors.New("config: CLAUDE_API_KEY or PARAM_PREFIX must be set")
	}
	return cfg, nil
}

// TokenParameterName is the SSM parameter holding the API credential.
func (c Config) TokenParameterName() string {
	return c.ParamPrefix + "/claude-api-token"
}

// NeedsAWS reports whether any AWS-backed component is configured.
func (c Config) NeedsAWS() bool {
	return c.APIKey == "" || c.UsageTable != ""
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
