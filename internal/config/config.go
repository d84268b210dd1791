package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenPort    = 8080
	defaultSessionCookie = "sid"
	defaultAgentBinary   = "claude"
	defaultModel         = "claude-sonnet-4-0"

	// DefaultSessionTTL bounds how long a session cookie stays valid.
	DefaultSessionTTL = time.Hour
	// DefaultLoginTTL bounds how long a magic link stays valid.
	DefaultLoginTTL = 15 * time.Minute
)

var defaultAllowedModels = []string{"claude-sonnet-4-0", "claude-opus-4-1"}

type Config struct {
	ListenPort int
	PublicURL  string

	// SessionSecret signs login and session tokens. There is no fallback
	// value: Load fails when SESSION_SECRET is unset.
	SessionSecret []byte
	SessionCookie string
	SessionTTL    time.Duration
	LoginTTL      time.Duration

	// AgentAuthToken is the upstream agent credential. The gateway still
	// starts without it; queries answer 401 until it is configured.
	AgentAuthToken string
	AgentBinary    string

	// APIKey protects POST /query. Empty means public access.
	APIKey string

	AllowedGithubUsers []string
	AllowedGithubOrg   string
	AllowedEmails      []string
	AllowedDomains     []string

	GithubClientID     string
	GithubClientSecret string

	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	DefaultModel  string
	AllowedModels []string

	CorsOrigins []string
}

func Load() (*Config, error) {
	port, err := parsePortEnv("PORT", defaultListenPort)
	if err != nil {
		return nil, err
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, errors.New("SESSION_SECRET must be set (refusing to run with a default signing secret)")
	}

	agentToken := os.Getenv("ANTHROPIC_AUTH_TOKEN")
	if agentToken == "" {
		agentToken = os.Getenv("CLAUDE_CODE_OAUTH_TOKEN")
	}

	publicURL := os.Getenv("PUBLIC_URL")
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", port)
	}
	publicURL = strings.TrimRight(publicURL, "/")

	allowedModels := parseList(os.Getenv("ALLOWED_MODELS"))
	if len(allowedModels) == 0 {
		allowedModels = append(allowedModels, defaultAllowedModels...)
	}

	model := getenvDefault("DEFAULT_MODEL", defaultModel)
	if !containsString(allowedModels, model) {
		return nil, fmt.Errorf("DEFAULT_MODEL %q is not in the allowed model set", model)
	}

	mailFrom := os.Getenv("MAIL_FROM")
	if mailFrom == "" {
		mailFrom = os.Getenv("SMTP_USERNAME")
	}

	return &Config{
		ListenPort:         port,
		PublicURL:          publicURL,
		SessionSecret:      []byte(secret),
		SessionCookie:      getenvDefault("SESSION_COOKIE", defaultSessionCookie),
		SessionTTL:         DefaultSessionTTL,
		LoginTTL:           DefaultLoginTTL,
		AgentAuthToken:     agentToken,
		AgentBinary:        getenvDefault("AGENT_BINARY", defaultAgentBinary),
		APIKey:             os.Getenv("GATEWAY_API_KEY"),
		AllowedGithubUsers: lowerList(parseList(os.Getenv("ALLOWED_GITHUB_USERS"))),
		AllowedGithubOrg:   strings.ToLower(strings.TrimSpace(os.Getenv("ALLOWED_GITHUB_ORG"))),
		AllowedEmails:      lowerList(parseList(os.Getenv("ALLOWED_EMAILS"))),
		AllowedDomains:     lowerList(parseList(os.Getenv("ALLOWED_DOMAINS"))),
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		SMTPAddr:           os.Getenv("SMTP_ADDR"),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		MailFrom:           mailFrom,
		DefaultModel:       model,
		AllowedModels:      allowedModels,
		CorsOrigins:        parseList(os.Getenv("CORS_ORIGINS")),
	}, nil
}

func parsePortEnv(key string, fallback int) (int, error) {
	if raw := os.Getenv(key); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("%s must be a valid port number", key)
		}
		return parsed, nil
	}

	return fallback, nil
}

func getenvDefault(key string, fallback string) string {
	if raw := os.Getenv(key); raw != "" {
		return raw
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func lowerList(items []string) []string {
	for i, item := range items {
		items[i] = strings.ToLower(item)
	}
	return items
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
