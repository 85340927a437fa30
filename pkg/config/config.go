// Package config loads chatrelay configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config is the root runtime configuration assembled from the environment.
type Config struct {
	Telegram  TelegramConfig
	Assistant AssistantConfig
	Sessions  SessionsConfig
	Limits    LimitsConfig
	Access    AccessConfig
	Sanitize  SanitizeConfig
	Roster    RosterConfig
	Lock      LockConfig
	Status    StatusConfig
	Logging   LoggingConfig
}

// TelegramConfig configures the Telegram transport adapter.
type TelegramConfig struct {
	Token string
}

// AssistantConfig configures the remote assistant backend.
type AssistantConfig struct {
	APIKey                string
	BaseURL               string
	AssistantID           string
	RequestTimeoutSeconds int
}

// SessionsConfig controls remote-conversation lifetime and eviction cadence.
type SessionsConfig struct {
	LifetimeHours        int
	SweepIntervalSeconds int
}

// LimitsConfig groups admission and invocation limits.
type LimitsConfig struct {
	MaxMessageLength     int
	RateLimitMessages    int
	RateLimitWindowSecs  int
	AssistantTimeoutSecs int
	PollIntervalSeconds  int
	HistoryDepth         int
}

// AccessConfig holds the raw allow/ban lists as configured.
//
// Users and AllowedChats accept "*" for unrestricted access. Ban lists use
// "id:reason" entries separated by commas; "\n" in a reason is unescaped.
type AccessConfig struct {
	Users            string
	AllowedChats     string
	BannedUsers      string
	BannedChats      string
	RejectionNotices bool
}

// SanitizeConfig controls stripping of retrieval chunk markers from replies.
type SanitizeConfig struct {
	RemoveChunksForFiles []string
	RemoveChunkMarkers   bool
}

// RosterConfig configures the seen-chats roster file.
type RosterConfig struct {
	Path string
}

// LockConfig configures the single-instance lock file.
type LockConfig struct {
	Path string
}

// StatusConfig configures the health/readiness endpoint bind address.
type StatusConfig struct {
	Host string
	Port int
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string
	Level     string
	AddSource bool
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Assistant: AssistantConfig{
			APIKey:                getEnv("OPENAI_API_KEY", ""),
			BaseURL:               getEnv("OPENAI_BASE_URL", ""),
			AssistantID:           getEnv("ASSISTANT_ID", ""),
			RequestTimeoutSeconds: getEnvInt("OPENAI_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Sessions: SessionsConfig{
			LifetimeHours:        getEnvInt("THREAD_LIFETIME_HOURS", 24),
			SweepIntervalSeconds: getEnvInt("SWEEP_INTERVAL_SECONDS", 3600),
		},
		Limits: LimitsConfig{
			MaxMessageLength:     getEnvInt("MAX_MESSAGE_LENGTH", 10000),
			RateLimitMessages:    getEnvInt("RATE_LIMIT_MESSAGES", 10),
			RateLimitWindowSecs:  getEnvInt("RATE_LIMIT_WINDOW", 60),
			AssistantTimeoutSecs: getEnvInt("ASSISTANT_TIMEOUT", 120),
			PollIntervalSeconds:  getEnvInt("POLL_INTERVAL_SECONDS", 2),
			HistoryDepth:         getEnvInt("HISTORY_DEPTH", 5),
		},
		Access: AccessConfig{
			Users:            getEnv("USERS", "*"),
			AllowedChats:     getEnv("ALLOWED_CHATS", "*"),
			BannedUsers:      getEnv("BANNED_USERS", ""),
			BannedChats:      getEnv("BANNED_CHATS", ""),
			RejectionNotices: getEnvBool("REJECTION_NOTICES", false),
		},
		Sanitize: SanitizeConfig{
			RemoveChunksForFiles: ParseCSV(getEnv("REMOVE_CHUNKS_FOR_FILES", "links.txt")),
			RemoveChunkMarkers:   getEnvBool("REMOVE_CHUNK_MARKERS", true),
		},
		Roster: RosterConfig{
			Path: getEnv("CHAT_ROSTER_PATH", "data/chat_list.json"),
		},
		Lock: LockConfig{
			Path: getEnv("LOCK_FILE", "data/chatrelay.lock"),
		},
		Status: StatusConfig{
			Host: getEnv("STATUS_HOST", "0.0.0.0"),
			Port: getEnvInt("STATUS_PORT", 18790),
		},
		Logging: LoggingConfig{
			Format:    getEnv("CHATRELAY_LOG_FORMAT", ""),
			Level:     getEnv("CHATRELAY_LOG_LEVEL", ""),
			AddSource: getEnvBool("CHATRELAY_LOG_ADD_SOURCE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that required fields are present and numeric limits are sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if strings.TrimSpace(c.Assistant.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(c.Assistant.AssistantID) == "" {
		return fmt.Errorf("ASSISTANT_ID is required")
	}
	if c.Sessions.LifetimeHours <= 0 {
		return fmt.Errorf("THREAD_LIFETIME_HOURS must be positive, got %d", c.Sessions.LifetimeHours)
	}
	if c.Limits.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.Limits.MaxMessageLength)
	}
	if c.Limits.RateLimitMessages <= 0 || c.Limits.RateLimitWindowSecs <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.Limits.AssistantTimeoutSecs <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be positive, got %d", c.Limits.AssistantTimeoutSecs)
	}
	if c.Limits.PollIntervalSeconds <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive, got %d", c.Limits.PollIntervalSeconds)
	}
	if c.Limits.HistoryDepth < 0 {
		return fmt.Errorf("HISTORY_DEPTH must not be negative, got %d", c.Limits.HistoryDepth)
	}

	return nil
}

// SessionLifetime returns the configured session lifetime as a duration.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.Sessions.LifetimeHours) * time.Hour
}

// SweepInterval returns the eviction sweep cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sessions.SweepIntervalSeconds) * time.Second
}

// AssistantTimeout returns the run polling deadline as a duration.
func (c *Config) AssistantTimeout() time.Duration {
	return time.Duration(c.Limits.AssistantTimeoutSecs) * time.Second
}

// PollInterval returns the run status poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Limits.PollIntervalSeconds) * time.Second
}

// RateWindow returns the sliding rate-limit window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Limits.RateLimitWindowSecs) * time.Second
}

// ParseCSV splits comma-separated values and returns a trimmed compact slice.
func ParseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

func getEnv(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}

	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
