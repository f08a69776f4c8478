// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq trigger loop and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ReportSourceConfig provides settings for the reporting-source client.
type ReportSourceConfig interface {
	GetReportAPIURL() string
	GetReportAPIKey() string
}

// MessagingConfig provides settings for the chat-webhook client.
// Channel routing (organization -> webhook key) is owned here, not by callers.
type MessagingConfig interface {
	GetChatWebhookURL() string
	GetChatChannelKeys() map[string]string
	GetChatDefaultChannelKey() string
	GetOpsChannelKey() string
}

// AIConfig provides settings for the decision advisor model.
type AIConfig interface {
	GetMoonshotAPIKey() string
	GetAIModel() string
	GetDecisionMode() string
	IsAIConfigured() bool
}

// SettingsConfig provides bootstrap settings for the persisted configuration.
type SettingsConfig interface {
	GetThresholdSeedPath() string
}

// HTTPConfig provides settings for the ops API server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	ReportAPIURL          string
	ReportAPIKey          string
	ChatWebhookURL        string
	ChatChannelKeys       map[string]string
	ChatDefaultChannelKey string
	OpsChannelKey         string
	MoonshotAPIKey        string
	AIModel               string
	DecisionMode          string
	ThresholdSeedPath     string
	CORSAllowAll          bool
	CORSOrigins           []string
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ReportSourceConfig implementation
func (c *Config) GetReportAPIURL() string { return c.ReportAPIURL }
func (c *Config) GetReportAPIKey() string { return c.ReportAPIKey }

// MessagingConfig implementation
func (c *Config) GetChatWebhookURL() string             { return c.ChatWebhookURL }
func (c *Config) GetChatChannelKeys() map[string]string { return c.ChatChannelKeys }
func (c *Config) GetChatDefaultChannelKey() string      { return c.ChatDefaultChannelKey }
func (c *Config) GetOpsChannelKey() string              { return c.OpsChannelKey }

// AIConfig implementation
func (c *Config) GetMoonshotAPIKey() string { return c.MoonshotAPIKey }
func (c *Config) GetAIModel() string        { return c.AIModel }
func (c *Config) GetDecisionMode() string   { return c.DecisionMode }
func (c *Config) IsAIConfigured() bool      { return c.MoonshotAPIKey != "" }

// SettingsConfig implementation
func (c *Config) GetThresholdSeedPath() string { return c.ThresholdSeedPath }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "monitor"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		ReportAPIURL:          getEnv("REPORT_API_URL", ""),
		ReportAPIKey:          getEnv("REPORT_API_KEY", ""),
		ChatWebhookURL:        getEnv("CHAT_WEBHOOK_URL", ""),
		ChatChannelKeys:       parseChannelMap(getEnv("CHAT_CHANNEL_KEYS", "")),
		ChatDefaultChannelKey: getEnv("CHAT_DEFAULT_CHANNEL_KEY", ""),
		OpsChannelKey:         getEnv("OPS_CHANNEL_KEY", ""),
		MoonshotAPIKey:        getEnv("MOONSHOT_API_KEY", ""),
		AIModel:               getEnv("AI_MODEL", ""),
		DecisionMode:          getEnv("DECISION_MODE", "hybrid"),
		ThresholdSeedPath:     getEnv("THRESHOLD_SEED_PATH", "config/thresholds.yaml"),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ReportAPIURL == "" {
		return nil, fmt.Errorf("REPORT_API_URL is required")
	}
	if cfg.ChatWebhookURL != "" && cfg.OpsChannelKey == "" {
		return nil, fmt.Errorf("OPS_CHANNEL_KEY is required when CHAT_WEBHOOK_URL is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

// parseChannelMap parses "OrgA=key1,OrgB=key2" into a routing table.
func parseChannelMap(value string) map[string]string {
	result := make(map[string]string)
	for _, pair := range splitCSV(value) {
		name, key, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		key = strings.TrimSpace(key)
		if name != "" && key != "" {
			result[name] = key
		}
	}
	return result
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
