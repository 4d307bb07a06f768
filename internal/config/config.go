package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	DefaultTimezone     = "Asia/Ho_Chi_Minh"
	DefaultSeparator    = "-"
	DefaultEditPageSize = 10
	maxEditPageSize     = 15
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	DBPath                     string `yaml:"db_path"`
	ExportOutputDir            string `yaml:"export_output_dir"`
	ReportChannelID            string `yaml:"report_channel_id"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	TextSeparator      string `yaml:"text_separator"`
	HistoryRedo        *bool  `yaml:"history_redo"`
	GlossaryPath       string `yaml:"glossary_path"`
	EditPageSize       int    `yaml:"edit_page_size"`
	SessionIdleMinutes int    `yaml:"session_idle_minutes"`

	AutoExportSchedule string `yaml:"auto_export_schedule"`

	LLMSuggestEnabled bool   `yaml:"llm_suggest_enabled"`
	LLMModel          string `yaml:"llm_model"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ExportOutputDir, "EXPORT_OUTPUT_DIR")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.TextSeparator, "TEXT_SEPARATOR")
	if val := os.Getenv("HISTORY_REDO"); val != "" {
		redo := false
		envOverrideBool(&redo, "HISTORY_REDO")
		cfg.HistoryRedo = &redo
	}
	envOverride(&cfg.GlossaryPath, "GLOSSARY_PATH")
	envOverrideInt(&cfg.EditPageSize, "EDIT_PAGE_SIZE")
	envOverrideInt(&cfg.SessionIdleMinutes, "SESSION_IDLE_MINUTES")
	envOverrideAllowEmpty(&cfg.AutoExportSchedule, "AUTO_EXPORT_SCHEDULE")
	envOverrideBool(&cfg.LLMSuggestEnabled, "LLM_SUGGEST_ENABLED")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")

	if cfg.DBPath == "" {
		cfg.DBPath = "./vipham.db"
	}
	if cfg.ExportOutputDir == "" {
		cfg.ExportOutputDir = "./exports"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.TextSeparator == "" {
		cfg.TextSeparator = DefaultSeparator
	}
	if cfg.HistoryRedo == nil {
		redo := true
		cfg.HistoryRedo = &redo
	}
	if cfg.EditPageSize == 0 {
		cfg.EditPageSize = DefaultEditPageSize
	}
	if cfg.SessionIdleMinutes == 0 {
		cfg.SessionIdleMinutes = 12 * 60
	}

	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if cfg.LLMSuggestEnabled && cfg.AnthropicAPIKey == "" {
		log.Fatalf("anthropic_api_key is required when llm_suggest_enabled=true")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if strings.TrimSpace(cfg.TextSeparator) == "" {
		log.Fatalf("invalid text_separator %q: must contain a visible character", cfg.TextSeparator)
	}
	if cfg.EditPageSize < 1 || cfg.EditPageSize > maxEditPageSize {
		log.Fatalf("invalid edit_page_size '%d': must be between 1 and %d", cfg.EditPageSize, maxEditPageSize)
	}
	if cfg.SessionIdleMinutes < 1 {
		log.Fatalf("invalid session_idle_minutes '%d': must be >= 1", cfg.SessionIdleMinutes)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	return cfg
}

// RedoEnabled reports whether sessions keep a redo stack.
func (c Config) RedoEnabled() bool {
	return c.HistoryRedo == nil || *c.HistoryRedo
}

func (c Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
