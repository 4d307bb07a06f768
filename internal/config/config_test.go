package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.SlackBotToken != "xoxb-test" {
		t.Fatalf("unexpected slack bot token: %q", cfg.SlackBotToken)
	}
	if cfg.DBPath != "./vipham.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ExportOutputDir != "./exports" {
		t.Fatalf("unexpected export output dir default: %q", cfg.ExportOutputDir)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.Location == nil || cfg.Location.String() != DefaultTimezone {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.TextSeparator != "-" {
		t.Fatalf("unexpected separator default: %q", cfg.TextSeparator)
	}
	if !cfg.RedoEnabled() {
		t.Fatal("expected redo to be enabled by default")
	}
	if cfg.EditPageSize != DefaultEditPageSize {
		t.Fatalf("unexpected edit page size: %d", cfg.EditPageSize)
	}
	if cfg.SessionIdle() != 12*time.Hour {
		t.Fatalf("unexpected session idle: %v", cfg.SessionIdle())
	}
	if cfg.LLMSuggestEnabled {
		t.Fatal("expected llm suggestions to be off by default")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
slack_bot_token: "yaml-bot"
slack_app_token: "yaml-app"
timezone: "UTC"
db_path: "/tmp/yaml.db"
export_output_dir: "/tmp/yaml-exports"
text_separator: "|"
history_redo: false
edit_page_size: 5
auto_export_schedule: "0 17 * * 1-5"
llm_suggest_enabled: true
anthropic_api_key: "yaml-anthropic"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")
	t.Setenv("AUTO_EXPORT_SCHEDULE", "")

	cfg := LoadConfig()

	if cfg.SlackBotToken != "yaml-bot" {
		t.Fatalf("expected yaml bot token, got %q", cfg.SlackBotToken)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected env db path override, got %q", cfg.DBPath)
	}
	if cfg.ExportOutputDir != "/tmp/yaml-exports" {
		t.Fatalf("expected yaml export dir, got %q", cfg.ExportOutputDir)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 120 {
		t.Fatalf("expected env timeout override, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.TextSeparator != "|" {
		t.Fatalf("expected yaml separator, got %q", cfg.TextSeparator)
	}
	if cfg.RedoEnabled() {
		t.Fatal("expected history_redo=false from yaml")
	}
	if cfg.EditPageSize != 5 {
		t.Fatalf("expected edit page size 5, got %d", cfg.EditPageSize)
	}
	if cfg.AutoExportSchedule != "" {
		t.Fatalf("expected empty env to clear schedule, got %q", cfg.AutoExportSchedule)
	}
	if !cfg.LLMSuggestEnabled || cfg.AnthropicAPIKey != "yaml-anthropic" {
		t.Fatalf("unexpected llm settings: %v %q", cfg.LLMSuggestEnabled, cfg.AnthropicAPIKey)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestHistoryRedoEnvOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)
	t.Setenv("HISTORY_REDO", "false")

	if LoadConfig().RedoEnabled() {
		t.Fatal("expected HISTORY_REDO=false to disable redo")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("VP_TEST_STR", "value")
	envOverride(&s, "VP_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("VP_TEST_INT", "42")
	envOverrideInt(&i, "VP_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	b := false
	t.Setenv("VP_TEST_BOOL", "1")
	envOverrideBool(&b, "VP_TEST_BOOL")
	if !b {
		t.Fatalf("envOverrideBool failed, got %v", b)
	}

	empty := "keep"
	t.Setenv("VP_TEST_EMPTY", "")
	envOverrideAllowEmpty(&empty, "VP_TEST_EMPTY")
	if empty != "" {
		t.Fatalf("envOverrideAllowEmpty failed, got %q", empty)
	}
}

func runFatalSubprocess(t *testing.T, name, marker string) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run="+name)
	cmd.Env = append(os.Environ(), marker+"=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		_ = os.Setenv("SLACK_APP_TOKEN", "xapp-test")
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}
	runFatalSubprocess(t, "TestLoadConfigInvalidTimezoneFatal", "TEST_INVALID_TZ_FATAL")
}

func TestLoadConfigLLMWithoutKeyFatal(t *testing.T) {
	if os.Getenv("TEST_LLM_NO_KEY_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		_ = os.Setenv("SLACK_APP_TOKEN", "xapp-test")
		_ = os.Setenv("LLM_SUGGEST_ENABLED", "true")
		_ = os.Unsetenv("ANTHROPIC_API_KEY")
		LoadConfig()
		return
	}
	runFatalSubprocess(t, "TestLoadConfigLLMWithoutKeyFatal", "TEST_LLM_NO_KEY_FATAL")
}
