package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_PORT", "SQLITE_DSN", "TIMEZONE", "LOG_LEVEL", "APP_URL",
		"TRIGGER_SECRET", "API_TOKEN", "REMINDER_CRON", "SUMMARY_CRON",
		"CRON_ENABLED", "REMINDER_WINDOW", "EMAIL_API_KEY", "EMAIL_FROM",
		"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "PUSH_SUBSCRIBER", "TELEGRAM_BOT_TOKEN",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "famsched.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FAMSCHED_TRIGGER_SECRET", "shh")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 || cfg.SQLiteDSN != "famsched.db" {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
		if cfg.ReminderCron != "*/5 * * * *" || cfg.SummaryCron != "0 7 * * *" {
			t.Fatalf("unexpected cron defaults %q %q", cfg.ReminderCron, cfg.SummaryCron)
		}
		if cfg.ReminderWindow != 720*time.Hour {
			t.Fatalf("unexpected window %v", cfg.ReminderWindow)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.CronEnabled {
			t.Fatal("expected cron to be disabled by default")
		}
	})

	t.Run("file values override defaults and env overrides file", func(t *testing.T) {
		clearEnv(t)
		path := writeFile(t, `
http_port: 9090
timezone: America/New_York
trigger_secret: from-file
api_token: api
cron_enabled: true
reminder_window: 48h
email:
  api_key: re_123
  from: Family <family@example.com>
push:
  vapid_public_key: pub
  vapid_private_key: priv
telegram:
  bot_token: bot
`)
		t.Setenv("FAMSCHED_HTTP_PORT", "7070")
		t.Setenv("FAMSCHED_TRIGGER_SECRET", "from-env")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7070 {
			t.Fatalf("expected env port, got %d", cfg.HTTPPort)
		}
		if cfg.TriggerSecret != "from-env" {
			t.Fatalf("expected env secret, got %q", cfg.TriggerSecret)
		}
		if cfg.Location.String() != "America/New_York" {
			t.Fatalf("unexpected location %v", cfg.Location)
		}
		if !cfg.CronEnabled || cfg.ReminderWindow != 48*time.Hour {
			t.Fatalf("unexpected cron settings %+v", cfg)
		}
		if cfg.Email.APIKey != "re_123" || cfg.Push.VAPIDPrivateKey != "priv" || cfg.Telegram.BotToken != "bot" {
			t.Fatalf("unexpected channel settings %+v", cfg)
		}
		if err := cfg.RequireAPIToken(); err != nil {
			t.Fatalf("expected api token to be present: %v", err)
		}
	})

	t.Run("reports missing required values", func(t *testing.T) {
		clearEnv(t)
		_, err := Load("")
		if err == nil || err.Error() != "missing required settings: trigger_secret" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("reports invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FAMSCHED_TRIGGER_SECRET", "shh")
		t.Setenv("FAMSCHED_HTTP_PORT", "eighty")
		t.Setenv("FAMSCHED_TIMEZONE", "Mars/Olympus")
		t.Setenv("FAMSCHED_LOG_LEVEL", "loud")

		_, err := Load("")
		if err == nil {
			t.Fatal("expected error")
		}
		for _, want := range []string{"FAMSCHED_HTTP_PORT", "timezone", "log_level"} {
			if !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q in %q", want, err.Error())
			}
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		clearEnv(t)
		path := writeFile(t, "trigger_secret: x\nsession_ttl: 1h\n")
		if _, err := Load(path); err == nil {
			t.Fatal("expected unknown key to be rejected")
		}
	})

	t.Run("rejects half configured push keys", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FAMSCHED_TRIGGER_SECRET", "shh")
		t.Setenv("FAMSCHED_VAPID_PUBLIC_KEY", "pub")
		_, err := Load("")
		if err == nil || !strings.Contains(err.Error(), "push.vapid_private_key") {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FAMSCHED_TRIGGER_SECRET", "shh")
		cfg, err := Load(writeFile(t, ""))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 {
			t.Fatalf("unexpected port %d", cfg.HTTPPort)
		}
		if err := cfg.RequireAPIToken(); err == nil {
			t.Fatal("expected missing api token to be reported")
		}
	})
}
