package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FAMSCHED_"

// EmailConfig configures the Resend email channel.
type EmailConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
}

// PushConfig configures the Web Push channel.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// TelegramConfig configures the chat channel.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// Config captures the scheduler service settings.
type Config struct {
	HTTPPort       int            `yaml:"http_port"`
	SQLiteDSN      string         `yaml:"sqlite_dsn"`
	Timezone       string         `yaml:"timezone"`
	LogLevel       string         `yaml:"log_level"`
	AppURL         string         `yaml:"app_url"`
	TriggerSecret  string         `yaml:"trigger_secret"`
	APIToken       string         `yaml:"api_token"`
	ReminderCron   string         `yaml:"reminder_cron"`
	SummaryCron    string         `yaml:"summary_cron"`
	CronEnabled    bool           `yaml:"cron_enabled"`
	ReminderWindow time.Duration  `yaml:"reminder_window"`
	Email          EmailConfig    `yaml:"email"`
	Push           PushConfig     `yaml:"push"`
	Telegram       TelegramConfig `yaml:"telegram"`

	// Location is resolved from Timezone.
	Location *time.Location `yaml:"-"`
}

// Default returns the configuration used when nothing overrides a value.
func Default() Config {
	return Config{
		HTTPPort:       8080,
		SQLiteDSN:      "famsched.db",
		Timezone:       "UTC",
		LogLevel:       "info",
		AppURL:         "http://localhost:8080",
		ReminderCron:   "*/5 * * * *",
		SummaryCron:    "0 7 * * *",
		ReminderWindow: 720 * time.Hour,
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and FAMSCHED_* environment variables, in that order of precedence. Missing
// and invalid keys are reported together.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	invalid := applyEnv(&cfg)
	missing, more := cfg.validate()
	invalid = append(invalid, more...)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid settings: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// RequireAPIToken reports an error when the family API has no token, which
// only the HTTP server needs.
func (c Config) RequireAPIToken() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return errors.New("missing required settings: api_token")
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) []string {
	invalid := make([]string, 0, 2)

	str := func(key string, dst *string) {
		if value := strings.TrimSpace(os.Getenv(EnvPrefix + key)); value != "" {
			*dst = value
		}
	}

	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "HTTP_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, EnvPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "CRON_ENABLED")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, EnvPrefix+"CRON_ENABLED")
		} else {
			cfg.CronEnabled = enabled
		}
	}
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "REMINDER_WINDOW")); value != "" {
		window, err := time.ParseDuration(value)
		if err != nil || window <= 0 {
			invalid = append(invalid, EnvPrefix+"REMINDER_WINDOW")
		} else {
			cfg.ReminderWindow = window
		}
	}

	str("SQLITE_DSN", &cfg.SQLiteDSN)
	str("TIMEZONE", &cfg.Timezone)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("APP_URL", &cfg.AppURL)
	str("TRIGGER_SECRET", &cfg.TriggerSecret)
	str("API_TOKEN", &cfg.APIToken)
	str("REMINDER_CRON", &cfg.ReminderCron)
	str("SUMMARY_CRON", &cfg.SummaryCron)
	str("EMAIL_API_KEY", &cfg.Email.APIKey)
	str("EMAIL_FROM", &cfg.Email.From)
	str("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	str("PUSH_SUBSCRIBER", &cfg.Push.Subscriber)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)

	return invalid
}

func (c *Config) validate() (missing, invalid []string) {
	if strings.TrimSpace(c.TriggerSecret) == "" {
		missing = append(missing, "trigger_secret")
	}
	if strings.TrimSpace(c.SQLiteDSN) == "" {
		missing = append(missing, "sqlite_dsn")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		invalid = append(invalid, "timezone")
	} else {
		c.Location = loc
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, "log_level")
	}

	if c.ReminderWindow <= 0 {
		invalid = append(invalid, "reminder_window")
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		invalid = append(invalid, "push.vapid_private_key")
	}
	return missing, invalid
}
