// Package config loads and validates the monitor configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Mantene/tdf-alerts/internal/snapshot"
)

// Notification methods recognized in notifications.method.
const (
	MethodEmail      = "email"
	MethodTelegram   = "telegram"
	MethodDiscord    = "discord"
	MethodSlack      = "slack"
	MethodPushbullet = "pushbullet"
	MethodConsole    = "console"
)

// Config is the fully validated monitor configuration.
type Config struct {
	Credentials   Credentials        `yaml:"tdf_credentials"`
	Titles        []string           `yaml:"titles"`
	FilterDate    string             `yaml:"filter_date"`
	DateFormat    string             `yaml:"date_format"`
	Scrape        ScrapeConfig       `yaml:"scrape"`
	State         StateConfig        `yaml:"state"`
	Notifications NotificationConfig `yaml:"notifications"`
	LogLevel      string             `yaml:"log_level"`
}

// Credentials are the TDF account credentials used by the scraper.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ScrapeConfig points the scraper at the site.
type ScrapeConfig struct {
	LoginURL     string        `yaml:"login_url"`
	OfferingsURL string        `yaml:"offerings_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// StateConfig controls where persisted state lives and the lock policy.
// When Bucket is set, state is stored as a Cloud Storage object and no
// advisory lock is taken (object replacement is atomic, last writer wins).
type StateConfig struct {
	Path            string        `yaml:"path"`
	Bucket          string        `yaml:"bucket"`
	CredentialsFile string        `yaml:"credentials_file"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	PruneMissing    bool          `yaml:"prune_missing"`
}

// NotificationConfig selects exactly one delivery channel. FailOnError
// makes a failed delivery fatal for the process exit code; state is
// committed either way.
type NotificationConfig struct {
	Method      string           `yaml:"method"`
	FailOnError bool             `yaml:"fail_on_error"`
	Email       EmailConfig      `yaml:"email"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Discord     WebhookConfig    `yaml:"discord"`
	Slack       WebhookConfig    `yaml:"slack"`
	Pushbullet  PushbulletConfig `yaml:"pushbullet"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	SMTPHost  string `yaml:"smtp_server"`
	SMTPPort  int    `yaml:"smtp_port"`
	Sender    string `yaml:"sender"`
	Password  string `yaml:"password"`
	Recipient string `yaml:"recipient"`
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// WebhookConfig configures a Discord or Slack incoming webhook.
type WebhookConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// PushbulletConfig configures the Pushbullet channel.
type PushbulletConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads the YAML config at path, expands ${ENV} references, applies
// environment overrides for secrets, fills defaults, and validates once.
// A .env file next to the process is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FilterTime parses the optional filter_date under the configured layout.
// Nil means no filtering.
func (c *Config) FilterTime() (*time.Time, error) {
	if c.FilterDate == "" {
		return nil, nil
	}
	t, err := snapshot.ParseDate(c.DateFormat, c.FilterDate)
	if err != nil {
		return nil, fmt.Errorf("parse filter_date %q: %w", c.FilterDate, err)
	}
	return &t, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TDF_EMAIL"); v != "" {
		c.Credentials.Email = v
	}
	if v := os.Getenv("TDF_PASSWORD"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		c.Notifications.Email.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK"); v != "" {
		c.Notifications.Discord.WebhookURL = v
	}
	if v := os.Getenv("SLACK_WEBHOOK"); v != "" {
		c.Notifications.Slack.WebhookURL = v
	}
	if v := os.Getenv("PUSHBULLET_API_KEY"); v != "" {
		c.Notifications.Pushbullet.APIKey = v
	}
}

func (c *Config) setDefaults() {
	if c.DateFormat == "" {
		c.DateFormat = "01/02/2006"
	}
	if c.Scrape.LoginURL == "" {
		c.Scrape.LoginURL = "https://my.tdf.org/account/login"
	}
	if c.Scrape.OfferingsURL == "" {
		c.Scrape.OfferingsURL = "https://nycgw47.tdf.org/TDFCustomOfferings/Current"
	}
	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = 30 * time.Second
	}
	if c.State.Path == "" {
		c.State.Path = "state.json"
	}
	if c.State.LockTimeout == 0 {
		c.State.LockTimeout = 10 * time.Second
	}
	if c.Notifications.Method == "" {
		c.Notifications.Method = MethodConsole
	}
	if c.Notifications.Email.SMTPPort == 0 {
		c.Notifications.Email.SMTPPort = 587
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if len(c.Titles) == 0 {
		return fmt.Errorf("config: 'titles' must be a non-empty list")
	}
	if c.Credentials.Email == "" || c.Credentials.Password == "" {
		return fmt.Errorf("config: TDF credentials not found in config or environment")
	}
	if c.FilterDate != "" {
		if _, err := snapshot.ParseDate(c.DateFormat, c.FilterDate); err != nil {
			return fmt.Errorf("config: filter_date %q does not match date_format %q", c.FilterDate, c.DateFormat)
		}
	}

	n := c.Notifications
	switch n.Method {
	case MethodConsole:
	case MethodEmail:
		if n.Email.SMTPHost == "" || n.Email.Sender == "" || n.Email.Password == "" || n.Email.Recipient == "" {
			return fmt.Errorf("config: incomplete email configuration")
		}
	case MethodTelegram:
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == 0 {
			return fmt.Errorf("config: incomplete telegram configuration")
		}
	case MethodDiscord:
		if n.Discord.WebhookURL == "" {
			return fmt.Errorf("config: discord webhook_url not configured")
		}
	case MethodSlack:
		if n.Slack.WebhookURL == "" {
			return fmt.Errorf("config: slack webhook_url not configured")
		}
	case MethodPushbullet:
		if n.Pushbullet.APIKey == "" {
			return fmt.Errorf("config: pushbullet api_key not configured")
		}
	default:
		return fmt.Errorf("config: unknown notification method %q", n.Method)
	}

	return nil
}
