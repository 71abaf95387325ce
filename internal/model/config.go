package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// QueueConfig controls the delivery queue dispatcher.
type QueueConfig struct {
	// IntervalSec is how often (in seconds) the background drain runs.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// BatchSize caps how many pending rows one drain pass claims.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// MaxRetries is the default retry budget for new queue rows.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// SendTimeoutSec bounds a single outbound send call.
	SendTimeoutSec int `mapstructure:"send_timeout_sec" yaml:"send_timeout_sec"`
}

// MailConfig holds outbound message envelope settings.
type MailConfig struct {
	From    string `mapstructure:"from" yaml:"from"`
	ReplyTo string `mapstructure:"reply_to" yaml:"reply_to"`
}

// IntakeConfig holds the IMAP mailbox the intake poller watches for
// ticket replies.
type IntakeConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Host            string `mapstructure:"host" yaml:"host"`
	Port            string `mapstructure:"port" yaml:"port"`
	Username        string `mapstructure:"username" yaml:"username"`
	TLS             bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox         string `mapstructure:"mailbox" yaml:"mailbox"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AppConfig is the top-level daemon configuration.
type AppConfig struct {
	DBPath string       `mapstructure:"db_path" yaml:"db_path"`
	Queue  QueueConfig  `mapstructure:"queue" yaml:"queue"`
	Mail   MailConfig   `mapstructure:"mail" yaml:"mail"`
	Intake IntakeConfig `mapstructure:"intake" yaml:"intake"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/helpdesk/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "helpdesk", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath: filepath.Join(filepath.Dir(DefaultConfigPath()), "helpdesk.db"),
		Queue: QueueConfig{
			IntervalSec:    30,
			BatchSize:      20,
			MaxRetries:     DefaultMaxRetries,
			SendTimeoutSec: 30,
		},
		Mail: MailConfig{
			From: "soporte@localhost",
		},
		Intake: IntakeConfig{
			Mailbox:         "INBOX",
			PollIntervalSec: 120,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("queue.interval_sec", 30)
	v.SetDefault("queue.batch_size", 20)
	v.SetDefault("queue.max_retries", DefaultMaxRetries)
	v.SetDefault("queue.send_timeout_sec", 30)
	v.SetDefault("mail.from", "soporte@localhost")
	v.SetDefault("intake.mailbox", "INBOX")
	v.SetDefault("intake.poll_interval_sec", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("queue", cfg.Queue)
	v.Set("mail", cfg.Mail)
	v.Set("intake", cfg.Intake)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
