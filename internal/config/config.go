package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the bot token and reminder timing parameters.
type Config struct {
	// DiscordToken authenticates the gateway session. The DISCORD_TOKEN
	// environment variable takes precedence over the file value.
	DiscordToken string `yaml:"discord_token"`
	// ReminderDelayMinutes is how long a member must stay muted before
	// the first reminder is sent.
	ReminderDelayMinutes int `yaml:"reminder_delay_minutes"`
	// RepeatIntervalMinutes is the spacing between repeated reminders
	// while the member stays muted.
	RepeatIntervalMinutes int `yaml:"repeat_interval_minutes"`
	// CountDeafAsMute treats a deafened member as muted. Defaults to
	// true when absent; use DeafCountsAsMute to read it.
	CountDeafAsMute *bool `yaml:"count_deaf_as_mute"`
	// FallbackChannelID is the text channel notified when the member's
	// voice channel cannot be messaged. Optional.
	FallbackChannelID string `yaml:"fallback_channel_id"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for bot settings.
	DefaultConfigFilename = "mute-reminder-settings.yaml"

	// DefaultReminderDelayMinutes is the default first-reminder delay.
	DefaultReminderDelayMinutes = 5

	// DefaultRepeatIntervalMinutes is the default repeat spacing.
	DefaultRepeatIntervalMinutes = 30

	// DefaultLogLevel is the default minimum log level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// EnvToken is the environment variable overriding the file token.
	EnvToken = "DISCORD_TOKEN"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTokenRequired is returned when no bot token is configured.
	errTokenRequired = errors.New("discord token must be provided")
)

// Load reads configuration from the provided path, applies the
// environment token override and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if token := os.Getenv(EnvToken); token != "" {
		cfg.DiscordToken = token
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file carries the bot token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DiscordToken == "" {
		return errTokenRequired
	}

	if cfg.ReminderDelayMinutes <= 0 {
		cfg.ReminderDelayMinutes = DefaultReminderDelayMinutes
	}

	if cfg.RepeatIntervalMinutes <= 0 {
		cfg.RepeatIntervalMinutes = DefaultRepeatIntervalMinutes
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}

// DeafCountsAsMute reports whether deafened members count as muted.
// The option defaults to true when not present in the file.
func (c *Config) DeafCountsAsMute() bool {
	if c.CountDeafAsMute == nil {
		return true
	}

	return *c.CountDeafAsMute
}

// ReminderDelay returns the first-reminder delay as a duration.
func (c *Config) ReminderDelay() time.Duration {
	return time.Duration(c.ReminderDelayMinutes) * time.Minute
}

// RepeatInterval returns the reminder repeat spacing as a duration.
func (c *Config) RepeatInterval() time.Duration {
	return time.Duration(c.RepeatIntervalMinutes) * time.Minute
}
