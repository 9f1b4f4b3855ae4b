// Package config loads and validates the mailbridge configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/provider"
)

// Config is the full configuration surface of the engine. Host and
// port values left empty are resolved from the provider table for the
// account's domain; an empty secret is resolved from the system
// keyring.
type Config struct {
	// Address is the mail account (user@domain).
	Address string `mapstructure:"address"`

	// Secret is the account password or app password. It is never
	// written to logs.
	Secret string `mapstructure:"secret"`

	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	IMAPHost string `mapstructure:"imap_host"`
	IMAPPort int    `mapstructure:"imap_port"`

	// Retries is the number of connection attempts per dial.
	Retries int `mapstructure:"retries"`

	// RetryDelay is the pause between failed connection attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// AttachmentDir is where decoded attachments are written.
	AttachmentDir string `mapstructure:"attachment_dir"`

	// SaveAttachments controls whether attachment payloads are written
	// to AttachmentDir or only their filenames recorded.
	SaveAttachments bool `mapstructure:"save_attachments"`

	// IncludeHTML makes text/html parts contribute to the decoded body
	// text. Off by default; most callers only want text/plain.
	IncludeHTML bool `mapstructure:"include_html"`
}

// ValidationError reports a fatal configuration problem. Operations
// must not be attempted with an invalid configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Reason)
}

// DefaultPath returns the default path for the configuration file,
// located at ~/.config/mailbridge/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbridge", "config.yaml")
}

// defaultConfig returns a configuration with sensible defaults for
// everything except the account itself.
func defaultConfig() *Config {
	return &Config{
		Retries:         3,
		RetryDelay:      5 * time.Second,
		AttachmentDir:   "attachments",
		SaveAttachments: true,
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration; the
// caller still has to fill in the account before use. Missing server
// hosts are resolved through the provider table, and a missing secret
// through the system keyring.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("retries", 3)
	v.SetDefault("retry_delay", "5s")
	v.SetDefault("attachment_dir", "attachments")
	v.SetDefault("save_attachments", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve fills in server hosts from the provider table and the secret
// from the keyring where the file left them empty, then validates.
func (c *Config) Resolve() error {
	if c.Address == "" {
		return &ValidationError{Field: "address", Reason: "must be set"}
	}

	if c.SMTPHost == "" || c.IMAPHost == "" {
		pair, err := provider.Lookup(c.Address)
		if err != nil {
			return &ValidationError{Field: "address", Reason: err.Error()}
		}
		if c.SMTPHost == "" {
			c.SMTPHost = pair.SMTP.Host
			c.SMTPPort = pair.SMTP.Port
		}
		if c.IMAPHost == "" {
			c.IMAPHost = pair.IMAP.Host
			c.IMAPPort = pair.IMAP.Port
		}
	}

	if c.Secret == "" {
		secret, err := credential.Secret(c.Address)
		if err != nil {
			return &ValidationError{
				Field:  "secret",
				Reason: "not set and not found in keyring",
			}
		}
		c.Secret = secret
	}

	return c.Validate()
}

// Validate checks the configuration invariants that every operation
// relies on.
func (c *Config) Validate() error {
	if c.Address == "" {
		return &ValidationError{Field: "address", Reason: "must be set"}
	}
	if _, err := provider.Domain(c.Address); err != nil {
		return &ValidationError{Field: "address", Reason: err.Error()}
	}
	if len(c.Secret) < 8 {
		return &ValidationError{
			Field:  "secret",
			Reason: "must be at least 8 characters long",
		}
	}
	if c.SMTPHost == "" || c.SMTPPort == 0 {
		return &ValidationError{Field: "smtp_host", Reason: "must be set"}
	}
	if c.IMAPHost == "" || c.IMAPPort == 0 {
		return &ValidationError{Field: "imap_host", Reason: "must be set"}
	}
	if c.Retries < 1 {
		return &ValidationError{Field: "retries", Reason: "must be at least 1"}
	}
	if c.RetryDelay < 0 {
		return &ValidationError{Field: "retry_delay", Reason: "must not be negative"}
	}
	if c.AttachmentDir == "" {
		return &ValidationError{Field: "attachment_dir", Reason: "must be set"}
	}
	return nil
}

// Save writes the given configuration to a YAML file at path, creating
// parent directories if needed. The secret is not written; it belongs
// in the keyring.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("address", cfg.Address)
	v.Set("smtp_host", cfg.SMTPHost)
	v.Set("smtp_port", cfg.SMTPPort)
	v.Set("imap_host", cfg.IMAPHost)
	v.Set("imap_port", cfg.IMAPPort)
	v.Set("retries", cfg.Retries)
	v.Set("retry_delay", cfg.RetryDelay.String())
	v.Set("attachment_dir", cfg.AttachmentDir)
	v.Set("save_attachments", cfg.SaveAttachments)
	v.Set("include_html", cfg.IncludeHTML)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
