// Package config loads regcheck configuration: scalar values and colors from INI files and
// prompt templates for the failure assistant. Embedded defaults are overridden by the global
// config dir (~/.config/regcheck) which is overridden by the project-local .regcheck dir.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/umputun/regcheck/pkg/notify"
)

//go:embed defaults
var defaultsFS embed.FS

// LocalDirName is the project-local config directory.
const LocalDirName = ".regcheck"

// DefaultsFS returns the embedded defaults filesystem.
func DefaultsFS() embed.FS { return defaultsFS }

// Config is the complete application configuration.
type Config struct {
	Values
	Colors  ColorConfig
	Prompts Prompts

	configDir string // global config dir
	localDir  string // local config dir, empty if absent
}

// Load loads configuration from configDir (empty means DefaultConfigDir) and the local
// .regcheck directory in the working directory, if it exists. Default files are installed
// into configDir on first run.
func Load(configDir string) (*Config, error) {
	localDir := ""
	if st, err := os.Stat(LocalDirName); err == nil && st.IsDir() {
		localDir = LocalDirName
	}
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return loadWithLocal(configDir, localDir)
}

// loadWithLocal loads config with explicit global and local dirs.
func loadWithLocal(globalDir, localDir string) (*Config, error) {
	if err := newDefaultsInstaller(defaultsFS).Install(globalDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	globalConfig := filepath.Join(globalDir, "config")
	localConfig, localPrompts := "", ""
	if localDir != "" {
		localConfig = filepath.Join(localDir, "config")
		localPrompts = filepath.Join(localDir, "prompts")
	}

	values, err := newValuesLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	colors, err := newColorLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}
	prompts, err := newPromptLoader(defaultsFS).Load(localPrompts, filepath.Join(globalDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	return &Config{Values: values, Colors: colors, Prompts: prompts, configDir: globalDir, localDir: localDir}, nil
}

// DefaultConfigDir returns ~/.config/regcheck, or the XDG_CONFIG_HOME equivalent.
func DefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "regcheck")
	}
	return filepath.Join(".config", "regcheck")
}

// ConfigDir returns the global config directory.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalDir returns the local config directory, empty if not used.
func (c *Config) LocalDir() string { return c.localDir }

// NotifyParams maps notification values to notify.Params.
func (c *Config) NotifyParams() notify.Params {
	return notify.Params{
		Channels:      c.NotifyChannels,
		OnFailure:     c.NotifyOnFailure,
		OnTimeout:     c.NotifyOnTimeout,
		TimeoutMs:     c.NotifyTimeoutMs,
		TelegramToken: c.NotifyTelegramToken,
		TelegramChat:  c.NotifyTelegramChat,
		SlackToken:    c.NotifySlackToken,
		SlackChannel:  c.NotifySlackChannel,
		SMTPHost:      c.NotifySMTPHost,
		SMTPPort:      c.NotifySMTPPort,
		SMTPUsername:  c.NotifySMTPUsername,
		SMTPPassword:  c.NotifySMTPPassword,
		SMTPStartTLS:  c.NotifySMTPStartTLS,
		EmailFrom:     c.NotifyEmailFrom,
		EmailTo:       c.NotifyEmailTo,
		WebhookURLs:   c.NotifyWebhookURLs,
		CustomScript:  c.NotifyCustomScript,
	}
}

// Duration converts a millisecond config value.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
