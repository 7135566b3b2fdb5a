package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// StorageConfig names the files kept under the data directory.
type StorageConfig struct {
	KeystoreFile string `toml:"keystoreFile"`
	ContactsDB   string `toml:"contactsDb"`
}

// LoggingConfig defines basic logging knobs. Logs go to stderr and the
// optional file; stdout belongs to the protocol.
type LoggingConfig struct {
	Level       string `toml:"level"`
	FilePath    string `toml:"filePath"`
	FileMaxSize int    `toml:"fileMaxSizeMB"`
}

// RelayConfig carries startup relay preferences. The configure_relay
// method is a stub; these are defaults handed to the network layer once it
// is wired through the bridge.
type RelayConfig struct {
	Preferred []string `toml:"preferred"`
	MaxHops   int      `toml:"maxHops"`
}

// MailboxConfig carries the startup mailbox preference.
type MailboxConfig struct {
	Address          string `toml:"address"`
	PollIntervalSecs int    `toml:"pollIntervalSec"`
}

// Config aggregates bridge configuration for one data directory.
type Config struct {
	DataDir string        `toml:"-"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	Relay   RelayConfig   `toml:"relay"`
	Mailbox MailboxConfig `toml:"mailbox"`
}

// env holds VEIL_* environment overrides.
type env struct {
	DataDir  string `envconfig:"DATA_DIR"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	LogFile  string `envconfig:"LOG_FILE"`
}

// Load resolves configuration for dataDir: built-in defaults, then an
// optional config.toml inside the data directory, then VEIL_* environment
// overrides. VEIL_DATA_DIR takes precedence over the dataDir argument so
// the parent can relocate the profile without changing argv.
func Load(dataDir string) (*Config, error) {
	var overrides env
	if err := envconfig.Process("veil", &overrides); err != nil {
		return nil, err
	}
	if overrides.DataDir != "" {
		dataDir = overrides.DataDir
	}

	cfg := Config{DataDir: dataDir}
	data, err := os.ReadFile(filepath.Join(dataDir, "config.toml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config.toml: %w", err)
		}
	}

	if overrides.LogLevel != "" {
		cfg.Logging.Level = overrides.LogLevel
	}
	if overrides.LogFile != "" {
		cfg.Logging.FilePath = overrides.LogFile
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data directory required")
	}
	if cfg.Storage.KeystoreFile == "" {
		cfg.Storage.KeystoreFile = "keystore.age"
	}
	if cfg.Storage.ContactsDB == "" {
		cfg.Storage.ContactsDB = "contacts.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Relay.MaxHops <= 0 {
		cfg.Relay.MaxHops = 3
	}
	if cfg.Mailbox.PollIntervalSecs <= 0 {
		cfg.Mailbox.PollIntervalSecs = 30
	}
	return nil
}

// KeystorePath returns the keystore file location.
func (cfg *Config) KeystorePath() string {
	return filepath.Join(cfg.DataDir, cfg.Storage.KeystoreFile)
}

// ContactsPath returns the contact database location.
func (cfg *Config) ContactsPath() string {
	return filepath.Join(cfg.DataDir, cfg.Storage.ContactsDB)
}
