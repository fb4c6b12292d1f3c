package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAttemptsPerMinute caps presence prompts when the config does not.
const DefaultAttemptsPerMinute = 5

// Config holds persistent configuration loaded from ~/.securestore/config.yaml.
type Config struct {
	// Backend selects the item store: system, keyring, oskeyring or memory.
	Backend    string         `yaml:"backend,omitempty"`
	Keyring    KeyringConfig  `yaml:"keyring,omitempty"`
	Presence   PresenceConfig `yaml:"presence,omitempty"`
	SocketPath string         `yaml:"socket_path,omitempty"`
	AuditLog   string         `yaml:"audit_log,omitempty"`
	LogLevel   string         `yaml:"log_level,omitempty"`
}

// KeyringConfig configures the 99designs/keyring backend.
type KeyringConfig struct {
	Dir         string   `yaml:"dir,omitempty"`
	Backends    []string `yaml:"backends,omitempty"`
	PasswordEnv string   `yaml:"password_env,omitempty"`
}

// PresenceConfig configures the passcode used for user presence checks.
type PresenceConfig struct {
	// PasscodeHash is a bcrypt hash. Empty means presence cannot be
	// established and protected items cannot be created.
	PasscodeHash      string `yaml:"passcode_hash,omitempty"`
	AttemptsPerMinute int    `yaml:"attempts_per_minute,omitempty"`
}

// Dir returns the securestore state directory: ~/.securestore.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".securestore")
}

// DefaultPath returns the default config file path: ~/.securestore/config.yaml.
func DefaultPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns an empty Config and no error. An empty or all-comment file
// also returns an empty Config with no error. Unknown keys are rejected,
// including the retired api_addr: the API is only served on the socket.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, replacing any existing file atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Socket returns the API socket path, defaulting to ~/.securestore/securestore.sock.
func (c *Config) Socket() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return filepath.Join(Dir(), "securestore.sock")
}

// AuditPath returns the audit log path, defaulting to ~/.securestore/audit.log.
func (c *Config) AuditPath() string {
	if c.AuditLog != "" {
		return c.AuditLog
	}
	return filepath.Join(Dir(), "audit.log")
}

// Attempts returns the presence prompt limit per minute.
func (c *Config) Attempts() int {
	if c.Presence.AttemptsPerMinute > 0 {
		return c.Presence.AttemptsPerMinute
	}
	return DefaultAttemptsPerMinute
}

// Level parses LogLevel. Unknown or empty values mean info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
