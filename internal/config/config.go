// Package config loads flakeedit settings from a YAML file, a .env file and FLAKEEDIT_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIAddr      = "https://api.flakehub.com"
	DefaultFrontendAddr = "https://flakehub.com"
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "flakeedit"
	DefaultFlakePath    = "./flake.nix"
)

// Config holds the settings shared by all commands.
type Config struct {
	APIAddr      string        `yaml:"api_addr"`
	FrontendAddr string        `yaml:"frontend_addr"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	FlakePath    string        `yaml:"flake_path"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIAddr:      DefaultAPIAddr,
		FrontendAddr: DefaultFrontendAddr,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		FlakePath:    DefaultFlakePath,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/flakeedit/config.yaml, falling back to the
// platform user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		d, err := os.UserConfigDir()
		if err != nil {
			return ""
		}
		dir = d
	}
	return filepath.Join(dir, "flakeedit", "config.yaml")
}

// Load reads the config at path. A missing file is not an error; an empty path means
// DefaultPath.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	expandEnv(cfg)

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %v: must be positive", cfg.Timeout)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FLAKEEDIT_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("FLAKEEDIT_FRONTEND_ADDR"); v != "" {
		cfg.FrontendAddr = v
	}
	if v := os.Getenv("FLAKEEDIT_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("FLAKEEDIT_FLAKE_PATH"); v != "" {
		cfg.FlakePath = v
	}
	if v := os.Getenv("FLAKEEDIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FLAKEEDIT_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the value of VAR.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func expandEnv(cfg *Config) {
	cfg.APIAddr = expandEnvVars(cfg.APIAddr)
	cfg.FrontendAddr = expandEnvVars(cfg.FrontendAddr)
	cfg.UserAgent = expandEnvVars(cfg.UserAgent)
	cfg.FlakePath = expandEnvVars(cfg.FlakePath)
}
