package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLockTimeout = 10 * time.Second
	DefaultServeAddr   = "127.0.0.1:8787"
)

// Config is the merged view of ~/.goals/config.yaml and GOALS_* environment variables.
// Command-line flags are applied on top by the CLI.
type Config struct {
	Dir         string          `mapstructure:"dir" yaml:"dir,omitempty"`
	Workspace   string          `mapstructure:"workspace" yaml:"workspace,omitempty"`
	Format      string          `mapstructure:"format" yaml:"format,omitempty"`
	Pretty      bool            `mapstructure:"pretty" yaml:"pretty,omitempty"`
	LogLevel    string          `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LockTimeout time.Duration   `mapstructure:"lock_timeout" yaml:"lock_timeout,omitempty"`
	Serve       ServeConfig     `mapstructure:"serve" yaml:"serve,omitempty"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry,omitempty"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled,omitempty"`
	// Stdout exports spans and metrics as JSON to stderr instead of dropping them.
	Stdout bool `mapstructure:"stdout" yaml:"stdout,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.goals).
	if v := strings.TrimSpace(os.Getenv("GOALS_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".goals"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("dir", "")
	v.SetDefault("workspace", "")
	v.SetDefault("format", "json")
	v.SetDefault("pretty", false)
	v.SetDefault("log_level", "warn")
	v.SetDefault("lock_timeout", DefaultLockTimeout)
	v.SetDefault("serve.addr", DefaultServeAddr)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)

	v.SetEnvPrefix("GOALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path (or the default config path when empty). A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// SaveConfig writes cfg as YAML to path (or the default config path when empty).
func SaveConfig(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, ".config.yaml.*", path, b, 0o644)
}

// ListWorkspaces returns the named workspaces under ~/.goals/workspaces that hold a database.
func ListWorkspaces() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, "workspaces"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "workspaces", e.Name(), sqliteFileName)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
