package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/liftlog/assets"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/pkg/filesystem"
	"github.com/doeshing/liftlog/internal/ports"
)

// FileLoader loads YAML configuration from ~/.liftlog/config.yaml (overridable via LIFTLOG_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// envOverrides are applied on top of the file.
type envOverrides struct {
	RemoteURL  string `env:"LIFTLOG_REMOTE_URL"`
	RemoteKey  string `env:"LIFTLOG_REMOTE_KEY"`
	DataDir    string `env:"LIFTLOG_DATA_DIR"`
	Listen     string `env:"LIFTLOG_LISTEN"`
	AppVersion string `env:"LIFTLOG_APP_VERSION"`
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML
		if err := os.WriteFile(path, data, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, err
		}
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg, err = applyEnv(cfg)
	if err != nil {
		return domain.Config{}, err
	}
	return hydrateDefaults(cfg), nil
}

// Default returns the embedded default configuration without reading the
// file or the environment.
func Default() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse default config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

// Path returns the config file the loader reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("LIFTLOG_CONFIG"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".liftlog", "config.yaml")
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func applyEnv(cfg domain.Config) (domain.Config, error) {
	o, err := env.ParseAs[envOverrides]()
	if err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if o.RemoteURL != "" {
		cfg.Remote.URL = o.RemoteURL
	}
	if o.RemoteKey != "" {
		cfg.Remote.APIKey = o.RemoteKey
	}
	if o.DataDir != "" {
		cfg.Storage.DataDir = o.DataDir
	}
	if o.Listen != "" {
		cfg.Proxy.Listen = o.Listen
	}
	if o.AppVersion != "" {
		cfg.App.Version = o.AppVersion
	}
	return cfg, nil
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.App.CachePrefix == "" {
		cfg.App.CachePrefix = "liftlog"
	}
	if cfg.App.DocumentTimeout == 0 {
		cfg.App.DocumentTimeout = domain.DefaultDocumentTimeout
	}
	if cfg.Proxy.Listen == "" {
		cfg.Proxy.Listen = "127.0.0.1:8787"
	}
	if cfg.Remote.Table == "" {
		cfg.Remote.Table = "workout_entries"
	}
	if cfg.Remote.CountsTable == "" {
		cfg.Remote.CountsTable = "session_counts"
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = domain.DefaultRemoteTimeout
	}
	if cfg.Sync.EditDelay == 0 {
		cfg.Sync.EditDelay = domain.DefaultEditDelay
	}
	if cfg.Sync.ProbeInterval == 0 {
		cfg.Sync.ProbeInterval = domain.DefaultProbeInterval
	}
	if cfg.Sync.ProbeTimeout == 0 {
		cfg.Sync.ProbeTimeout = domain.DefaultProbeTimeout
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filepath.Join(filesystem.UserHomeDir(), ".liftlog", "data")
	}
	cfg.Storage.DataDir = filesystem.ExpandPath(cfg.Storage.DataDir)
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
