package domain

import "time"

// Config mirrors ~/.liftlog/config.yaml.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	App                 AppSettings     `yaml:"app"`
	Proxy               ProxySettings   `yaml:"proxy"`
	Remote              RemoteSettings  `yaml:"remote"`
	Sync                SyncSettings    `yaml:"sync"`
	Storage             StorageSettings `yaml:"storage"`
	Tally               TallySettings   `yaml:"tally"`
}

// AppSettings describes the app shell served through the resource cache.
type AppSettings struct {
	Origin          string        `yaml:"origin"`
	CachePrefix     string        `yaml:"cache_prefix"`
	Version         string        `yaml:"version"`
	Precache        []string      `yaml:"precache"`
	DefaultRoute    string        `yaml:"default_route"`
	IndexDocument   string        `yaml:"index_document"`
	AllowedHosts    []string      `yaml:"allowed_hosts"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
}

// ProxySettings configures the local caching proxy.
type ProxySettings struct {
	Listen string `yaml:"listen"`
}

// RemoteSettings points at the PostgREST endpoint holding workout entries.
type RemoteSettings struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key,omitempty"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Table       string        `yaml:"table"`
	CountsTable string        `yaml:"counts_table"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SyncSettings tunes the edit coalescer and connectivity probing.
type SyncSettings struct {
	EditDelay     time.Duration `yaml:"edit_delay"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// StorageSettings locates persisted local state.
type StorageSettings struct {
	DataDir string `yaml:"data_dir"`
}

// TallySettings configures the yearly session counter.
type TallySettings struct {
	Baselines map[int]int `yaml:"baselines"`
	Floors    map[int]int `yaml:"floors"`
}

// StaticCacheName returns the name of the precache generation for the configured version.
func (a AppSettings) StaticCacheName() string {
	return a.CachePrefix + "-" + a.Version
}

// RuntimeCacheName returns the protected runtime cache name.
func (a AppSettings) RuntimeCacheName() string {
	return a.CachePrefix + "-runtime"
}
