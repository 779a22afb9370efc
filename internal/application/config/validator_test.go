package config

import (
	"strings"
	"testing"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		App: domain.AppSettings{
			Origin:          "https://app.test/",
			CachePrefix:     "liftlog",
			Version:         "v3",
			AllowedHosts:    []string{"cdn.jsdelivr.net"},
			DocumentTimeout: 4500 * time.Millisecond,
		},
		Proxy:   domain.ProxySettings{Listen: "127.0.0.1:8787"},
		Remote:  domain.RemoteSettings{URL: "https://db.test", Table: "workout_entries", Timeout: time.Second},
		Sync:    domain.SyncSettings{EditDelay: 500 * time.Millisecond, ProbeInterval: time.Second, ProbeTimeout: time.Second},
		Storage: domain.StorageSettings{DataDir: "/tmp/liftlog"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "relative origin", mutate: func(c *domain.Config) { c.App.Origin = "/app" }, wantErr: "app.origin"},
		{name: "missing prefix", mutate: func(c *domain.Config) { c.App.CachePrefix = "" }, wantErr: "app.cache_prefix"},
		{name: "runtime version", mutate: func(c *domain.Config) { c.App.Version = "runtime" }, wantErr: "app.version"},
		{name: "zero document timeout", mutate: func(c *domain.Config) { c.App.DocumentTimeout = 0 }, wantErr: "app.document_timeout"},
		{name: "host with path", mutate: func(c *domain.Config) { c.App.AllowedHosts = []string{"cdn.test/x"} }, wantErr: "allowed_hosts"},
		{name: "missing remote", mutate: func(c *domain.Config) { c.Remote.URL = "" }, wantErr: "remote.url"},
		{name: "negative edit delay", mutate: func(c *domain.Config) { c.Sync.EditDelay = -1 }, wantErr: "sync.edit_delay"},
		{name: "negative floor", mutate: func(c *domain.Config) { c.Tally.Floors = map[int]int{2026: -1} }, wantErr: "tally.floors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
