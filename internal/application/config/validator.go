package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateApp(cfg.App); err != nil {
		return err
	}
	if err := validateRemote(cfg.Remote); err != nil {
		return err
	}
	if err := validateSync(cfg.Sync); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Proxy.Listen) == "" {
		return errors.New("proxy.listen must be set")
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return errors.New("storage.data_dir must be set")
	}
	return validateTally(cfg.Tally)
}

func validateApp(app domain.AppSettings) error {
	origin, err := url.Parse(app.Origin)
	if err != nil || !origin.IsAbs() {
		return fmt.Errorf("app.origin must be an absolute url, got %q", app.Origin)
	}
	if strings.TrimSpace(app.CachePrefix) == "" {
		return errors.New("app.cache_prefix must be set")
	}
	if strings.TrimSpace(app.Version) == "" {
		return errors.New("app.version must be set")
	}
	if app.Version == "runtime" {
		return errors.New("app.version must not be \"runtime\"")
	}
	if err := positive("app.document_timeout", app.DocumentTimeout); err != nil {
		return err
	}
	for _, host := range app.AllowedHosts {
		if strings.Contains(host, "/") || strings.TrimSpace(host) == "" {
			return fmt.Errorf("app.allowed_hosts entries must be bare hostnames, got %q", host)
		}
	}
	return nil
}

func validateRemote(remote domain.RemoteSettings) error {
	u, err := url.Parse(remote.URL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("remote.url must be an absolute url, got %q", remote.URL)
	}
	if strings.TrimSpace(remote.Table) == "" {
		return errors.New("remote.table must be set")
	}
	return positive("remote.timeout", remote.Timeout)
}

func validateSync(sync domain.SyncSettings) error {
	if sync.EditDelay < 0 {
		return errors.New("sync.edit_delay must be >= 0")
	}
	if err := positive("sync.probe_interval", sync.ProbeInterval); err != nil {
		return err
	}
	return positive("sync.probe_timeout", sync.ProbeTimeout)
}

func validateTally(tally domain.TallySettings) error {
	for year, n := range tally.Baselines {
		if n < 0 {
			return fmt.Errorf("tally.baselines[%d] must be >= 0", year)
		}
	}
	for year, n := range tally.Floors {
		if n < 0 {
			return fmt.Errorf("tally.floors[%d] must be >= 0", year)
		}
	}
	return nil
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be > 0", name)
	}
	return nil
}
