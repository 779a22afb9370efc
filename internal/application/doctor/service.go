package doctor

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/doeshing/liftlog/internal/application/config"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Pinger checks remote reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DirtyLister reports partitions with unsynced local edits.
type DirtyLister interface {
	DirtyPartitions() []domain.Partition
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Resources      ports.ResourceStore
	Local          DirtyLister
	Remote         Pinger
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s", cfg.ConfigFormatVersion)))
	}

	if s.Resources != nil {
		checks = append(checks, resourceCheck(ctx, s.Resources, cfg.App))
	} else {
		checks = append(checks, warn("Resource cache", "store not initialized"))
	}

	if s.Local != nil {
		if dirty := s.Local.DirtyPartitions(); len(dirty) > 0 {
			names := make([]string, len(dirty))
			for i, p := range dirty {
				names[i] = string(p)
			}
			checks = append(checks, warn("Local data", "unsynced edits: "+strings.Join(names, ", ")))
		} else {
			checks = append(checks, ok("Local data", "all partitions synced"))
		}
	}

	if cfg.Remote.APIKey == "" {
		checks = append(checks, warn("Remote key", "no api key configured (set LIFTLOG_REMOTE_KEY)"))
	}
	if s.Remote != nil {
		if err := s.Remote.Ping(ctx); err != nil {
			checks = append(checks, fail("Remote store", err.Error()))
		} else {
			checks = append(checks, ok("Remote store", "reachable"))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func resourceCheck(ctx context.Context, store ports.ResourceStore, app domain.AppSettings) domain.HealthCheck {
	gens, err := store.Generations(ctx)
	if err != nil {
		return fail("Resource cache", err.Error())
	}
	static := app.StaticCacheName()
	for _, g := range gens {
		if g.Name == static {
			return ok("Resource cache", fmt.Sprintf("%s holds %d entries", static, g.Entries))
		}
	}
	return warn("Resource cache", fmt.Sprintf("%s not installed (run liftlog cache install)", static))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
