package app

import (
	"context"
	"net/http"
	"path/filepath"

	"go.uber.org/multierr"

	appconfig "github.com/doeshing/liftlog/internal/application/config"
	"github.com/doeshing/liftlog/internal/application/doctor"
	"github.com/doeshing/liftlog/internal/application/shell"
	"github.com/doeshing/liftlog/internal/application/tally"
	"github.com/doeshing/liftlog/internal/application/workout"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/infrastructure/config"
	"github.com/doeshing/liftlog/internal/infrastructure/connectivity"
	"github.com/doeshing/liftlog/internal/infrastructure/kvstore"
	"github.com/doeshing/liftlog/internal/infrastructure/proxy"
	"github.com/doeshing/liftlog/internal/infrastructure/remote"
	"github.com/doeshing/liftlog/internal/infrastructure/resourcecache"
	"github.com/doeshing/liftlog/internal/pkg/logger"
	"github.com/doeshing/liftlog/internal/ports"
)

// Options controls container construction.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       *logger.Logrus
	Resources    *resourcecache.SQLiteStore
	Store        *kvstore.FileStore
	Local        *workout.LocalCache
	Remote       *remote.Client
	Fetcher      *proxy.HTTPFetcher
	Worker       *shell.Worker
	Tally        *tally.Service
	Doctor       *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, err
	}

	log := logger.NewStd(opts.Verbose)

	resources, err := resourcecache.Open(filepath.Join(cfg.Storage.DataDir, "resources.db"))
	if err != nil {
		return nil, err
	}

	remoteClient, err := remote.New(cfg.Remote, nil)
	if err != nil {
		resources.Close()
		return nil, err
	}

	store := kvstore.NewFileStore(filepath.Join(cfg.Storage.DataDir, "local"))
	local := workout.NewLocalCache(store, log.With("component", "local-cache"))
	fetcher := proxy.NewHTTPFetcher(&http.Client{})

	worker, err := shell.NewWorker(resources, fetcher, log.With("component", "shell"), cfg.App)
	if err != nil {
		resources.Close()
		return nil, err
	}

	return &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		Resources:    resources,
		Store:        store,
		Local:        local,
		Remote:       remoteClient,
		Fetcher:      fetcher,
		Worker:       worker,
		Tally:        tally.NewService(remoteClient, store, cfg.Tally, log.With("component", "tally")),
		Doctor: &doctor.Service{
			ConfigProvider: cfgLoader,
			Resources:      resources,
			Local:          local,
			Remote:         remoteClient,
		},
	}, nil
}

// NewMonitor returns a connectivity monitor probing the remote store.
func (c *Container) NewMonitor() *connectivity.Monitor {
	return connectivity.NewMonitor(c.Remote, c.Config.Sync, c.Logger.With("component", "connectivity"))
}

// ProbeOnce returns a connectivity signal fixed by a single probe. One-shot
// commands use it instead of a background monitor.
func (c *Container) ProbeOnce(ctx context.Context) ports.Connectivity {
	m := c.NewMonitor()
	m.Probe(ctx)
	return m.Switch
}

// OpenSession returns a session for partition. status may be nil.
func (c *Container) OpenSession(ctx context.Context, partition domain.Partition, conn ports.Connectivity, status ports.StatusReporter) *workout.Session {
	return workout.NewSession(ctx, workout.Options{
		Partition:    partition,
		Remote:       c.Remote,
		Local:        c.Local,
		Connectivity: conn,
		Status:       status,
		Logger:       c.Logger.With("component", "workout"),
		EditDelay:    c.Config.Sync.EditDelay,
	})
}

// NewDrainer returns a drainer for every dirty partition.
func (c *Container) NewDrainer(conn ports.Connectivity, status ports.StatusReporter) *workout.Drainer {
	return &workout.Drainer{
		Remote:       c.Remote,
		Local:        c.Local,
		Connectivity: conn,
		Status:       status,
		Logger:       c.Logger.With("component", "drain"),
		EditDelay:    c.Config.Sync.EditDelay,
	}
}

// Close releases every resource the container opened.
func (c *Container) Close() error {
	var errs error
	c.Worker.Wait()
	if c.Resources != nil {
		errs = multierr.Append(errs, c.Resources.Close())
	}
	return errs
}
