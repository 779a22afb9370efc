package shell

import (
	"context"
	"errors"
	"net/http"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Worker exposes the resource cache through explicit lifecycle hooks. A
// platform adapter (the local proxy) calls OnInstall and OnActivate once at
// startup and OnIntercept for every request.
type Worker struct {
	Generations *Generations
	Router      *Router
	Logger      ports.Logger
	Version     string
	Precache    []string
}

// NewWorker wires generations and a router for the configured app shell.
func NewWorker(store ports.ResourceStore, fetcher ports.Fetcher, log ports.Logger, app domain.AppSettings) (*Worker, error) {
	opts, err := OptionsFromConfig(app)
	if err != nil {
		return nil, err
	}
	return &Worker{
		Generations: &Generations{
			Store:   store,
			Fetcher: fetcher,
			Logger:  log,
			Origin:  opts.Origin,
			Prefix:  app.CachePrefix,
		},
		Router:   NewRouter(store, fetcher, log, opts),
		Logger:   log,
		Version:  app.Version,
		Precache: app.Precache,
	}, nil
}

// OnInstall precaches the app shell. Precache failures are logged and do not
// block activation; other errors are returned.
func (w *Worker) OnInstall(ctx context.Context) error {
	err := w.Generations.Install(ctx, w.Version, w.Precache)
	var precacheErr *domain.PrecacheError
	if errors.As(err, &precacheErr) {
		w.Logger.Warn("precache incomplete", map[string]interface{}{
			"version": w.Version,
			"failed":  precacheErr.Failed,
		})
		return nil
	}
	return err
}

// OnActivate evicts stale generations.
func (w *Worker) OnActivate(ctx context.Context) error {
	_, err := w.Generations.Activate(ctx, w.Version)
	return err
}

// OnIntercept answers an intercepted request. The boolean is false for
// requests that must pass through untouched.
func (w *Worker) OnIntercept(ctx context.Context, req *http.Request) (*domain.CachedResponse, bool, error) {
	return w.Router.Intercept(ctx, req)
}

// Start runs the install and activate hooks in order.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.OnInstall(ctx); err != nil {
		return err
	}
	return w.OnActivate(ctx)
}

// Wait blocks until background cache refreshes have finished.
func (w *Worker) Wait() {
	w.Router.Wait()
}
