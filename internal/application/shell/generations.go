package shell

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Generations manages versioned precache generations on top of a ResourceStore.
// A generation is the static cache named "<prefix>-<version>"; the runtime
// cache "<prefix>-runtime" is shared by all generations and never evicted.
type Generations struct {
	Store   ports.ResourceStore
	Fetcher ports.Fetcher
	Logger  ports.Logger
	Origin  *url.URL
	Prefix  string
}

// Name returns the static cache name for version.
func (g *Generations) Name(version string) string {
	return g.Prefix + "-" + version
}

// RuntimeName returns the protected runtime cache name.
func (g *Generations) RuntimeName() string {
	return g.Prefix + "-runtime"
}

// Install fetches every url into the generation for version. Fetches run with
// bounded concurrency and a failure never aborts the others; the URLs that
// could not be stored are reported through a *domain.PrecacheError.
func (g *Generations) Install(ctx context.Context, version string, urls []string) error {
	cache := g.Name(version)

	var (
		mu     sync.Mutex
		failed []string
		errs   error
	)
	fail := func(raw string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, raw)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", raw, err))
	}

	var group errgroup.Group
	group.SetLimit(domain.PrecacheConcurrency)
	for _, raw := range urls {
		group.Go(func() error {
			target, err := resolve(g.Origin, raw)
			if err != nil {
				fail(raw, err)
				return nil
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
			if err != nil {
				fail(raw, err)
				return nil
			}
			resp, err := g.Fetcher.Fetch(ctx, req)
			if err != nil {
				fail(raw, err)
				return nil
			}
			if !resp.OK() {
				fail(raw, fmt.Errorf("status %d", resp.StatusCode))
				return nil
			}
			if err := g.Store.Put(ctx, cache, domain.KeyFor(target), resp); err != nil {
				fail(raw, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	if len(failed) == 0 {
		g.Logger.Debug("precache complete", map[string]interface{}{"cache": cache, "urls": len(urls)})
		return nil
	}
	sort.Strings(failed)
	return &domain.PrecacheError{Version: version, Failed: failed, Err: errs}
}

// Activate deletes every cache that is neither the generation for version nor
// the runtime cache, and returns the names it removed. Only stale caches are
// touched, so it is safe to run while requests are being served.
func (g *Generations) Activate(ctx context.Context, version string) ([]string, error) {
	names, err := g.Store.CacheNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	keep := map[string]bool{g.Name(version): true, g.RuntimeName(): true}

	var (
		removed []string
		errs    error
	)
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := g.Store.DeleteCache(ctx, name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete cache %s: %w", name, err))
			continue
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		g.Logger.Info("stale caches removed", map[string]interface{}{"caches": removed})
	}
	return removed, errs
}

// List summarizes every cache and marks the generation for version as active.
func (g *Generations) List(ctx context.Context, version string) ([]domain.CacheGeneration, error) {
	gens, err := g.Store.Generations(ctx)
	if err != nil {
		return nil, err
	}
	active := g.Name(version)
	for i := range gens {
		gens[i].Active = gens[i].Name == active
	}
	return gens, nil
}

// Clear drops every cache, including the runtime cache.
func (g *Generations) Clear(ctx context.Context) error {
	names, err := g.Store.CacheNames(ctx)
	if err != nil {
		return err
	}
	var errs error
	for _, name := range names {
		errs = multierr.Append(errs, g.Store.DeleteCache(ctx, name))
	}
	return errs
}

func resolve(origin *url.URL, raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("relative url %q without origin", raw)
		}
		return ref, nil
	}
	return origin.ResolveReference(ref), nil
}
