package shell

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/doeshing/liftlog/internal/domain"
)

// networkFirst races the network against the document timeout. A network
// answer is stored in the runtime cache when successful and returned as is.
// Otherwise the runtime cache, the default route and the index document are
// tried in that order.
func (r *Router) networkFirst(ctx context.Context, req *http.Request, key domain.RequestKey) (*domain.CachedResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.DocumentTimeout)
	defer cancel()

	netReq := req.Clone(fetchCtx)
	netReq.Header.Set("Cache-Control", "no-cache")
	resp, err := r.fetcher.Fetch(fetchCtx, netReq)
	if err == nil {
		if resp.OK() {
			if putErr := r.store.Put(ctx, r.opts.RuntimeCache, key, resp); putErr != nil {
				r.log.Warn("runtime cache write failed", map[string]interface{}{"url": key.URL, "error": putErr.Error()})
			}
		}
		return resp, nil
	}

	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = domain.ErrNetworkTimeout
	} else {
		err = fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	r.log.Debug("document fetch failed, falling back", map[string]interface{}{"url": key.URL, "error": err.Error()})

	type step struct {
		cache string
		key   domain.RequestKey
	}
	steps := []step{{cache: r.opts.RuntimeCache, key: key}}
	if k, ok := r.documentKey(r.opts.DefaultRoute); ok {
		steps = append(steps, step{cache: r.opts.StaticCache, key: k})
	}
	if k, ok := r.documentKey(r.opts.IndexDocument); ok {
		steps = append(steps, step{cache: r.opts.StaticCache, key: k})
	}
	for _, s := range steps {
		cached, ok, matchErr := r.store.Match(ctx, s.cache, s.key)
		if matchErr != nil {
			r.log.Warn("cache lookup failed", map[string]interface{}{"cache": s.cache, "url": s.key.URL, "error": matchErr.Error()})
			continue
		}
		if ok {
			return cached, nil
		}
	}
	return nil, err
}

// staleWhileRevalidate answers from cache without waiting for the network and
// refreshes the entry in the background. Without a cached copy it waits for
// the network. anyCache widens the lookup to every cache.
func (r *Router) staleWhileRevalidate(ctx context.Context, req *http.Request, key domain.RequestKey, cache string, anyCache bool) (*domain.CachedResponse, error) {
	var (
		cached *domain.CachedResponse
		ok     bool
		err    error
	)
	if anyCache {
		cached, ok, err = r.store.MatchAny(ctx, key)
	} else {
		cached, ok, err = r.store.Match(ctx, cache, key)
	}
	if err != nil {
		r.log.Warn("cache lookup failed", map[string]interface{}{"cache": cache, "url": key.URL, "error": err.Error()})
		ok = false
	}

	if ok {
		bg := context.WithoutCancel(ctx)
		bgReq := req.Clone(bg)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if _, err := r.revalidate(bg, bgReq, key, cache); err != nil {
				r.log.Debug("background revalidation failed", map[string]interface{}{"url": key.URL, "error": err.Error()})
			}
		}()
		return cached, nil
	}

	resp, err := r.revalidate(ctx, req, key, cache)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	return resp, nil
}

// revalidate fetches key and overwrites the cache entry on success. Concurrent
// revalidations of the same entry share one network call.
func (r *Router) revalidate(ctx context.Context, req *http.Request, key domain.RequestKey, cache string) (*domain.CachedResponse, error) {
	v, err, _ := r.inflight.Do(cache+" "+key.URL, func() (interface{}, error) {
		resp, err := r.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.OK() {
			if err := r.store.Put(ctx, cache, key, resp); err != nil {
				r.log.Warn("cache write failed", map[string]interface{}{"cache": cache, "url": key.URL, "error": err.Error()})
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CachedResponse), nil
}

// networkFallingBackToCache is the best-effort strategy for anything else in
// scope. Nothing is stored.
func (r *Router) networkFallingBackToCache(ctx context.Context, req *http.Request, key domain.RequestKey) (*domain.CachedResponse, error) {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err == nil {
		return resp, nil
	}
	cached, ok, matchErr := r.store.MatchAny(ctx, key)
	if matchErr == nil && ok {
		return cached, nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
}
