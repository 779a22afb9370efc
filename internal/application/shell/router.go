// Package shell serves the application shell through a versioned resource cache.
//
// Every intercepted GET request is classified and handed to one of three
// strategies: network-first with a timeout for documents, stale-while-revalidate
// for static assets (same-origin or on an allow-listed CDN host), and
// network-falling-back-to-cache for everything else in scope.
package shell

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

var staticDestinations = map[string]bool{
	"style":  true,
	"script": true,
	"font":   true,
	"image":  true,
}

var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".mjs": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
}

// Options configures a Router.
type Options struct {
	Origin          *url.URL
	StaticCache     string
	RuntimeCache    string
	DefaultRoute    string
	IndexDocument   string
	AllowedHosts    []string
	DocumentTimeout time.Duration
}

// OptionsFromConfig derives router options from the app settings.
func OptionsFromConfig(app domain.AppSettings) (Options, error) {
	origin, err := url.Parse(app.Origin)
	if err != nil {
		return Options{}, err
	}
	if !origin.IsAbs() {
		return Options{}, errors.New("app.origin must be an absolute url")
	}
	if origin.Path == "" {
		origin.Path = "/"
	}
	timeout := app.DocumentTimeout
	if timeout <= 0 {
		timeout = domain.DefaultDocumentTimeout
	}
	return Options{
		Origin:          origin,
		StaticCache:     app.StaticCacheName(),
		RuntimeCache:    app.RuntimeCacheName(),
		DefaultRoute:    app.DefaultRoute,
		IndexDocument:   app.IndexDocument,
		AllowedHosts:    app.AllowedHosts,
		DocumentTimeout: timeout,
	}, nil
}

// Router classifies intercepted requests and dispatches them to a strategy.
type Router struct {
	store   ports.ResourceStore
	fetcher ports.Fetcher
	log     ports.Logger
	opts    Options
	allowed map[string]bool
	tracer  trace.Tracer

	inflight singleflight.Group
	wg       sync.WaitGroup
}

// NewRouter builds a router over store and fetcher.
func NewRouter(store ports.ResourceStore, fetcher ports.Fetcher, log ports.Logger, opts Options) *Router {
	if opts.DocumentTimeout <= 0 {
		opts.DocumentTimeout = domain.DefaultDocumentTimeout
	}
	allowed := make(map[string]bool, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		allowed[strings.ToLower(h)] = true
	}
	return &Router{
		store:   store,
		fetcher: fetcher,
		log:     log,
		opts:    opts,
		allowed: allowed,
		tracer:  otel.Tracer("github.com/doeshing/liftlog/internal/application/shell"),
	}
}

// Classify decides which strategy handles req.
func (r *Router) Classify(req *http.Request) domain.ResourceClass {
	if req.Method != http.MethodGet {
		return domain.ClassPassThrough
	}
	u := r.absolute(req.URL)
	if !r.sameOrigin(u) {
		if r.allowed[strings.ToLower(u.Hostname())] {
			return domain.ClassCrossOriginAsset
		}
		return domain.ClassPassThrough
	}
	if !strings.HasPrefix(u.Path, r.opts.Origin.Path) {
		return domain.ClassPassThrough
	}

	dest := strings.ToLower(req.Header.Get("Sec-Fetch-Dest"))
	mode := strings.ToLower(req.Header.Get("Sec-Fetch-Mode"))
	switch {
	case mode == "navigate" || dest == "document":
		return domain.ClassDocument
	case staticDestinations[dest]:
		return domain.ClassStaticAsset
	case dest != "":
		return domain.ClassOther
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case staticExtensions[ext]:
		return domain.ClassStaticAsset
	case ext == ".html" || ext == ".htm":
		return domain.ClassDocument
	case ext == "" && strings.Contains(req.Header.Get("Accept"), "text/html"):
		return domain.ClassDocument
	}
	return domain.ClassOther
}

// Intercept answers req from the network and/or the cache. The boolean is
// false for requests the router does not intercept; the caller forwards those
// untouched.
func (r *Router) Intercept(ctx context.Context, req *http.Request) (*domain.CachedResponse, bool, error) {
	class := r.Classify(req)
	if class == domain.ClassPassThrough {
		return nil, false, nil
	}
	u := r.absolute(req.URL)
	key := domain.KeyFor(u)
	if u != req.URL {
		req = req.Clone(ctx)
		req.URL = u
		req.Host = u.Host
	}

	ctx, span := r.tracer.Start(ctx, "shell.intercept", trace.WithAttributes(
		attribute.String("http.url", key.URL),
		attribute.String("liftlog.class", class.String()),
	))
	defer span.End()

	var (
		resp *domain.CachedResponse
		err  error
	)
	switch class {
	case domain.ClassDocument:
		resp, err = r.networkFirst(ctx, req, key)
	case domain.ClassStaticAsset:
		resp, err = r.staleWhileRevalidate(ctx, req, key, r.opts.StaticCache, true)
	case domain.ClassCrossOriginAsset:
		resp, err = r.staleWhileRevalidate(ctx, req, key, r.opts.RuntimeCache, false)
	default:
		resp, err = r.networkFallingBackToCache(ctx, req, key)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, true, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, true, nil
}

// Wait blocks until background revalidations have finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) absolute(u *url.URL) *url.URL {
	if u.IsAbs() {
		return u
	}
	return r.opts.Origin.ResolveReference(u)
}

func (r *Router) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, r.opts.Origin.Scheme) && strings.EqualFold(u.Host, r.opts.Origin.Host)
}

func (r *Router) documentKey(route string) (domain.RequestKey, bool) {
	if route == "" {
		return domain.RequestKey{}, false
	}
	u, err := resolve(r.opts.Origin, route)
	if err != nil {
		return domain.RequestKey{}, false
	}
	return domain.KeyFor(u), true
}
