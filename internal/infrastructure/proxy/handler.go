// Package proxy hosts the resource cache behind a local HTTP server.
//
// The handler is the platform adapter for the cache lifecycle: every
// incoming request goes through the interceptor first, and anything it
// declines is forwarded to its real destination untouched.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Interceptor answers intercepted requests. The boolean is false when the
// request must pass through.
type Interceptor interface {
	OnIntercept(ctx context.Context, req *http.Request) (*domain.CachedResponse, bool, error)
}

// Handler serves intercepted requests from the resource cache and forwards
// everything else.
type Handler struct {
	interceptor Interceptor
	origin      *url.URL
	log         ports.Logger
	forward     *httputil.ReverseProxy
}

// NewHandler builds a handler. Requests with a relative target are resolved
// against origin; absolute targets (forward-proxy style) are used as is.
func NewHandler(interceptor Interceptor, origin *url.URL, transport http.RoundTripper, log ports.Logger) *Handler {
	h := &Handler{interceptor: interceptor, origin: origin, log: log}
	h.forward = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := h.target(pr.In.URL)
			pr.Out.URL = target
			pr.Out.Host = target.Host
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.log.Warn("pass-through failed", map[string]interface{}{"url": r.URL.String(), "error": err.Error()})
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, handled, err := h.interceptor.OnIntercept(r.Context(), r)
	if !handled {
		h.forward.ServeHTTP(w, r)
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrNetworkTimeout) {
			status = http.StatusGatewayTimeout
		}
		h.log.Debug("intercept failed", map[string]interface{}{"url": r.URL.String(), "status": status, "error": err.Error()})
		http.Error(w, err.Error(), status)
		return
	}
	writeCached(w, resp)
}

func (h *Handler) target(u *url.URL) *url.URL {
	if u.IsAbs() {
		c := *u
		return &c
	}
	return h.origin.ResolveReference(u)
}

func writeCached(w http.ResponseWriter, resp *domain.CachedResponse) {
	header := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
