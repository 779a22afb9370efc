package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

var _ ports.Fetcher = (*HTTPFetcher)(nil)

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HTTPFetcher performs resource cache fetches with an http.Client and
// buffers the whole response.
type HTTPFetcher struct {
	Client *http.Client
	now    func() time.Time
}

// NewHTTPFetcher wraps client, or http.DefaultClient when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client, now: time.Now}
}

// Fetch sends a copy of req suitable for a client round trip.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *http.Request) (*domain.CachedResponse, error) {
	out := req.Clone(ctx)
	out.RequestURI = ""
	out.Host = out.URL.Host
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	// let the transport negotiate compression so stored bodies are plain
	out.Header.Del("Accept-Encoding")

	resp, err := f.Client.Do(out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")
	return &domain.CachedResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
		StoredAt:   f.now().UTC(),
	}, nil
}
