package shell

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/pkg/logger"
)

const testOrigin = "https://app.test/"

type matchCall struct {
	cache string
	url   string
}

// memStore is an in-memory ResourceStore that records lookups.
type memStore struct {
	mu      sync.Mutex
	order   []string
	caches  map[string]map[domain.RequestKey]*domain.CachedResponse
	matches []matchCall
}

func newMemStore() *memStore {
	return &memStore{caches: map[string]map[domain.RequestKey]*domain.CachedResponse{}}
}

func (m *memStore) Match(_ context.Context, cache string, key domain.RequestKey) (*domain.CachedResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, matchCall{cache: cache, url: key.URL})
	resp, ok := m.caches[cache][key]
	return resp, ok, nil
}

func (m *memStore) MatchAny(_ context.Context, key domain.RequestKey) (*domain.CachedResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, matchCall{cache: "*", url: key.URL})
	for _, name := range m.order {
		if resp, ok := m.caches[name][key]; ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

func (m *memStore) Put(_ context.Context, cache string, key domain.RequestKey, resp *domain.CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[cache]; !ok {
		m.caches[cache] = map[domain.RequestKey]*domain.CachedResponse{}
		m.order = append(m.order, cache)
	}
	m.caches[cache][key] = resp
	return nil
}

func (m *memStore) Delete(_ context.Context, cache string, key domain.RequestKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.caches[cache][key]
	delete(m.caches[cache], key)
	return ok, nil
}

func (m *memStore) CacheNames(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *memStore) DeleteCache(_ context.Context, cache string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, cache)
	for i, name := range m.order {
		if name == cache {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) Generations(context.Context) ([]domain.CacheGeneration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var gens []domain.CacheGeneration
	for _, name := range m.order {
		gens = append(gens, domain.CacheGeneration{Name: name, Entries: len(m.caches[name])})
	}
	return gens, nil
}

func (m *memStore) body(cache, rawURL string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.caches[cache][domain.RequestKey{Method: http.MethodGet, URL: rawURL}]
	if !ok {
		return "", false
	}
	return string(resp.Body), true
}

func (m *memStore) lookups() []matchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]matchCall(nil), m.matches...)
}

// fakeFetcher answers per URL. A gate blocks the fetch until it is closed
// or the request context ends.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*domain.CachedResponse
	failures  map[string]error
	gates     map[string]chan struct{}
	calls     []*http.Request
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: map[string]*domain.CachedResponse{},
		failures:  map[string]error{},
		gates:     map[string]chan struct{}{},
	}
}

func (f *fakeFetcher) respond(rawURL string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[rawURL] = &domain.CachedResponse{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
	delete(f.failures, rawURL)
}

func (f *fakeFetcher) fail(rawURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[rawURL] = errors.New("connection refused")
}

func (f *fakeFetcher) gate(rawURL string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[rawURL] = ch
	return ch
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *http.Request) (*domain.CachedResponse, error) {
	rawURL := req.URL.String()
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gates[rawURL]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[rawURL]; ok {
		return nil, err
	}
	if resp, ok := f.responses[rawURL]; ok {
		return resp, nil
	}
	return &domain.CachedResponse{StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRouter(t *testing.T, store *memStore, fetcher *fakeFetcher) *Router {
	t.Helper()
	origin, err := url.Parse(testOrigin)
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(store, fetcher, logger.Discard(), Options{
		Origin:          origin,
		StaticCache:     "liftlog-v3",
		RuntimeCache:    "liftlog-runtime",
		DefaultRoute:    "/vandaag/",
		IndexDocument:   "/index.html",
		AllowedHosts:    []string{"cdn.jsdelivr.net", "fonts.gstatic.com"},
		DocumentTimeout: 50 * time.Millisecond,
	})
}

func cached(body string) *domain.CachedResponse {
	return &domain.CachedResponse{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
}

func getKey(rawURL string) domain.RequestKey {
	return domain.RequestKey{Method: http.MethodGet, URL: rawURL}
}

func newGet(t *testing.T, rawURL string, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}
