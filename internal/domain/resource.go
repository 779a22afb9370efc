package domain

import (
	"net/http"
	"net/url"
	"time"
)

// RequestKey is the normalized identity of a cached request.
type RequestKey struct {
	Method string
	URL    string
}

// KeyFor normalizes a request into a cache key. Fragments never reach the
// network and are dropped; the method is always GET for cached entries.
func KeyFor(u *url.URL) RequestKey {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return RequestKey{Method: http.MethodGet, URL: c.String()}
}

// CachedResponse is a fully buffered response. Entries are immutable once
// stored; updating one is a full replace.
type CachedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// OK reports whether the response is successful and therefore cacheable.
func (r *CachedResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// CacheGeneration summarizes one named cache.
type CacheGeneration struct {
	Name    string
	Entries int
	Bytes   int64
	Active  bool
}

// ResourceClass is the outcome of classifying an intercepted request.
type ResourceClass int

const (
	ClassPassThrough ResourceClass = iota
	ClassDocument
	ClassStaticAsset
	ClassCrossOriginAsset
	ClassOther
)

func (c ResourceClass) String() string {
	switch c {
	case ClassPassThrough:
		return "pass-through"
	case ClassDocument:
		return "document"
	case ClassStaticAsset:
		return "static"
	case ClassCrossOriginAsset:
		return "cross-origin"
	case ClassOther:
		return "other"
	}
	return "unknown"
}
