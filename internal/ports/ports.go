// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The application core (the fetch strategy router, the reconciliation engine and
// the session tally) depends only on these interfaces. Adapters in the
// infrastructure layer implement them against SQLite, the filesystem, the
// PostgREST remote store and net/http.
package ports

import (
	"context"
	"net/http"

	"github.com/doeshing/liftlog/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.liftlog/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ResourceStore is the content store behind the versioned resource cache.
// Entries are addressed by request identity and scoped into named caches.
type ResourceStore interface {
	Match(ctx context.Context, cache string, key domain.RequestKey) (*domain.CachedResponse, bool, error)
	// MatchAny searches every cache in creation order.
	MatchAny(ctx context.Context, key domain.RequestKey) (*domain.CachedResponse, bool, error)
	Put(ctx context.Context, cache string, key domain.RequestKey, resp *domain.CachedResponse) error
	Delete(ctx context.Context, cache string, key domain.RequestKey) (bool, error)
	CacheNames(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, cache string) error
	Generations(ctx context.Context) ([]domain.CacheGeneration, error)
}

// Fetcher performs network requests on behalf of the resource cache.
// Responses are fully buffered; transport failures are returned as errors.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*domain.CachedResponse, error)
}

// RemoteStore is the authoritative store of workout records.
// Every error it returns is a *domain.RemoteError.
type RemoteStore interface {
	Select(ctx context.Context, partition domain.Partition) ([]domain.Record, error)
	// Upsert inserts or replaces records keyed by (partition, position).
	Upsert(ctx context.Context, records ...domain.Record) error
	// Update sets the given columns on the record matching (partition, position).
	Update(ctx context.Context, partition domain.Partition, position int, fields map[domain.Field]any) error
	// DeleteAbove removes every record of the partition whose position exceeds threshold.
	DeleteAbove(ctx context.Context, partition domain.Partition, threshold int) error
}

// CounterStore holds the yearly completed-session counts.
type CounterStore interface {
	Count(ctx context.Context, year int) (int, error)
	InsertCount(ctx context.Context, year, count int) (int, error)
	UpsertCount(ctx context.Context, year, count int) error
}

// KeyValueStore is a small persisted string store that survives restarts.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
}

// Connectivity is the observable online/offline signal.
type Connectivity interface {
	Online() bool
	// Subscribe registers fn for every transition and returns a function that unregisters it.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// StatusReporter surfaces the four-state save indicator.
type StatusReporter interface {
	Report(partition domain.Partition, status domain.SaveStatus)
}

// StatusFunc adapts a function to StatusReporter.
type StatusFunc func(domain.Partition, domain.SaveStatus)

// Report implements StatusReporter.
func (f StatusFunc) Report(p domain.Partition, s domain.SaveStatus) { f(p, s) }

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
