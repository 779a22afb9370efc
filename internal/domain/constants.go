package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultDocumentTimeout bounds the network-first document fetch
	DefaultDocumentTimeout = 4500 * time.Millisecond
	// DefaultEditDelay is the debounce applied to ordinary field edits
	DefaultEditDelay = 500 * time.Millisecond
	// DefaultProbeInterval is how often connectivity is re-checked
	DefaultProbeInterval = 15 * time.Second
	// DefaultProbeTimeout bounds a single connectivity probe
	DefaultProbeTimeout = 5 * time.Second
	// DefaultRemoteTimeout is the timeout for remote store requests
	DefaultRemoteTimeout = 10 * time.Second
)

// Local cache constants
const (
	// LocalCacheSchemaVersion is stamped on every persisted partition payload
	LocalCacheSchemaVersion = "2026-01-29-3"
	// LocalCacheKeyPrefix namespaces partition payload keys
	LocalCacheKeyPrefix = "workout_cache_"
	// DirtyKeyPrefix namespaces partition dirty flags
	DirtyKeyPrefix = "workout_cache_dirty_"
	// SessionCompleteKeyPrefix namespaces per-date completion flags
	SessionCompleteKeyPrefix = "session_complete_"
)

// Limit constants
const (
	// DefaultSets is the sets value a newly added record starts with
	DefaultSets = 3
	// PrecacheConcurrency bounds parallel fetches during install
	PrecacheConcurrency = 4
)

// Time formats
const (
	// DateFormat keys per-day local flags
	DateFormat = "2006-01-02"
)
