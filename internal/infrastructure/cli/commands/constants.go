package commands

// Flag defaults
const (
	// DefaultDay selects the partition of the current weekday
	DefaultDay = "vandaag"
	// FlagDay is the shared --day flag name
	FlagDay = "day"
)

// Error messages
const (
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrResourceStoreUnavailable = "resource store unavailable"
	ErrTallyUnavailable         = "session tally unavailable"
	ErrConfigLoaderUnavailable  = "config loader unavailable"
)

// Success messages
const (
	MsgNoCaches       = "No caches installed."
	MsgNothingToSync  = "Nothing to sync."
	MsgOfflineSkipped = "Remote store unreachable; edits stay queued locally."
	MsgCachesCleared  = "All caches cleared."
)
