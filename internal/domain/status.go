package domain

// SaveStatus is the user-visible state of the most recent save attempt.
type SaveStatus string

const (
	StatusSaving  SaveStatus = "saving"
	StatusSaved   SaveStatus = "saved"
	StatusError   SaveStatus = "error"
	StatusOffline SaveStatus = "offline"
)

// Label returns the text shown next to the indicator.
func (s SaveStatus) Label() string {
	switch s {
	case StatusSaving:
		return "Opslaan…"
	case StatusSaved:
		return "Opgeslagen"
	case StatusError:
		return "Fout bij opslaan"
	case StatusOffline:
		return "Offline opgeslagen"
	}
	return string(s)
}

// ReconcileResult reports how a full reconciliation ended.
type ReconcileResult int

const (
	// ReconcileOK means upsert and cleanup both succeeded and the dirty flag was cleared.
	ReconcileOK ReconcileResult = iota
	// ReconcileSkipped means another reconciliation held the lock.
	ReconcileSkipped
	// ReconcileOffline means no remote call was attempted.
	ReconcileOffline
	// ReconcileFailed means a remote step failed; the partition stays dirty.
	ReconcileFailed
)

func (r ReconcileResult) String() string {
	switch r {
	case ReconcileOK:
		return "ok"
	case ReconcileSkipped:
		return "skipped"
	case ReconcileOffline:
		return "offline"
	case ReconcileFailed:
		return "failed"
	}
	return "unknown"
}

// LoadResult describes what startup reconciliation managed to do.
type LoadResult struct {
	FromCache  bool
	FromRemote bool
	WasDirty   bool
	Reconcile  *ReconcileResult
	RemoteErr  error
}
