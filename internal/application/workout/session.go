// Package workout keeps one partition of workout records in sync with the
// remote store while tolerating offline periods.
//
// Every edit lands in memory and in the local data cache first. Single-field
// edits are coalesced per record and upserted on their own; structural
// changes (add, delete, reorder) renumber the partition and trigger a full
// reconciliation that upserts the whole snapshot and deletes remote rows
// beyond it. The partition's dirty flag stays set until one full
// reconciliation has succeeded.
package workout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/liftlog/internal/application/coalesce"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// ErrUnknownRecord is returned when an operation names a record the session does not hold.
var ErrUnknownRecord = errors.New("unknown record")

// Options wires a Session.
type Options struct {
	Partition    domain.Partition
	Remote       ports.RemoteStore
	Local        *LocalCache
	Connectivity ports.Connectivity
	// Status may be nil.
	Status    ports.StatusReporter
	Logger    ports.Logger
	EditDelay time.Duration
}

// Session owns the in-memory record list of one partition.
type Session struct {
	partition domain.Partition
	remote    ports.RemoteStore
	local     *LocalCache
	conn      ports.Connectivity
	status    ports.StatusReporter
	log       ports.Logger
	editDelay time.Duration
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	records []domain.Record
	rev     uint64
	loaded  bool

	reconciling atomic.Bool
	wasOnline   atomic.Bool
	saves       *coalesce.Coalescer[string]

	watchMu     sync.Mutex
	unsubscribe func()
	watchers    sync.WaitGroup
}

// NewSession returns an empty session for opts.Partition. Background saves
// run under ctx until Close.
func NewSession(ctx context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	delay := opts.EditDelay
	if delay <= 0 {
		delay = domain.DefaultEditDelay
	}
	s := &Session{
		partition: opts.Partition,
		remote:    opts.Remote,
		local:     opts.Local,
		conn:      opts.Connectivity,
		status:    opts.Status,
		log:       opts.Logger,
		editDelay: delay,
		tracer:    otel.Tracer("github.com/doeshing/liftlog/internal/application/workout"),
		ctx:       ctx,
		cancel:    cancel,
		saves:     coalesce.New[string](),
	}
	s.wasOnline.Store(opts.Connectivity.Online())
	return s
}

// Partition returns the partition this session edits.
func (s *Session) Partition() domain.Partition { return s.partition }

// Records returns a renumbered snapshot of the current records.
func (s *Session) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshot() ([]domain.Record, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.rev
}

func (s *Session) changedSince(rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev != rev
}

// IDAt returns the identity of the record at the 1-based position.
func (s *Session) IDAt(position int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 1 || position > len(s.records) {
		return "", false
	}
	return s.records[position-1].ID, true
}

// Restore replaces the in-memory records with the local cache snapshot
// without touching the remote store. It reports whether a snapshot existed.
func (s *Session) Restore() bool {
	cached, ok := s.local.Read(s.partition)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if !ok {
		return false
	}
	s.applyLocked(cached)
	return true
}

// Set applies raw input to one field of a record and schedules a save. An
// input that clears the field saves immediately; anything else waits for the
// edit delay, restarting it on every further edit to the same record.
func (s *Session) Set(id string, field domain.Field, raw string) error {
	cleared, ok := s.setField(id, field, raw)
	if !ok {
		return ErrUnknownRecord
	}
	s.persistLocal()
	delay := s.editDelay
	if cleared {
		delay = 0
	}
	s.saves.Schedule(id, delay, func() { s.saveRecord(id) })
	return nil
}

// Blur saves the record now, superseding any pending delayed save.
func (s *Session) Blur(id string) error {
	if _, ok := s.position(id); !ok {
		return ErrUnknownRecord
	}
	s.saves.Schedule(id, 0, func() { s.saveRecord(id) })
	return nil
}

// Clear nulls one field of a record. Online, the column is nulled remotely
// with a targeted update before the record is saved again.
func (s *Session) Clear(ctx context.Context, id string, field domain.Field) error {
	if _, ok := s.setField(id, field, ""); !ok {
		return ErrUnknownRecord
	}
	pos, _ := s.position(id)

	if !s.conn.Online() {
		s.markOffline()
	} else if err := s.remote.Update(ctx, s.partition, pos, map[domain.Field]any{field: nil}); err != nil && !domain.IsNoRows(err) {
		s.log.Error("field clear failed", err, map[string]interface{}{
			"partition": s.partition,
			"position":  pos,
			"field":     field,
		})
		s.local.SetDirty(s.partition, true)
		s.report(domain.StatusError)
	}
	s.persistLocal()
	s.saves.Schedule(id, 0, func() { s.saveRecord(id) })
	return nil
}

// Add appends an empty record and reconciles the partition.
func (s *Session) Add(ctx context.Context) (string, domain.ReconcileResult) {
	id := uuid.NewString()
	s.mu.Lock()
	s.records = append(s.records, domain.Record{
		ID:        id,
		Partition: s.partition,
		Sets:      domain.IntPtr(domain.DefaultSets),
	})
	s.rev++
	s.renumberLocked()
	s.mu.Unlock()
	return id, s.Reconcile(ctx)
}

// Delete removes a record and reconciles the partition.
func (s *Session) Delete(ctx context.Context, id string) (domain.ReconcileResult, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.ReconcileSkipped, ErrUnknownRecord
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	s.rev++
	s.renumberLocked()
	s.mu.Unlock()

	s.saves.Cancel(id)
	return s.Reconcile(ctx), nil
}

// Move places a record at the 1-based position to, clamped to the list
// bounds, and reconciles the partition.
func (s *Session) Move(ctx context.Context, id string, to int) (domain.ReconcileResult, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.ReconcileSkipped, ErrUnknownRecord
	}
	target := to - 1
	if target < 0 {
		target = 0
	}
	if target > len(s.records)-1 {
		target = len(s.records) - 1
	}
	rec := s.records[idx]
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	s.records = append(s.records[:target], append([]domain.Record{rec}, s.records[target:]...)...)
	s.rev++
	s.renumberLocked()
	s.mu.Unlock()
	return s.Reconcile(ctx), nil
}

// Flush runs every pending save now and waits for it.
func (s *Session) Flush() {
	s.saves.Flush()
}

// Close flushes pending saves, stops watching connectivity and cancels
// background work.
func (s *Session) Close() {
	s.Unwatch()
	s.saves.Flush()
	s.saves.Stop()
	s.watchers.Wait()
	s.cancel()
}

func (s *Session) saveRecord(id string) {
	rec, ok := s.record(id)
	if !ok {
		return
	}
	if !s.conn.Online() {
		s.persistLocal()
		s.markOffline()
		return
	}

	s.report(domain.StatusSaving)
	if err := s.remote.Upsert(s.ctx, rec); err != nil {
		s.log.Error("record save failed", err, map[string]interface{}{
			"partition": s.partition,
			"position":  rec.Position,
		})
		s.local.SetDirty(s.partition, true)
		s.report(domain.StatusError)
	} else {
		s.report(domain.StatusSaved)
	}
	s.persistLocal()
}

func (s *Session) markOffline() {
	s.local.SetDirty(s.partition, true)
	s.report(domain.StatusOffline)
}

func (s *Session) report(status domain.SaveStatus) {
	if s.status != nil {
		s.status.Report(s.partition, status)
	}
}

func (s *Session) persistLocal() {
	s.local.Write(s.partition, s.Records())
}

func (s *Session) setField(id string, field domain.Field, raw string) (cleared, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false, false
	}
	s.rev++
	return s.records[idx].Set(field, raw), true
}

func (s *Session) record(id string) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Record{}, false
	}
	rec := s.records[idx].Clone()
	rec.Partition = s.partition
	rec.Position = idx + 1
	return rec, true
}

func (s *Session) position(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	return idx + 1, idx >= 0
}

func (s *Session) indexLocked(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) renumberLocked() {
	for i := range s.records {
		s.records[i].Partition = s.partition
		s.records[i].Position = i + 1
	}
}

func (s *Session) snapshotLocked() []domain.Record {
	return domain.Renumber(s.partition, s.records)
}

// applyLocked replaces the record list with data laid out by position.
// Identities are reused by slot; gaps become empty records.
func (s *Session) applyLocked(data []domain.Record) {
	byPos := make(map[int]domain.Record, len(data))
	size := 0
	for _, rec := range data {
		if rec.Position < 1 {
			continue
		}
		byPos[rec.Position] = rec
		if rec.Position > size {
			size = rec.Position
		}
	}
	next := make([]domain.Record, size)
	for i := range next {
		var id string
		if i < len(s.records) {
			id = s.records[i].ID
		} else {
			id = uuid.NewString()
		}
		rec, ok := byPos[i+1]
		if !ok {
			rec = domain.Record{}
		}
		rec = rec.Clone()
		rec.ID = id
		next[i] = rec
	}
	s.records = next
	s.rev++
	s.renumberLocked()
}
