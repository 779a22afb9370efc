package workout

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/doeshing/liftlog/internal/domain"
)

// Reconcile pushes the full snapshot of the partition to the remote store:
// every record is upserted by position, then remote rows beyond the last
// position are deleted. Only one reconciliation runs at a time per session; a
// call made while another is in flight returns ReconcileSkipped.
//
// The dirty flag is cleared only when both remote steps succeed and no edit
// landed while they ran. The local cache is refreshed from the current
// records whatever the outcome.
func (s *Session) Reconcile(ctx context.Context) domain.ReconcileResult {
	if !s.reconciling.CompareAndSwap(false, true) {
		s.log.Debug("reconcile already running", map[string]interface{}{"partition": s.partition})
		return domain.ReconcileSkipped
	}
	defer s.reconciling.Store(false)

	snapshot, rev := s.snapshot()
	ctx, span := s.tracer.Start(ctx, "workout.reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("workout.partition", string(s.partition)),
		attribute.Int("workout.records", len(snapshot)),
	)

	result := s.reconcile(ctx, snapshot, rev)
	span.SetAttributes(attribute.String("workout.result", result.String()))
	if result == domain.ReconcileFailed {
		span.SetStatus(codes.Error, "reconcile failed")
	}
	return result
}

func (s *Session) reconcile(ctx context.Context, snapshot []domain.Record, rev uint64) domain.ReconcileResult {
	defer s.persistLocal()

	if !s.conn.Online() {
		s.markOffline()
		return domain.ReconcileOffline
	}

	s.report(domain.StatusSaving)
	if len(snapshot) > 0 {
		if err := s.remote.Upsert(ctx, snapshot...); err != nil {
			s.reconcileFailed("upsert", err)
			return domain.ReconcileFailed
		}
	}
	if err := s.remote.DeleteAbove(ctx, s.partition, len(snapshot)); err != nil {
		s.reconcileFailed("cleanup", err)
		return domain.ReconcileFailed
	}

	if s.changedSince(rev) {
		// the pushed snapshot is already stale
		s.local.SetDirty(s.partition, true)
		s.log.Debug("records changed during reconcile", map[string]interface{}{"partition": s.partition})
	} else {
		s.local.SetDirty(s.partition, false)
	}
	s.report(domain.StatusSaved)
	s.log.Debug("reconciled", map[string]interface{}{"partition": s.partition, "records": len(snapshot)})
	return domain.ReconcileOK
}

func (s *Session) reconcileFailed(step string, err error) {
	s.log.Error("reconcile failed", err, map[string]interface{}{
		"partition": s.partition,
		"step":      step,
	})
	s.local.SetDirty(s.partition, true)
	s.report(domain.StatusError)
}

// Load brings the session up at startup. The local cache is shown first; a
// dirty partition is reconciled before remote data is trusted, and the remote
// set replaces local state only when nothing unsynced would be lost.
func (s *Session) Load(ctx context.Context) domain.LoadResult {
	cached, hasPayload := s.local.Read(s.partition)
	wasDirty := s.local.IsDirty(s.partition)
	res := domain.LoadResult{WasDirty: wasDirty}

	if wasDirty && !hasPayload {
		// nothing left to push
		s.local.SetDirty(s.partition, false)
	}

	s.mu.Lock()
	s.loaded = true
	if hasPayload && len(cached) > 0 {
		s.applyLocked(cached)
		res.FromCache = true
	}
	s.mu.Unlock()

	synced := true
	if wasDirty && hasPayload {
		r := s.Reconcile(ctx)
		res.Reconcile = &r
		synced = r == domain.ReconcileOK
	}

	if !s.conn.Online() {
		return res
	}

	data, err := s.remote.Select(ctx, s.partition)
	if err != nil && !domain.IsNoRows(err) {
		s.log.Error("remote load failed", err, map[string]interface{}{"partition": s.partition})
		res.RemoteErr = err
		return res
	}

	if synced {
		s.mu.Lock()
		s.applyLocked(data)
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.local.Write(s.partition, snapshot)
		res.FromRemote = true
	}

	if s.local.IsDirty(s.partition) {
		r := s.Reconcile(ctx)
		res.Reconcile = &r
	}
	return res
}

// OnConnectivityChange reacts to the online signal. On a transition from
// offline to online a dirty partition is reconciled.
func (s *Session) OnConnectivityChange(ctx context.Context, online bool) domain.ReconcileResult {
	was := s.wasOnline.Swap(online)
	if !online || was {
		return domain.ReconcileSkipped
	}
	if !s.local.IsDirty(s.partition) {
		return domain.ReconcileSkipped
	}

	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded && !s.Restore() {
		return domain.ReconcileSkipped
	}
	return s.Reconcile(ctx)
}

// Watch subscribes the session to connectivity transitions until Unwatch
// or Close.
func (s *Session) Watch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.conn.Subscribe(func(online bool) {
		s.watchers.Add(1)
		go func() {
			defer s.watchers.Done()
			s.OnConnectivityChange(s.ctx, online)
		}()
	})
}

// Unwatch stops reacting to connectivity transitions.
func (s *Session) Unwatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}
