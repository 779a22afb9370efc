package workout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Drainer reconciles every dirty partition found in the local cache. A
// long-running process uses it to push offline edits once the remote store
// is reachable again, without an open session for each partition.
type Drainer struct {
	Remote       ports.RemoteStore
	Local        *LocalCache
	Connectivity ports.Connectivity
	Status       ports.StatusReporter
	Logger       ports.Logger
	EditDelay    time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

// Drain reconciles each dirty partition from its cached snapshot. A dirty
// partition without a snapshot is simply cleared. Concurrent calls are
// dropped and return nil.
func (d *Drainer) Drain(ctx context.Context) map[domain.Partition]domain.ReconcileResult {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}
	defer d.running.Store(false)

	results := make(map[domain.Partition]domain.ReconcileResult)
	for _, p := range d.Local.DirtyPartitions() {
		if ctx.Err() != nil {
			break
		}
		s := NewSession(ctx, Options{
			Partition:    p,
			Remote:       d.Remote,
			Local:        d.Local,
			Connectivity: d.Connectivity,
			Status:       d.Status,
			Logger:       d.Logger,
			EditDelay:    d.EditDelay,
		})
		if !s.Restore() {
			d.Local.SetDirty(p, false)
			s.Close()
			continue
		}
		results[p] = s.Reconcile(ctx)
		s.Close()
	}
	if len(results) > 0 {
		fields := map[string]interface{}{}
		for p, r := range results {
			fields[string(p)] = r.String()
		}
		d.Logger.Info("drained dirty partitions", fields)
	}
	return results
}

// Watch drains on every offline to online transition until the returned
// function is called.
func (d *Drainer) Watch(ctx context.Context) (stop func()) {
	unsubscribe := d.Connectivity.Subscribe(func(online bool) {
		if !online {
			return
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.Drain(ctx)
		}()
	})
	return func() {
		unsubscribe()
		d.wg.Wait()
	}
}
