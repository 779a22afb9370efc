package workout

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/pkg/logger"
)

// memKV is an in-memory KeyValueStore.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type remoteCall struct {
	op        domain.RemoteOp
	positions []int
	threshold int
	fields    map[domain.Field]any
}

// fakeRemote keeps rows keyed by (partition, position) and records every call.
type fakeRemote struct {
	mu         sync.Mutex
	rows       map[domain.Partition]map[int]domain.Record
	calls      []remoteCall
	failUpsert error
	failDelete error
	failSelect error
	failUpdate error
	upsertGate chan struct{}
	entered    chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: map[domain.Partition]map[int]domain.Record{}}
}

func (f *fakeRemote) seed(records ...domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		if f.rows[rec.Partition] == nil {
			f.rows[rec.Partition] = map[int]domain.Record{}
		}
		f.rows[rec.Partition][rec.Position] = rec.Clone()
	}
}

func (f *fakeRemote) Select(_ context.Context, p domain.Partition) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{op: domain.RemoteSelect})
	if f.failSelect != nil {
		return nil, f.failSelect
	}
	var out []domain.Record
	for _, rec := range f.rows[p] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, records ...domain.Record) error {
	f.mu.Lock()
	gate, entered := f.upsertGate, f.entered
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	call := remoteCall{op: domain.RemoteUpsert}
	for _, rec := range records {
		call.positions = append(call.positions, rec.Position)
	}
	f.calls = append(f.calls, call)
	if f.failUpsert != nil {
		return f.failUpsert
	}
	for _, rec := range records {
		if f.rows[rec.Partition] == nil {
			f.rows[rec.Partition] = map[int]domain.Record{}
		}
		c := rec.Clone()
		c.ID = ""
		f.rows[rec.Partition][rec.Position] = c
	}
	return nil
}

func (f *fakeRemote) Update(_ context.Context, p domain.Partition, position int, fields map[domain.Field]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{op: domain.RemoteUpdate, positions: []int{position}, fields: fields})
	if f.failUpdate != nil {
		return f.failUpdate
	}
	rec, ok := f.rows[p][position]
	if !ok {
		return nil
	}
	for field := range fields {
		rec.Set(field, "")
	}
	f.rows[p][position] = rec
	return nil
}

func (f *fakeRemote) DeleteAbove(_ context.Context, p domain.Partition, threshold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{op: domain.RemoteDelete, threshold: threshold})
	if f.failDelete != nil {
		return f.failDelete
	}
	for pos := range f.rows[p] {
		if pos > threshold {
			delete(f.rows[p], pos)
		}
	}
	return nil
}

func (f *fakeRemote) callLog() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func (f *fakeRemote) ops() []domain.RemoteOp {
	var ops []domain.RemoteOp
	for _, c := range f.callLog() {
		ops = append(ops, c.op)
	}
	return ops
}

func (f *fakeRemote) row(p domain.Partition, position int) (domain.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[p][position]
	return rec, ok
}

func (f *fakeRemote) size(p domain.Partition) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[p])
}

// switchConn is a manually flipped connectivity signal.
type switchConn struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	next   int
}

func newSwitchConn(online bool) *switchConn {
	return &switchConn{online: online, subs: map[int]func(bool){}}
}

func (c *switchConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *switchConn) Subscribe(fn func(bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *switchConn) set(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	var subs []func(bool)
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range subs {
		fn(online)
	}
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []domain.SaveStatus
}

func (r *statusRecorder) Report(_ domain.Partition, s domain.SaveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) last() domain.SaveStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *statusRecorder) saw(status domain.SaveStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fixture struct {
	kv      *memKV
	local   *LocalCache
	remote  *fakeRemote
	conn    *switchConn
	status  *statusRecorder
	session *Session
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	f := &fixture{
		kv:     newMemKV(),
		remote: newFakeRemote(),
		conn:   newSwitchConn(online),
		status: &statusRecorder{},
	}
	f.local = NewLocalCache(f.kv, logger.Discard())
	f.session = NewSession(context.Background(), Options{
		Partition:    domain.Monday,
		Remote:       f.remote,
		Local:        f.local,
		Connectivity: f.conn,
		Status:       f.status,
		Logger:       logger.Discard(),
		EditDelay:    30 * time.Millisecond,
	})
	t.Cleanup(f.session.Close)
	return f
}

// seedSession puts named records into the session without remote traffic.
func (f *fixture) seedSession(t *testing.T, names ...string) []string {
	t.Helper()
	var records []domain.Record
	for i, name := range names {
		records = append(records, domain.Record{
			Partition: domain.Monday,
			Position:  i + 1,
			Name:      domain.StringPtr(name),
			Sets:      domain.IntPtr(3),
		})
	}
	f.local.Write(domain.Monday, records)
	if !f.session.Restore() {
		t.Fatal("Restore found no snapshot")
	}
	ids := make([]string, len(names))
	for i := range names {
		ids[i], _ = f.session.IDAt(i + 1)
	}
	return ids
}

func names(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Value(domain.FieldName)
	}
	return out
}

var errRemoteDown = &domain.RemoteError{Op: domain.RemoteUpsert, Status: 503, Message: "unavailable", Err: errors.New("503")}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
