package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
)

// fakePostgREST serves the two tables the remote client talks to.
type fakePostgREST struct {
	mu      sync.Mutex
	down    bool
	entries map[string]map[int]map[string]any
	counts  map[int]int
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{entries: map[string]map[int]map[string]any{}, counts: map[int]int{}}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"unavailable"}`)
		return
	}
	q := r.URL.Query()
	switch {
	case strings.HasSuffix(r.URL.Path, "/workout_entries"):
		f.serveEntries(w, r, q.Get("day"), q.Get("exercise_index"))
	case strings.HasSuffix(r.URL.Path, "/session_counts"):
		f.serveCounts(w, r, q.Get("year"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePostgREST) serveEntries(w http.ResponseWriter, r *http.Request, dayFilter, indexFilter string) {
	day := strings.TrimPrefix(dayFilter, "eq.")
	switch r.Method {
	case http.MethodGet:
		rows := []map[string]any{}
		for _, idx := range f.positions(day) {
			rows = append(rows, f.entries[day][idx])
		}
		_ = json.NewEncoder(w).Encode(rows)
	case http.MethodPost:
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range rows {
			f.put(row["day"].(string), toInt(row["exercise_index"]), row)
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodPatch:
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		idx, _ := strconv.Atoi(strings.TrimPrefix(indexFilter, "eq."))
		for k, v := range fields {
			if row, ok := f.entries[day][idx]; ok {
				row[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		threshold, _ := strconv.Atoi(strings.TrimPrefix(indexFilter, "gt."))
		for idx := range f.entries[day] {
			if idx > threshold {
				delete(f.entries[day], idx)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakePostgREST) serveCounts(w http.ResponseWriter, r *http.Request, yearFilter string) {
	switch r.Method {
	case http.MethodGet:
		year, _ := strconv.Atoi(strings.TrimPrefix(yearFilter, "eq."))
		count, ok := f.counts[year]
		if !ok {
			w.WriteHeader(http.StatusNotAcceptable)
			fmt.Fprint(w, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": count})
	case http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		year, count := toInt(row["year"]), toInt(row["count"])
		f.counts[year] = count
		w.WriteHeader(http.StatusCreated)
		if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
			_ = json.NewEncoder(w).Encode(map[string]int{"year": year, "count": count})
		}
	}
}

func (f *fakePostgREST) put(day string, idx int, row map[string]any) {
	if f.entries[day] == nil {
		f.entries[day] = map[int]map[string]any{}
	}
	f.entries[day][idx] = row
}

func (f *fakePostgREST) positions(day string) []int {
	var out []int
	for idx := range f.entries[day] {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (f *fakePostgREST) seed(day string, idx int, name string, sets, reps, weight int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(day, idx, map[string]any{
		"day": day, "exercise_index": idx, "exercise_name": name,
		"sets": sets, "reps": reps, "weight": weight, "note": nil,
	})
}

func (f *fakePostgREST) names(day string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, idx := range f.positions(day) {
		name, _ := f.entries[day][idx]["exercise_name"].(string)
		out = append(out, name)
	}
	return out
}

func (f *fakePostgREST) field(day string, idx int, key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[day][idx][key]
}

func (f *fakePostgREST) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return -1
}

func newTestContainer(t *testing.T, remote *fakePostgREST) *app.Container {
	t.Helper()
	for _, key := range []string{"LIFTLOG_CONFIG", "LIFTLOG_REMOTE_URL", "LIFTLOG_REMOTE_KEY", "LIFTLOG_DATA_DIR", "LIFTLOG_LISTEN", "LIFTLOG_APP_VERSION"} {
		t.Setenv(key, "")
	}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`app:
  origin: http://app.invalid/
  version: v1
remote:
  url: %s
  api_key: test-key
sync:
  edit_delay: 20ms
storage:
  data_dir: %s
tally:
  baselines:
    %d: 10
`, srv.URL, filepath.Join(dir, "data"), time.Now().Year())
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	container, err := app.BuildContainer(context.Background(), app.Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("BuildContainer error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	return container
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestShowRendersRemoteDay(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Maandag", 1, "Squat", 3, 5, 100)
	remote.seed("Maandag", 2, "Bench", 4, 8, 60)
	container := newTestContainer(t, remote)

	out, errOut, err := execute(t, NewShowCommand(container), "--day", "maandag")
	if err != nil {
		t.Fatalf("show error: %v", err)
	}
	if !strings.Contains(out, "Squat") || !strings.Contains(out, "3 x 5 @ 100 kg") || !strings.Contains(out, "2. Bench") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(errOut, "source: remote") {
		t.Fatalf("expected remote source, got:\n%s", errOut)
	}
}

func TestShowRejectsUnknownDay(t *testing.T) {
	container := newTestContainer(t, newFakePostgREST())
	if _, _, err := execute(t, NewShowCommand(container), "--day", "someday"); err == nil {
		t.Fatal("expected unknown day error")
	}
}

func TestSetPushesFieldToRemote(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Dinsdag", 1, "Row", 3, 10, 40)
	container := newTestContainer(t, remote)

	if _, _, err := execute(t, NewSetCommand(container), "--day", "dinsdag", "1", "weight", "45"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if got := toInt(remote.field("Dinsdag", 1, "weight")); got != 45 {
		t.Fatalf("remote weight = %d, want 45", got)
	}
	if container.Local.IsDirty("Dinsdag") {
		t.Fatal("successful save must not leave the day dirty")
	}
}

func TestSetUnknownPosition(t *testing.T) {
	container := newTestContainer(t, newFakePostgREST())
	_, _, err := execute(t, NewSetCommand(container), "--day", "maandag", "3", "name", "Squat")
	if err == nil || !strings.Contains(err.Error(), "no exercise at position 3") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAddThenRemoveRenumbersRemote(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Woensdag", 1, "Squat", 3, 5, 100)
	container := newTestContainer(t, remote)

	if _, _, err := execute(t, NewAddCommand(container), "--day", "woensdag", "--name", "Deadlift"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if got := remote.names("Woensdag"); len(got) != 2 || got[1] != "Deadlift" {
		t.Fatalf("remote after add = %v", got)
	}
	if got := toInt(remote.field("Woensdag", 2, "sets")); got != 3 {
		t.Fatalf("new exercise sets = %d, want default 3", got)
	}

	out, _, err := execute(t, NewRemoveCommand(container), "--day", "woensdag", "1")
	if err != nil {
		t.Fatalf("rm error: %v", err)
	}
	if got := remote.names("Woensdag"); len(got) != 1 || got[0] != "Deadlift" {
		t.Fatalf("remote after rm = %v", got)
	}
	if !strings.Contains(out, "1. Deadlift") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestMoveReordersRemote(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Vrijdag", 1, "A", 3, 5, 10)
	remote.seed("Vrijdag", 2, "B", 3, 5, 10)
	remote.seed("Vrijdag", 3, "C", 3, 5, 10)
	container := newTestContainer(t, remote)

	if _, _, err := execute(t, NewMoveCommand(container), "--day", "vrijdag", "3", "1"); err != nil {
		t.Fatalf("mv error: %v", err)
	}
	if got := strings.Join(remote.names("Vrijdag"), ""); got != "CAB" {
		t.Fatalf("remote order = %s, want CAB", got)
	}
}

func TestOfflineEditIsQueuedAndSynced(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Zaterdag", 1, "Squat", 3, 5, 100)
	container := newTestContainer(t, remote)

	if _, _, err := execute(t, NewShowCommand(container), "--day", "zaterdag"); err != nil {
		t.Fatalf("show error: %v", err)
	}

	remote.setDown(true)
	_, errOut, err := execute(t, NewSetCommand(container), "--day", "zaterdag", "1", "reps", "6")
	if err != nil {
		t.Fatalf("offline set error: %v", err)
	}
	if !container.Local.IsDirty("Zaterdag") {
		t.Fatal("offline edit must mark the day dirty")
	}
	if !strings.Contains(errOut, "Offline opgeslagen") {
		t.Fatalf("expected offline status, got:\n%s", errOut)
	}

	out, _, err := execute(t, NewSyncCommand(container))
	if err != nil || !strings.Contains(out, MsgOfflineSkipped) {
		t.Fatalf("sync while down = %q, %v", out, err)
	}

	remote.setDown(false)
	out, _, err = execute(t, NewSyncCommand(container))
	if err != nil {
		t.Fatalf("sync error: %v", err)
	}
	if !strings.Contains(out, "Zaterdag: ok") {
		t.Fatalf("unexpected sync output:\n%s", out)
	}
	if got := toInt(remote.field("Zaterdag", 1, "reps")); got != 6 {
		t.Fatalf("remote reps = %d, want 6", got)
	}
	if container.Local.IsDirty("Zaterdag") {
		t.Fatal("dirty flag must clear after sync")
	}

	out, _, _ = execute(t, NewSyncCommand(container))
	if !strings.Contains(out, MsgNothingToSync) {
		t.Fatalf("second sync = %q", out)
	}
}

func TestStatusListsEveryDay(t *testing.T) {
	remote := newFakePostgREST()
	remote.seed("Maandag", 1, "Squat", 3, 5, 100)
	container := newTestContainer(t, remote)
	if _, _, err := execute(t, NewShowCommand(container), "--day", "maandag"); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, NewStatusCommand(container))
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(out, "(online)") || !strings.Contains(out, "1 exercise(s)") || !strings.Contains(out, "Zondag") {
		t.Fatalf("unexpected status:\n%s", out)
	}
}

func TestDoneTogglesYearlyCount(t *testing.T) {
	remote := newFakePostgREST()
	container := newTestContainer(t, remote)
	year := time.Now().Year()

	out, _, err := execute(t, NewDoneCommand(container))
	if err != nil {
		t.Fatalf("done error: %v", err)
	}
	if want := fmt.Sprintf("Session marked done. 11 sessions in %d.", year); !strings.Contains(out, want) {
		t.Fatalf("got %q, want %q", out, want)
	}

	out, _, err = execute(t, NewDoneCommand(container))
	if err != nil {
		t.Fatalf("undo error: %v", err)
	}
	if !strings.Contains(out, "Session unmarked. 10 sessions") {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, _ = execute(t, NewDoneCommand(container), "--show")
	if want := fmt.Sprintf("10 sessions in %d (today: open)", year); !strings.Contains(out, want) {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestDoctorPrintsChecks(t *testing.T) {
	container := newTestContainer(t, newFakePostgREST())

	out, _, err := execute(t, NewDoctorCommand(container))
	if err != nil {
		t.Fatalf("doctor error: %v", err)
	}
	for _, want := range []string{"[OK] Config file", "[WARN] Resource cache", "[OK] Remote store - reachable", "3 ok, 1 warning(s), 0 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	container := newTestContainer(t, newFakePostgREST())

	out, _, err := execute(t, NewConfigCommand(container), "path")
	if err != nil || strings.TrimSpace(out) != container.ConfigLoader.Path() {
		t.Fatalf("config path = %q, %v", out, err)
	}

	out, _, err = execute(t, NewConfigCommand(container), "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if strings.Contains(out, "test-key") || !strings.Contains(out, redactedSecret) {
		t.Fatalf("api key not redacted:\n%s", out)
	}

	out, _, err = execute(t, NewConfigCommand(container), "diff")
	if err != nil || !strings.Contains(out, "(-default +current)") {
		t.Fatalf("config diff = %q, %v", out, err)
	}
}

func TestCacheListWithoutGenerations(t *testing.T) {
	container := newTestContainer(t, newFakePostgREST())

	out, _, err := execute(t, NewCacheCommand(container), "list")
	if err != nil || !strings.Contains(out, MsgNoCaches) {
		t.Fatalf("cache list = %q, %v", out, err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, NewVersionCommand(nil))
	if err != nil || !strings.HasPrefix(out, "liftlog dev (go") || strings.Contains(out, "App shell") {
		t.Fatalf("version = %q, %v", out, err)
	}

	container := newTestContainer(t, newFakePostgREST())
	out, _, err = execute(t, NewVersionCommand(container))
	if err != nil || !strings.Contains(out, "App shell: liftlog-v1 (runtime cache liftlog-runtime)") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeRunsUntilCancelled(t *testing.T) {
	remote := newFakePostgREST()
	container := newTestContainer(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out, errOut lockedBuffer
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, &out, &errOut, container, "127.0.0.1:0") }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "Serving http://app.invalid/ on http://127.0.0.1:") {
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready; out=%q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	remote.mu.Lock()
	seeded := remote.counts[time.Now().Year()]
	remote.mu.Unlock()
	if seeded != 10 {
		t.Fatalf("session count not initialized, got %d", seeded)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
