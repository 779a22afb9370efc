package helpers

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// ResolveDay turns a --day flag into a partition. Unlike domain.ParsePartition
// it rejects unknown names instead of falling back to Monday.
func ResolveDay(slug string, now time.Time) (domain.Partition, error) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(slug), "/"))
	if s == "" || s == domain.TodaySlug {
		return domain.PartitionForWeekday(now.Weekday()), nil
	}
	p := domain.ParsePartition(s, now)
	if p.Slug() != s {
		return "", fmt.Errorf("unknown day %q", slug)
	}
	return p, nil
}

// ParsePosition parses a 1-based exercise position argument.
func ParsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q: must be a number >= 1", arg)
	}
	return n, nil
}

// ParseFieldArg resolves a field name or alias.
func ParseFieldArg(arg string) (domain.Field, error) {
	field, ok := domain.ParseField(arg)
	if !ok {
		names := make([]string, 0, len(domain.Fields()))
		for _, f := range domain.Fields() {
			names = append(names, string(f))
		}
		return "", fmt.Errorf("unknown field %q (want one of %s)", arg, strings.Join(names, ", "))
	}
	return field, nil
}

// RenderRecords prints the exercises of one day, one per line.
func RenderRecords(out io.Writer, partition domain.Partition, records []domain.Record) {
	fmt.Fprintf(out, "%s\n", partition)
	if len(records) == 0 {
		fmt.Fprintln(out, "  (no exercises)")
		return
	}
	for _, rec := range records {
		line := fmt.Sprintf("  %2d. %-24s %s x %s", rec.Position,
			orDash(rec.Value(domain.FieldName)),
			orDash(rec.Value(domain.FieldSets)),
			orDash(rec.Value(domain.FieldReps)))
		if w := rec.Value(domain.FieldWeight); w != "" {
			line += " @ " + w + " kg"
		}
		if note := rec.Value(domain.FieldNote); note != "" {
			line += "  (" + note + ")"
		}
		fmt.Fprintln(out, line)
	}
}

// RenderLoad summarizes where the records shown came from.
func RenderLoad(out io.Writer, result domain.LoadResult) {
	switch {
	case result.FromRemote:
		fmt.Fprintln(out, "source: remote")
	case result.FromCache:
		fmt.Fprintln(out, "source: local cache")
	default:
		fmt.Fprintln(out, "source: empty")
	}
	if result.Reconcile != nil {
		fmt.Fprintf(out, "pending edits: %s\n", *result.Reconcile)
	}
	if result.RemoteErr != nil {
		fmt.Fprintf(out, "remote unavailable: %v\n", result.RemoteErr)
	}
}

// StatusPrinter renders save status changes on w. Consecutive duplicates
// are collapsed.
func StatusPrinter(w io.Writer) ports.StatusReporter {
	var (
		mu   sync.Mutex
		last domain.SaveStatus
	)
	return ports.StatusFunc(func(p domain.Partition, s domain.SaveStatus) {
		mu.Lock()
		defer mu.Unlock()
		if s == last {
			return
		}
		last = s
		fmt.Fprintf(w, "[%s] %s\n", p.Slug(), s.Label())
	})
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
