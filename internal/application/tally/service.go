// Package tally keeps the yearly count of completed training sessions.
//
// Counts live in the remote store, one row per year. A year without a row
// starts from its configured baseline, and a configured floor is enforced
// upwards. Completing today's session is recorded as a local per-date flag so
// that toggling it twice in one day does not count twice.
package tally

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// Service reads and adjusts session counts.
type Service struct {
	store    ports.CounterStore
	kv       ports.KeyValueStore
	settings domain.TallySettings
	log      ports.Logger
	now      func() time.Time
}

// NewService wires a tally service.
func NewService(store ports.CounterStore, kv ports.KeyValueStore, settings domain.TallySettings, log ports.Logger) *Service {
	return &Service{store: store, kv: kv, settings: settings, log: log, now: time.Now}
}

// Year returns the current calendar year.
func (s *Service) Year() int {
	return s.now().Year()
}

// Baseline returns the starting count for year.
func (s *Service) Baseline(year int) int {
	return s.settings.Baselines[year]
}

// Initialize creates rows for every configured baseline year that has none.
func (s *Service) Initialize(ctx context.Context) error {
	years := make([]int, 0, len(s.settings.Baselines))
	for year := range s.settings.Baselines {
		years = append(years, year)
	}
	sort.Ints(years)

	var errs error
	for _, year := range years {
		if _, err := s.Count(ctx, year); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Count returns the stored count for year, creating the row from the
// baseline when it does not exist yet.
func (s *Service) Count(ctx context.Context, year int) (int, error) {
	count, err := s.store.Count(ctx, year)
	if err == nil {
		return count, nil
	}
	if !domain.IsNoRows(err) {
		return 0, fmt.Errorf("read session count %d: %w", year, err)
	}
	baseline := s.Baseline(year)
	count, err = s.store.InsertCount(ctx, year, baseline)
	if err != nil {
		return baseline, fmt.Errorf("create session count %d: %w", year, err)
	}
	s.log.Debug("session count created", map[string]interface{}{"year": year, "count": count})
	return count, nil
}

// Current returns this year's count after raising it to the configured floor.
func (s *Service) Current(ctx context.Context) (int, error) {
	year := s.Year()
	count, err := s.Count(ctx, year)
	if err != nil {
		return count, err
	}
	floor, ok := s.settings.Floors[year]
	if !ok || count >= floor {
		return count, nil
	}
	if err := s.store.UpsertCount(ctx, year, floor); err != nil {
		return count, fmt.Errorf("raise session count %d to %d: %w", year, floor, err)
	}
	return floor, nil
}

// Adjust adds delta to this year's count. The result never drops below zero.
func (s *Service) Adjust(ctx context.Context, delta int) (int, error) {
	year := s.Year()
	count, err := s.Count(ctx, year)
	if err != nil {
		return count, err
	}
	next := count + delta
	if next < 0 {
		next = 0
	}
	if err := s.store.UpsertCount(ctx, year, next); err != nil {
		return count, fmt.Errorf("update session count %d: %w", year, err)
	}
	return next, nil
}

// CompleteKey is the local flag key for the session on day.
func CompleteKey(day time.Time) string {
	return domain.SessionCompleteKeyPrefix + day.UTC().Format(domain.DateFormat)
}

// Completed reports whether today's session is marked complete.
func (s *Service) Completed() bool {
	raw, ok, err := s.kv.Get(CompleteKey(s.now()))
	return err == nil && ok && string(raw) == "1"
}

// Toggle flips today's completion flag and adjusts the count by one in the
// matching direction. It returns the new flag state and count.
func (s *Service) Toggle(ctx context.Context) (bool, int, error) {
	key := CompleteKey(s.now())
	if s.Completed() {
		if err := s.kv.Remove(key); err != nil {
			return true, 0, err
		}
		count, err := s.Adjust(ctx, -1)
		return false, count, err
	}
	if err := s.kv.Set(key, []byte("1")); err != nil {
		return false, 0, err
	}
	count, err := s.Adjust(ctx, 1)
	return true, count, err
}
