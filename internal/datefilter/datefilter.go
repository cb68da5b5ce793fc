package datefilter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/dateutil"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/storage"
)

// Package datefilter maintains the persisted set of excluded civil dates
// and applies it as a read-time predicate over article publication
// instants. Exclusion never mutates the article corpus.

const excludedDatesKey = "excluded_dates"

// ErrInvalidDate signals a date string that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("date must be formatted YYYY-MM-DD")

// Filter owns the excluded-date set.
type Filter struct {
	mu    sync.Mutex
	store storage.Store
	zone  *time.Location
}

// New builds a Filter using the given reference timezone offset.
func New(store storage.Store, offsetHours int) *Filter {
	return &Filter{store: store, zone: dateutil.ReferenceZone(offsetHours)}
}

// ExcludedDates returns the persisted excluded dates in ascending order.
func (f *Filter) ExcludedDates() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

// Add inserts a date into the excluded set. Adding a date that is
// already present is a no-op.
func (f *Filter) Add(date string) error {
	if !dateutil.ValidCivilDate(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dates, err := f.loadLocked()
	if err != nil {
		return err
	}
	for _, d := range dates {
		if d == date {
			return nil
		}
	}
	dates = append(dates, date)
	sort.Strings(dates)
	return f.saveLocked(dates)
}

// Remove deletes a date from the excluded set. Removing an absent date
// is a no-op.
func (f *Filter) Remove(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dates, err := f.loadLocked()
	if err != nil {
		return err
	}
	kept := dates[:0]
	for _, d := range dates {
		if d != date {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(dates) {
		return nil
	}
	return f.saveLocked(kept)
}

// Apply returns the articles whose civil date in the reference timezone
// is not excluded, preserving input order. Pure view; the input slice is
// not modified.
func (f *Filter) Apply(articles []domain.Article, excluded []string) []domain.Article {
	if len(excluded) == 0 {
		return articles
	}

	excludedSet := make(map[string]struct{}, len(excluded))
	for _, d := range excluded {
		excludedSet[d] = struct{}{}
	}

	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := excludedSet[dateutil.CivilDate(a.PublishedAt, f.zone)]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (f *Filter) loadLocked() ([]string, error) {
	data, err := f.store.Get(excludedDatesKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load excluded dates: %w", err)
	}
	var dates []string
	if err := json.Unmarshal(data, &dates); err != nil {
		return nil, fmt.Errorf("decode excluded dates: %w", err)
	}
	sort.Strings(dates)
	return dates, nil
}

func (f *Filter) saveLocked(dates []string) error {
	data, err := json.Marshal(dates)
	if err != nil {
		return fmt.Errorf("encode excluded dates: %w", err)
	}
	if err := f.store.Put(excludedDatesKey, data); err != nil {
		return fmt.Errorf("save excluded dates: %w", err)
	}
	return nil
}
