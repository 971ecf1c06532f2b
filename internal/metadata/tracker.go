// Package metadata tracks the content-database summary returned alongside
// assistant replies.
package metadata

import (
	"sync"
	"time"
)

// DbStats summarizes the content database behind the assistant.
type DbStats struct {
	TotalRecords   int
	Types          []string
	RelatedRecords *int
	LatestUpdate   *time.Time
}

// Clone returns a deep copy.
func (s DbStats) Clone() DbStats {
	out := DbStats{TotalRecords: s.TotalRecords}
	if s.Types != nil {
		out.Types = make([]string, len(s.Types))
		copy(out.Types, s.Types)
	}
	if s.RelatedRecords != nil {
		v := *s.RelatedRecords
		out.RelatedRecords = &v
	}
	if s.LatestUpdate != nil {
		v := *s.LatestUpdate
		out.LatestUpdate = &v
	}
	return out
}

// NormalizeTypes drops empty and repeated entries, keeping first-seen order.
func NormalizeTypes(types []string) []string {
	if types == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Tracker holds the most recent DbStats. Each update fully supersedes the last.
type Tracker struct {
	mu    sync.RWMutex
	stats *DbStats
}

// NewTracker returns a tracker with no stats.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update replaces the held stats wholesale.
func (t *Tracker) Update(stats DbStats) {
	c := stats.Clone()
	t.mu.Lock()
	t.stats = &c
	t.mu.Unlock()
}

// Clear resets the tracker to absent.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.stats = nil
	t.mu.Unlock()
}

// Current returns a copy of the held stats and whether any are present.
func (t *Tracker) Current() (DbStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stats == nil {
		return DbStats{}, false
	}
	return t.stats.Clone(), true
}
