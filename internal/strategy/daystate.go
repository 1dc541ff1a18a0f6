package strategy

import (
	"sort"
	"sync"
)

// dayStore keeps one mutable state record per calendar-day key and
// evicts everything but the newest few days, so long-running processes
// never accumulate unbounded per-day state.
type dayStore[S any] struct {
	mu   sync.Mutex
	days map[string]*S
	keep int
}

func newDayStore[S any](keep int) *dayStore[S] {
	if keep <= 0 {
		keep = 5
	}
	return &dayStore[S]{days: make(map[string]*S), keep: keep}
}

// get returns the state for the date key, creating it when absent, and
// prunes older days. Date keys are ISO dates so lexical order is
// chronological.
func (d *dayStore[S]) get(key string) *S {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.days[key]
	if !ok {
		s = new(S)
		d.days[key] = s
		d.pruneLocked()
	}
	return s
}

func (d *dayStore[S]) pruneLocked() {
	if len(d.days) <= d.keep {
		return
	}
	keys := make([]string, 0, len(d.days))
	for k := range d.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-d.keep] {
		delete(d.days, k)
	}
}

func (d *dayStore[S]) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days)
}
