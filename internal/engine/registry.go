package engine

import (
	"sort"
	"sync"

	"trend-engine/internal/analysis"
)

// Registry is the per-symbol trendline arena: the only state that outlives a
// single analysis call. Each symbol owns an independent slot guarded by its
// own lock, so analyses of different symbols never contend.
type Registry struct {
	mu        sync.Mutex
	symbols   map[string]*symbolSlot
	maxActive int
}

type symbolSlot struct {
	mu    sync.Mutex
	lines []*analysis.Trendline
}

// NewRegistry creates a registry capping each symbol at maxActive lines.
func NewRegistry(maxActive int) *Registry {
	if maxActive <= 0 {
		maxActive = 10
	}
	return &Registry{
		symbols:   make(map[string]*symbolSlot),
		maxActive: maxActive,
	}
}

func (r *Registry) slot(symbol string) *symbolSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.symbols[symbol]
	if !ok {
		s = &symbolSlot{}
		r.symbols[symbol] = s
	}
	return s
}

// WithSymbol runs fn under the symbol's exclusive lock. fn receives the
// current line set and returns the replacement; terminal lines are pruned
// and the weakest lines evicted down to the cap before storing.
func (r *Registry) WithSymbol(symbol string, fn func(existing []*analysis.Trendline) []*analysis.Trendline) {
	s := r.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = r.prune(fn(s.lines))
}

// prune drops finished lifecycles and enforces the per-symbol cap by
// evicting weakest-strength (oldest on ties) first. Allocates a fresh
// slice: callers keep the input as a result snapshot.
func (r *Registry) prune(lines []*analysis.Trendline) []*analysis.Trendline {
	active := make([]*analysis.Trendline, 0, len(lines))
	for _, line := range lines {
		if !line.State.Terminal() {
			active = append(active, line)
		}
	}

	if len(active) <= r.maxActive {
		return active
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Strength != active[j].Strength {
			return active[i].Strength > active[j].Strength
		}
		return active[i].AnchorB.Timestamp > active[j].AnchorB.Timestamp
	})
	return active[:r.maxActive]
}

// Lines returns a snapshot of the symbol's tracked lines.
func (r *Registry) Lines(symbol string) []*analysis.Trendline {
	s := r.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*analysis.Trendline, len(s.lines))
	copy(out, s.lines)
	return out
}

// Size returns how many lines the symbol currently tracks.
func (r *Registry) Size(symbol string) int {
	s := r.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}
