package cascade

import (
	"sort"
	"sync"
	"time"
)

// keywordRef maps one normalized keyword to the pattern key that owns it.
// The lexical matcher iterates these instead of scanning every pattern's
// keyword slice, and the slice is kept sorted so matching order is
// deterministic.
type keywordRef struct {
	keyword    string
	patternKey string
}

// patternSet is an immutable snapshot of the active patterns in one
// namespace, taken once per request. Matching stages read only the snapshot,
// so index writers never tear an in-flight read.
type patternSet struct {
	patterns []Pattern
	byKey    map[string]int
	keywords []keywordRef
}

func (s *patternSet) get(key string) (Pattern, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Pattern{}, false
	}
	return s.patterns[i], true
}

// patternIndex is the shared, read-mostly in-memory structure holding one
// namespace's patterns. Readers take snapshots concurrently; writers
// (learning, feedback, deactivation) replace or mutate entries under the
// write lock. Counter updates go through the write lock too, which keeps
// concurrent increments exact without a CAS loop.
type patternIndex struct {
	mu       sync.RWMutex
	byKey    map[string]*Pattern
	keywords []keywordRef
	loadedAt time.Time
	loaded   bool
}

func newPatternIndex() *patternIndex {
	return &patternIndex{byKey: make(map[string]*Pattern)}
}

// stale reports whether the index needs a reload from the store
func (x *patternIndex) stale(interval time.Duration) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return !x.loaded || time.Since(x.loadedAt) > interval
}

// replaceAll swaps in a freshly loaded pattern set. Live counters that
// advanced past the stored values are preserved so an in-flight hit is not
// rolled back by a concurrent refresh.
func (x *patternIndex) replaceAll(patterns []Pattern) {
	x.mu.Lock()
	defer x.mu.Unlock()

	fresh := make(map[string]*Pattern, len(patterns))
	for i := range patterns {
		p := patterns[i]
		if prev, ok := x.byKey[p.Key]; ok {
			if prev.HitCount > p.HitCount {
				p.HitCount = prev.HitCount
			}
			if prev.SampleCount > p.SampleCount {
				p.SampleCount = prev.SampleCount
				p.SuccessCount = prev.SuccessCount
			}
		}
		fresh[p.Key] = &p
	}
	x.byKey = fresh
	x.loadedAt = time.Now()
	x.loaded = true
	x.rebuildKeywords()
}

// upsert inserts or replaces one pattern by key
func (x *patternIndex) upsert(p Pattern) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byKey[p.Key] = &p
	x.rebuildKeywords()
}

// recordHit bumps the hit counter for a pattern, returning its ID for the
// best-effort store write. Exactness under concurrency comes from the write
// lock: N concurrent hits always advance the counter by N.
func (x *patternIndex) recordHit(key string) (id string, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, found := x.byKey[key]
	if !found {
		return "", false
	}
	p.HitCount++
	return p.ID, true
}

// recordFeedback applies one success/failure sample and returns the updated
// pattern copy so the caller can evaluate deactivation
func (x *patternIndex) recordFeedback(key string, success bool) (Pattern, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, found := x.byKey[key]
	if !found {
		return Pattern{}, false
	}
	p.SampleCount++
	if success {
		p.SuccessCount++
	}
	return *p, true
}

// appendExample adds a phrasing to an existing pattern. The example slice is
// replaced, not mutated in place, so snapshots taken earlier keep reading
// their own copy.
func (x *patternIndex) appendExample(key, text string, embedding []float32) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, found := x.byKey[key]
	if !found {
		return false
	}
	examples := make([]ExampleQuery, len(p.ExampleQueries), len(p.ExampleQueries)+1)
	copy(examples, p.ExampleQueries)
	p.ExampleQueries = append(examples, ExampleQuery{Text: text, Embedding: embedding})
	return true
}

// deactivate marks a pattern inactive, excluding it from future snapshots
func (x *patternIndex) deactivate(key string) (id string, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, found := x.byKey[key]
	if !found || !p.IsActive {
		return "", false
	}
	p.IsActive = false
	x.rebuildKeywords()
	return p.ID, true
}

// contains reports whether a key exists (active or not)
func (x *patternIndex) contains(key string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.byKey[key]
	return ok
}

// snapshot copies the active patterns for one request's matching stages
func (x *patternIndex) snapshot() *patternSet {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := &patternSet{
		patterns: make([]Pattern, 0, len(x.byKey)),
		byKey:    make(map[string]int, len(x.byKey)),
	}
	for _, p := range x.byKey {
		if !p.IsActive {
			continue
		}
		set.byKey[p.Key] = len(set.patterns)
		set.patterns = append(set.patterns, *p)
	}
	// Stable order for deterministic tie-breaking
	sort.Slice(set.patterns, func(i, j int) bool {
		return set.patterns[i].Key < set.patterns[j].Key
	})
	for i := range set.patterns {
		set.byKey[set.patterns[i].Key] = i
	}
	set.keywords = x.keywords
	return set
}

// rebuildKeywords regenerates the keyword → pattern-key mapping from active
// patterns. Caller must hold the write lock.
func (x *patternIndex) rebuildKeywords() {
	refs := make([]keywordRef, 0, len(x.byKey)*2)
	for _, p := range x.byKey {
		if !p.IsActive {
			continue
		}
		for _, kw := range p.Keywords {
			norm := normalizeText(kw)
			if norm == "" {
				continue
			}
			refs = append(refs, keywordRef{keyword: norm, patternKey: p.Key})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].keyword != refs[j].keyword {
			return refs[i].keyword < refs[j].keyword
		}
		return refs[i].patternKey < refs[j].patternKey
	})
	x.keywords = refs
}
