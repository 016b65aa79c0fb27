package cascade

import (
	"testing"
	"time"
)

// buildSet constructs a snapshot from patterns the way the engine does
func buildSet(patterns ...Pattern) *patternSet {
	idx := newPatternIndex()
	idx.replaceAll(patterns)
	return idx.snapshot()
}

func activePattern(key string, keywords []string, examples ...string) Pattern {
	p := Pattern{
		ID:       "id-" + key,
		Key:      key,
		Keywords: keywords,
		IsActive: true,
	}
	for _, ex := range examples {
		p.ExampleQueries = append(p.ExampleQueries, ExampleQuery{Text: ex})
	}
	return p
}

// TestMatchLexicalExact tests keyword substring containment
func TestMatchLexicalExact(t *testing.T) {
	set := buildSet(
		activePattern("business_hours", []string{"hours", "open"}),
		activePattern("walk_ins", []string{"walk in"}),
	)

	tests := []struct {
		name      string
		utterance string
		wantKey   string
		wantMiss  bool
	}{
		{
			name:      "keyword contained",
			utterance: "what are your hours today",
			wantKey:   "business_hours",
		},
		{
			name:      "keyword with punctuation around it",
			utterance: "Hours?!",
			wantKey:   "business_hours",
		},
		{
			name:      "multi-word keyword",
			utterance: "can I just walk in tomorrow",
			wantKey:   "walk_ins",
		},
		{
			name:      "case insensitive",
			utterance: "are you OPEN now",
			wantKey:   "business_hours",
		},
		{
			name:      "no keyword present",
			utterance: "tell me about parking",
			wantMiss:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matchLexical(set, tt.utterance, DefaultFuzzyThreshold)
			if tt.wantMiss {
				if m != nil {
					t.Fatalf("expected miss, got match %q", m.pattern.Key)
				}
				return
			}
			if m == nil {
				t.Fatal("expected match, got miss")
			}
			if m.pattern.Key != tt.wantKey {
				t.Errorf("matched %q, want %q", m.pattern.Key, tt.wantKey)
			}
			if m.method != MethodExact {
				t.Errorf("method = %q, want %q", m.method, MethodExact)
			}
			if m.score != 1.0 {
				t.Errorf("exact match score = %v, want 1.0", m.score)
			}
		})
	}
}

// TestMatchLexicalFuzzy tests the edit-ratio pass against near-miss phrasings
func TestMatchLexicalFuzzy(t *testing.T) {
	set := buildSet(
		activePattern("business_hours", []string{"schedule"}, "what are your hours"),
	)

	// One typo in a phrase that matches no keyword exactly
	m := matchLexical(set, "what are yuor hours", DefaultFuzzyThreshold)
	if m == nil {
		t.Fatal("expected fuzzy match, got miss")
	}
	if m.method != MethodFuzzy {
		t.Errorf("method = %q, want %q", m.method, MethodFuzzy)
	}
	if m.score < DefaultFuzzyThreshold || m.score >= 1.0 {
		t.Errorf("fuzzy score = %v, want in [%v, 1.0)", m.score, DefaultFuzzyThreshold)
	}

	// A phrase far from every keyword and example stays a miss
	if m := matchLexical(set, "completely unrelated question about weather", DefaultFuzzyThreshold); m != nil {
		t.Errorf("expected miss for unrelated phrase, got %q score %v", m.pattern.Key, m.score)
	}
}

// TestMatchLexicalEmpty tests degenerate inputs
func TestMatchLexicalEmpty(t *testing.T) {
	if m := matchLexical(buildSet(), "hello", DefaultFuzzyThreshold); m != nil {
		t.Error("empty pattern set should never match")
	}
	set := buildSet(activePattern("greeting", []string{"hello"}))
	if m := matchLexical(set, "?!", DefaultFuzzyThreshold); m != nil {
		t.Error("utterance that normalizes to empty should never match")
	}
}

// TestMatchLexicalTieBreak tests that equal fuzzy scores resolve by hit count
// and then recency
func TestMatchLexicalTieBreak(t *testing.T) {
	older := activePattern("intent_a", nil, "book me an appointment")
	older.HitCount = 5
	older.CreatedAt = time.Now().Add(-time.Hour)

	newer := activePattern("intent_b", nil, "book me an appointment")
	newer.HitCount = 2
	newer.CreatedAt = time.Now()

	m := matchLexical(buildSet(older, newer), "book me an appointment", 0.9)
	if m == nil {
		t.Fatal("expected match")
	}
	if m.pattern.Key != "intent_a" {
		t.Errorf("tie resolved to %q, want higher-hit-count %q", m.pattern.Key, "intent_a")
	}

	// Equal hit counts fall through to creation time
	newer.HitCount = 5
	m = matchLexical(buildSet(older, newer), "book me an appointment", 0.9)
	if m == nil {
		t.Fatal("expected match")
	}
	if m.pattern.Key != "intent_b" {
		t.Errorf("tie resolved to %q, want newer %q", m.pattern.Key, "intent_b")
	}
}

// TestSimilarityRatio tests the normalized edit-distance similarity
func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float32
	}{
		{"identical", "hours", "hours", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "hours", "", 0.0},
		{"completely different", "ab", "xy", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := similarityRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("similarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestSimilarityRatioMonotonic tests that reducing edit distance never lowers
// the score
func TestSimilarityRatioMonotonic(t *testing.T) {
	target := "what are your hours"
	closer := similarityRatio("what are your hour", target)  // 1 edit
	farther := similarityRatio("what are your spas", target) // more edits
	if closer < farther {
		t.Errorf("closer string scored %v, farther scored %v", closer, farther)
	}
}

// TestLevenshtein tests the distance computation directly
func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
