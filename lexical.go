package cascade

import "strings"

// lexicalMatch is the Stage 1a result
type lexicalMatch struct {
	pattern Pattern
	score   float32
	method  Method
}

// matchLexical runs Stage 1a against a pattern snapshot: first exact
// substring containment over the keyword index, then a fuzzy edit-ratio pass
// over keywords and example phrasings. Operates purely in memory and cannot
// error; a nil return is a miss.
func matchLexical(set *patternSet, utterance string, fuzzyThreshold float32) *lexicalMatch {
	norm := normalizeText(utterance)
	if norm == "" || len(set.patterns) == 0 {
		return nil
	}

	// Pass 1: exact containment. The keyword refs are sorted, so the first
	// containment hit is deterministic.
	for _, ref := range set.keywords {
		if strings.Contains(norm, ref.keyword) {
			if p, ok := set.get(ref.patternKey); ok {
				return &lexicalMatch{pattern: p, score: 1.0, method: MethodExact}
			}
		}
	}

	// Pass 2: fuzzy similarity over keywords and example texts
	var best *lexicalMatch
	for i := range set.patterns {
		p := set.patterns[i]
		score := float32(0)
		for _, kw := range p.Keywords {
			if s := similarityRatio(norm, normalizeText(kw)); s > score {
				score = s
			}
		}
		for _, ex := range p.ExampleQueries {
			if s := similarityRatio(norm, normalizeText(ex.Text)); s > score {
				score = s
			}
		}
		if score < fuzzyThreshold {
			continue
		}
		if best == nil || score > best.score ||
			(score == best.score && betterTieBreak(p, best.pattern)) {
			best = &lexicalMatch{pattern: p, score: score, method: MethodFuzzy}
		}
	}
	return best
}

// betterTieBreak prefers the pattern with the higher hit count, then the
// most recently created
func betterTieBreak(a, b Pattern) bool {
	if a.HitCount != b.HitCount {
		return a.HitCount > b.HitCount
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// similarityRatio returns a normalized edit-distance similarity in [0,1]:
// 1 - levenshtein(a,b) / max(len(a), len(b)). Reducing the edit distance
// between two strings never lowers the ratio.
func similarityRatio(a, b string) float32 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	dist := levenshtein(ra, rb)
	return 1 - float32(dist)/float32(longest)
}

// levenshtein computes edit distance with the classic two-row algorithm
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
