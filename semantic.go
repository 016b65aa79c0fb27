package cascade

import (
	"context"
	"math"
)

// semanticMatch is the Stage 1b result
type semanticMatch struct {
	pattern   Pattern
	score     float32
	embedding []float32
}

// matchSemantic runs Stage 1b: embed the utterance, then find the single
// highest-scoring (pattern, example vector) pair at or above the threshold.
// Any provider failure (including timeout) returns an error that the
// cascade treats as a miss — fail-open is the caller's job. The utterance
// embedding is returned even on a miss so the learning path can reuse it.
func (e *Engine) matchSemantic(ctx context.Context, cfg *Config, set *patternSet, utterance string) (*semanticMatch, []float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, cfg.EmbeddingTimeout)
	defer cancel()

	vector, err := e.embedding.GenerateEmbedding(embedCtx, utterance)
	if err != nil {
		return nil, nil, err
	}

	// A remote vector index answers instead of the brute-force scan when
	// one is configured
	if e.vectors != nil {
		match, err := e.matchRemote(embedCtx, cfg, set, vector)
		if err != nil {
			return nil, vector, err
		}
		return match, vector, nil
	}

	var best *semanticMatch
	for i := range set.patterns {
		p := set.patterns[i]
		score := float32(0)
		for _, ex := range p.ExampleQueries {
			if s := cosineSimilarity(vector, ex.Embedding); s > score {
				score = s
			}
		}
		if score < cfg.SemanticThreshold {
			continue
		}
		if best == nil || score > best.score ||
			(score == best.score && betterTieBreak(p, best.pattern)) {
			best = &semanticMatch{pattern: p, score: score, embedding: vector}
		}
	}
	return best, vector, nil
}

// matchRemote resolves Stage 1b through the configured remote vector index.
// The index stores one vector per example query with the owning pattern key
// in metadata; results referencing keys outside the snapshot are discarded
// so a stale remote entry can never resurrect a deactivated pattern.
func (e *Engine) matchRemote(ctx context.Context, cfg *Config, set *patternSet, vector []float32) (*semanticMatch, error) {
	matches, err := e.vectors.Search(ctx, e.namespace, vector, 3)
	if err != nil {
		return nil, err
	}

	var best *semanticMatch
	for _, m := range matches {
		if m.Score < cfg.SemanticThreshold {
			continue
		}
		key, _ := m.Metadata["pattern_key"].(string)
		p, ok := set.get(key)
		if !ok {
			continue
		}
		if best == nil || m.Score > best.score ||
			(m.Score == best.score && betterTieBreak(p, best.pattern)) {
			best = &semanticMatch{pattern: p, score: m.Score, embedding: vector}
		}
	}
	return best, nil
}

// cosineSimilarity returns the normalized dot product of two vectors, or 0
// when dimensions differ or either vector is zero
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
