package cascade

import "context"

// PatternStore is the persistence boundary for pattern records. All methods
// are namespace-scoped through the pattern itself; implementations must
// never return a pattern outside the namespace it was created in.
type PatternStore interface {
	// GetActivePatterns returns every active pattern in the namespace
	GetActivePatterns(ctx context.Context, namespace string) ([]Pattern, error)

	// IncrementHitCount bumps the persisted hit counter by one
	IncrementHitCount(ctx context.Context, patternID string) error

	// UpdateSuccessRate records one feedback sample for the pattern
	UpdateSuccessRate(ctx context.Context, patternID string, success bool) error

	// CreatePattern persists a new pattern and returns its ID
	CreatePattern(ctx context.Context, p Pattern) (string, error)

	// AppendExampleQuery adds a phrasing (and its embedding) to a pattern
	AppendExampleQuery(ctx context.Context, patternID string, text string, embedding []float32) error

	// Deactivate excludes the pattern from matching but retains it for audit
	Deactivate(ctx context.Context, patternID string) error

	// Delete hard-deletes the pattern. Administrative use only.
	Delete(ctx context.Context, patternID string) error
}

// EmbeddingClient generates vector embeddings for text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// FallbackResult is the generative provider's answer plus its confidence
// signal in [0,1]
type FallbackResult struct {
	Text       string
	Confidence float32
}

// FallbackClient invokes the generative-response provider. Its failure is
// the only error the cascade surfaces to callers — there is nothing to fall
// back to past it.
type FallbackClient interface {
	Respond(ctx context.Context, utterance string, conv Conversation) (FallbackResult, error)
}

// KeyInferrer derives a stable pattern key from a free-text utterance.
// Pluggable so the heuristic can be swapped or tested independently of the
// cascade.
type KeyInferrer interface {
	InferKey(utterance string) string
}

// VectorMatch is a single result from a remote vector index search
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// VectorIndex is an optional remote nearest-neighbor index for Stage 1b.
// When configured, the semantic matcher queries it instead of brute-forcing
// cosine similarity over the in-memory snapshot. Implementations must scope
// every call to the given namespace.
type VectorIndex interface {
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error)
	Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error
}

// DecisionEvent is the per-decision observation emitted to telemetry
type DecisionEvent struct {
	Namespace string
	Stage     Stage
	Method    Method
	Outcome   Outcome

	MatchScore float32
	LatencyMs  float64
	CostDelta  float64
}

// TelemetrySink receives one event per decision. Implementations must be
// safe for concurrent use and must not block.
type TelemetrySink interface {
	RecordDecision(ev DecisionEvent)
}
