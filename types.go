package cascade

import "time"

// ResponseType discriminates what a pattern's cached response contains
type ResponseType string

const (
	// ResponseTypeStatic means CachedResponse is literal answer text
	ResponseTypeStatic ResponseType = "static"

	// ResponseTypeAction means CachedResponse is a structured action payload (JSON)
	ResponseTypeAction ResponseType = "action"
)

// ExampleQuery is one representative phrasing of a pattern's intent, paired
// with its precomputed embedding vector
type ExampleQuery struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Pattern is the unit of cached knowledge, scoped to one tenant namespace.
// All matching and all writes are namespace-scoped; a pattern is never
// visible outside its own namespace.
type Pattern struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	Namespace      string         `json:"namespace"`
	Keywords       []string       `json:"keywords"`
	ExampleQueries []ExampleQuery `json:"exampleQueries"`
	CachedResponse string         `json:"cachedResponse"`
	ResponseType   ResponseType   `json:"responseType"`

	// Domain is the tenant's business category. Analytics only, never
	// consulted by matching.
	Domain string `json:"domain,omitempty"`

	IsActive bool  `json:"isActive"`
	HitCount int64 `json:"hitCount"`

	// SuccessCount and SampleCount back the derived success rate. Kept as
	// two counters so concurrent feedback updates stay commutative.
	SuccessCount int64 `json:"successCount"`
	SampleCount  int64 `json:"sampleCount"`

	// Confidence is the fallback-reported confidence at creation time
	Confidence float32   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SuccessRate returns the all-time success ratio in [0,1]. Patterns with no
// feedback yet report 1.0 so a fresh pattern is not instantly deactivated.
func (p *Pattern) SuccessRate() float32 {
	if p.SampleCount == 0 {
		return 1.0
	}
	return float32(p.SuccessCount) / float32(p.SampleCount)
}

// Stage identifies which cascade stage produced a terminal decision
type Stage int

const (
	StageValidation Stage = iota // Stage 0
	StageLexical                 // Stage 1a
	StageSemantic                // Stage 1b
	StageFallback                // Stage 2
)

func (s Stage) String() string {
	switch s {
	case StageValidation:
		return "0"
	case StageLexical:
		return "1a"
	case StageSemantic:
		return "1b"
	case StageFallback:
		return "2"
	}
	return "unknown"
}

// Method discriminates the matching technique that settled a decision
type Method string

const (
	MethodValidationReject Method = "validation-reject"
	MethodExact            Method = "exact"
	MethodFuzzy            Method = "fuzzy"
	MethodEmbedding        Method = "embedding"
	MethodFallback         Method = "fallback"
	MethodDisabled         Method = "disabled"
)

// Outcome is the closed set of terminal results a decision can carry
type Outcome string

const (
	// OutcomeReject means Stage 0 refused the utterance; Response holds a
	// short canned clarification prompt
	OutcomeReject Outcome = "reject"

	// OutcomeHit means a cached pattern answered; Response holds the
	// pattern's cached response
	OutcomeHit Outcome = "hit"

	// OutcomeEscalate means the generative provider handled (or must
	// handle) the turn
	OutcomeEscalate Outcome = "escalate"
)

// Decision is the cascade's output for one utterance. Constructed fresh per
// request, never persisted.
type Decision struct {
	Outcome Outcome
	Stage   Stage
	Method  Method

	// RejectReason is set only for OutcomeReject: "too short", "too long",
	// "blocked" or "rate limited"
	RejectReason string

	// Response is the answer text. For OutcomeHit it is the cached
	// response; for OutcomeEscalate it is the freshly generated one, or
	// empty when the engine has no fallback client and the host must
	// perform the provider call itself.
	Response     string
	ResponseType ResponseType

	// PatternKey identifies the matched pattern on a hit
	PatternKey string

	// MatchScore is the similarity or confidence value that drove the
	// decision. Retained for audit and threshold tuning.
	MatchScore float32

	// Observability fields, not correctness-relevant
	Latency            time.Duration
	EstimatedCostDelta float64
}

// ShouldEscalate reports whether the generative provider owns this turn
func (d *Decision) ShouldEscalate() bool {
	return d.Outcome == OutcomeEscalate
}

// Turn is one prior exchange in the conversation
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Conversation carries the per-session context forwarded to the fallback
// provider and used for rate limiting and rollout bucketing
type Conversation struct {
	SessionID string `json:"sessionId"`
	Turns     []Turn `json:"turns,omitempty"`
}

// Metrics provides counters about an engine's lifetime activity
type Metrics struct {
	// Decisions is the total number of cascade invocations
	Decisions int64

	// Suppressions is the number of turns resolved without the generative
	// provider (Stage 0, 1a or 1b terminal)
	Suppressions int64

	// PatternsLearned is the number of patterns created by the learning loop
	PatternsLearned int64

	// SuppressionRate is Suppressions / Decisions as a percentage
	SuppressionRate float32
}

// Rough per-call provider costs in USD, used for the EstimatedCostDelta
// observability field. Tuning these changes reporting only.
const (
	estimatedFallbackCost  = 0.002
	estimatedEmbeddingCost = 0.00002
)
