package cascade

import "time"

const (
	// DefaultFuzzyThreshold is the minimum edit-distance ratio for a
	// Stage 1a fuzzy match
	DefaultFuzzyThreshold = 0.80

	// DefaultSemanticThreshold is the minimum cosine similarity for a
	// Stage 1b embedding match
	DefaultSemanticThreshold = 0.75

	// DefaultLearningConfidence is the minimum fallback-reported confidence
	// before a response is cached as a new pattern
	DefaultLearningConfidence = 0.90

	// DefaultClarificationPrompt is returned on Stage 0 rejections
	DefaultClarificationPrompt = "Sorry, I didn't catch that. Could you rephrase?"
)

// Config holds the per-namespace cascade configuration. The zero value plus
// applyDefaults is a working setup; Disabled routes every utterance straight
// to the generative fallback.
type Config struct {
	// Disabled is the emergency kill switch. A disabled engine skips all
	// matching and escalates every turn with Method "disabled". Reloadable
	// at runtime through Engine.UpdateConfig.
	Disabled bool

	// FuzzyThreshold is the Stage 1a fuzzy-acceptance threshold in [0,1].
	// If 0, uses DefaultFuzzyThreshold.
	FuzzyThreshold float32

	// SemanticThreshold is the Stage 1b acceptance threshold in [0,1].
	// If 0, uses DefaultSemanticThreshold.
	SemanticThreshold float32

	// LearningConfidenceThreshold gates pattern creation after a fallback
	// response. If 0, uses DefaultLearningConfidence.
	LearningConfidenceThreshold float32

	// MinUtteranceLength and MaxUtteranceLength bound Stage 0 validation,
	// measured in runes. Defaults: 2 and 500.
	MinUtteranceLength int
	MaxUtteranceLength int

	// Blocklist holds substrings that reject an utterance outright.
	// Matching is case-insensitive.
	Blocklist []string

	// RateLimitPerMinute caps cascade invocations per session. 0 uses the
	// default (60); negative disables rate limiting.
	RateLimitPerMinute int

	// RolloutPercentage is the share of sessions that participate in the
	// cascade, in [0,100]. 0 means unset and defaults to 100; to exclude a
	// tenant entirely use Disabled or RolloutDenylist.
	RolloutPercentage int

	// RolloutAllowlist and RolloutDenylist override the percentage for
	// specific tenants. Deny wins over allow.
	RolloutAllowlist []string
	RolloutDenylist  []string

	// DeactivationSuccessFloor and DeactivationMinSamples drive automatic
	// deactivation: a pattern whose success rate drops below the floor
	// after at least the minimum number of feedback samples stops matching.
	// Defaults: 0.40 and 10.
	DeactivationSuccessFloor float32
	DeactivationMinSamples   int

	// EmbeddingTimeout bounds the Stage 1b embedding call. On expiry the
	// stage behaves exactly like a provider error (fail-open to Stage 2).
	// Default: 500ms.
	EmbeddingTimeout time.Duration

	// RefreshInterval controls how often the in-memory pattern index is
	// reloaded from the store. Default: 30s.
	RefreshInterval time.Duration

	// ClarificationPrompt is the canned response attached to Stage 0
	// rejections. If empty, uses DefaultClarificationPrompt.
	ClarificationPrompt string
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.FuzzyThreshold == 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = DefaultSemanticThreshold
	}
	if c.LearningConfidenceThreshold == 0 {
		c.LearningConfidenceThreshold = DefaultLearningConfidence
	}
	if c.MinUtteranceLength == 0 {
		c.MinUtteranceLength = 2
	}
	if c.MaxUtteranceLength == 0 {
		c.MaxUtteranceLength = 500
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.RolloutPercentage <= 0 {
		c.RolloutPercentage = 100
	} else if c.RolloutPercentage > 100 {
		c.RolloutPercentage = 100
	}
	if c.DeactivationSuccessFloor == 0 {
		c.DeactivationSuccessFloor = 0.40
	}
	if c.DeactivationMinSamples == 0 {
		c.DeactivationMinSamples = 10
	}
	if c.EmbeddingTimeout == 0 {
		c.EmbeddingTimeout = 500 * time.Millisecond
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 30 * time.Second
	}
	if c.ClarificationPrompt == "" {
		c.ClarificationPrompt = DefaultClarificationPrompt
	}
}
