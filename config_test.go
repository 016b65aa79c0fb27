package cascade

import (
	"testing"
	"time"
)

// TestApplyDefaults tests that the zero config becomes a working setup
func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.FuzzyThreshold != DefaultFuzzyThreshold {
		t.Errorf("FuzzyThreshold = %v, want %v", cfg.FuzzyThreshold, DefaultFuzzyThreshold)
	}
	if cfg.SemanticThreshold != DefaultSemanticThreshold {
		t.Errorf("SemanticThreshold = %v, want %v", cfg.SemanticThreshold, DefaultSemanticThreshold)
	}
	if cfg.LearningConfidenceThreshold != DefaultLearningConfidence {
		t.Errorf("LearningConfidenceThreshold = %v, want %v", cfg.LearningConfidenceThreshold, DefaultLearningConfidence)
	}
	if cfg.MinUtteranceLength != 2 || cfg.MaxUtteranceLength != 500 {
		t.Errorf("length bounds = %d/%d, want 2/500", cfg.MinUtteranceLength, cfg.MaxUtteranceLength)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
	if cfg.RolloutPercentage != 100 {
		t.Errorf("RolloutPercentage = %d, want 100", cfg.RolloutPercentage)
	}
	if cfg.DeactivationSuccessFloor != 0.40 || cfg.DeactivationMinSamples != 10 {
		t.Errorf("deactivation = %v/%d, want 0.40/10", cfg.DeactivationSuccessFloor, cfg.DeactivationMinSamples)
	}
	if cfg.EmbeddingTimeout != 500*time.Millisecond {
		t.Errorf("EmbeddingTimeout = %v, want 500ms", cfg.EmbeddingTimeout)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.RefreshInterval)
	}
	if cfg.ClarificationPrompt != DefaultClarificationPrompt {
		t.Errorf("ClarificationPrompt = %q", cfg.ClarificationPrompt)
	}
	if cfg.Disabled {
		t.Error("zero config must be enabled")
	}
}

// TestApplyDefaultsPreservesExplicitValues tests that set fields survive
func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		FuzzyThreshold:     0.9,
		RateLimitPerMinute: -1,
		RolloutPercentage:  25,
	}
	cfg.applyDefaults()

	if cfg.FuzzyThreshold != 0.9 {
		t.Errorf("FuzzyThreshold overwritten to %v", cfg.FuzzyThreshold)
	}
	if cfg.RateLimitPerMinute != -1 {
		t.Errorf("negative rate limit overwritten to %d", cfg.RateLimitPerMinute)
	}
	if cfg.RolloutPercentage != 25 {
		t.Errorf("RolloutPercentage overwritten to %d", cfg.RolloutPercentage)
	}
}

// TestApplyDefaultsClampsRollout tests that out-of-range percentages clamp
func TestApplyDefaultsClampsRollout(t *testing.T) {
	cfg := Config{RolloutPercentage: 150}
	cfg.applyDefaults()
	if cfg.RolloutPercentage != 100 {
		t.Errorf("RolloutPercentage = %d, want 100", cfg.RolloutPercentage)
	}
}
