package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	cascade "github.com/FrenchMajesty/pattern-cascade"
	"github.com/FrenchMajesty/pattern-cascade/clients/convex"
)

// Convex function paths for the pattern table
const (
	fnGetActivePatterns = "patterns:getActive"
	fnCreatePattern     = "patterns:create"
	fnIncrementHitCount = "patterns:incrementHitCount"
	fnUpdateSuccessRate = "patterns:recordFeedback"
	fnAppendExample     = "patterns:appendExample"
	fnDeactivate        = "patterns:deactivate"
	fnDelete            = "patterns:remove"
)

// ConvexPatternStore implements cascade.PatternStore against a Convex
// deployment. Counter updates run as Convex mutations, which are serialized
// server-side, so increments never lose updates.
type ConvexPatternStore struct {
	client *convex.Client
}

// NewConvexPatternStore creates a store for the given deployment URL, or
// CONVEX_URL from the environment when none is given
func NewConvexPatternStore(deploymentURL *string) (*ConvexPatternStore, error) {
	url, err := loadEnvVar(deploymentURL, "CONVEX_URL")
	if err != nil {
		return nil, err
	}
	return &ConvexPatternStore{client: convex.NewClient(*url)}, nil
}

// GetActivePatterns implements cascade.PatternStore
func (s *ConvexPatternStore) GetActivePatterns(ctx context.Context, namespace string) ([]cascade.Pattern, error) {
	value, err := s.client.Query(ctx, fnGetActivePatterns, map[string]any{
		"namespace": namespace,
	})
	if err != nil {
		return nil, err
	}
	if !value.IsArray() {
		return nil, nil
	}

	var patterns []cascade.Pattern
	if err := json.Unmarshal([]byte(value.Raw), &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode patterns for namespace %q: %w", namespace, err)
	}
	return patterns, nil
}

// CreatePattern implements cascade.PatternStore
func (s *ConvexPatternStore) CreatePattern(ctx context.Context, p cascade.Pattern) (string, error) {
	// Round-trip through JSON so the mutation args mirror the record's wire
	// shape exactly
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pattern: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return "", fmt.Errorf("failed to build pattern args: %w", err)
	}

	value, err := s.client.Mutation(ctx, fnCreatePattern, args)
	if err != nil {
		return "", err
	}
	id := value.String()
	if id == "" {
		id = p.ID
	}
	return id, nil
}

// IncrementHitCount implements cascade.PatternStore
func (s *ConvexPatternStore) IncrementHitCount(ctx context.Context, patternID string) error {
	_, err := s.client.Mutation(ctx, fnIncrementHitCount, map[string]any{
		"patternId": patternID,
	})
	return err
}

// UpdateSuccessRate implements cascade.PatternStore
func (s *ConvexPatternStore) UpdateSuccessRate(ctx context.Context, patternID string, success bool) error {
	_, err := s.client.Mutation(ctx, fnUpdateSuccessRate, map[string]any{
		"patternId": patternID,
		"success":   success,
	})
	return err
}

// AppendExampleQuery implements cascade.PatternStore
func (s *ConvexPatternStore) AppendExampleQuery(ctx context.Context, patternID string, text string, embedding []float32) error {
	// JSON has no float32 slice; widen explicitly so the args encode as a
	// plain number array
	vector := make([]any, len(embedding))
	for i, v := range embedding {
		vector[i] = float64(v)
	}
	_, err := s.client.Mutation(ctx, fnAppendExample, map[string]any{
		"patternId": patternID,
		"text":      text,
		"embedding": vector,
	})
	return err
}

// Deactivate implements cascade.PatternStore
func (s *ConvexPatternStore) Deactivate(ctx context.Context, patternID string) error {
	_, err := s.client.Mutation(ctx, fnDeactivate, map[string]any{
		"patternId": patternID,
	})
	return err
}

// Delete implements cascade.PatternStore
func (s *ConvexPatternStore) Delete(ctx context.Context, patternID string) error {
	_, err := s.client.Mutation(ctx, fnDelete, map[string]any{
		"patternId": patternID,
	})
	return err
}
