// Package testutil provides mock implementations of the cascade interfaces
// for testing
package testutil

import (
	"context"
	"fmt"
	"sync"

	cascade "github.com/FrenchMajesty/pattern-cascade"
)

// MockPatternStore is an in-memory mock implementation of PatternStore for
// testing. Every method can be overridden through its Func field; without an
// override it operates on the in-memory Patterns map.
type MockPatternStore struct {
	GetActivePatternsFunc  func(ctx context.Context, namespace string) ([]cascade.Pattern, error)
	IncrementHitCountFunc  func(ctx context.Context, patternID string) error
	UpdateSuccessRateFunc  func(ctx context.Context, patternID string, success bool) error
	CreatePatternFunc      func(ctx context.Context, p cascade.Pattern) (string, error)
	AppendExampleQueryFunc func(ctx context.Context, patternID string, text string, embedding []float32) error
	DeactivateFunc         func(ctx context.Context, patternID string) error
	DeleteFunc             func(ctx context.Context, patternID string) error

	mu              sync.Mutex
	Patterns        map[string]cascade.Pattern
	GetCount        int
	IncrementCount  int
	FeedbackCount   int
	CreateCount     int
	AppendCount     int
	DeactivateCount int
	DeleteCount     int
	nextID          int
}

func NewMockPatternStore() *MockPatternStore {
	return &MockPatternStore{
		Patterns: make(map[string]cascade.Pattern),
	}
}

func (m *MockPatternStore) GetActivePatterns(ctx context.Context, namespace string) ([]cascade.Pattern, error) {
	m.mu.Lock()
	m.GetCount++
	m.mu.Unlock()

	if m.GetActivePatternsFunc != nil {
		return m.GetActivePatternsFunc(ctx, namespace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var patterns []cascade.Pattern
	for _, p := range m.Patterns {
		if p.Namespace == namespace && p.IsActive {
			patterns = append(patterns, p)
		}
	}
	return patterns, nil
}

func (m *MockPatternStore) IncrementHitCount(ctx context.Context, patternID string) error {
	m.mu.Lock()
	m.IncrementCount++
	if p, ok := m.Patterns[patternID]; ok {
		p.HitCount++
		m.Patterns[patternID] = p
	}
	m.mu.Unlock()

	if m.IncrementHitCountFunc != nil {
		return m.IncrementHitCountFunc(ctx, patternID)
	}
	return nil
}

func (m *MockPatternStore) UpdateSuccessRate(ctx context.Context, patternID string, success bool) error {
	m.mu.Lock()
	m.FeedbackCount++
	if p, ok := m.Patterns[patternID]; ok {
		p.SampleCount++
		if success {
			p.SuccessCount++
		}
		m.Patterns[patternID] = p
	}
	m.mu.Unlock()

	if m.UpdateSuccessRateFunc != nil {
		return m.UpdateSuccessRateFunc(ctx, patternID, success)
	}
	return nil
}

func (m *MockPatternStore) CreatePattern(ctx context.Context, p cascade.Pattern) (string, error) {
	if m.CreatePatternFunc != nil {
		m.mu.Lock()
		m.CreateCount++
		m.mu.Unlock()
		return m.CreatePatternFunc(ctx, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCount++
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("pattern-%d", m.nextID)
	}
	m.Patterns[p.ID] = p
	return p.ID, nil
}

func (m *MockPatternStore) AppendExampleQuery(ctx context.Context, patternID string, text string, embedding []float32) error {
	m.mu.Lock()
	m.AppendCount++
	if p, ok := m.Patterns[patternID]; ok {
		p.ExampleQueries = append(p.ExampleQueries, cascade.ExampleQuery{Text: text, Embedding: embedding})
		m.Patterns[patternID] = p
	}
	m.mu.Unlock()

	if m.AppendExampleQueryFunc != nil {
		return m.AppendExampleQueryFunc(ctx, patternID, text, embedding)
	}
	return nil
}

func (m *MockPatternStore) Deactivate(ctx context.Context, patternID string) error {
	m.mu.Lock()
	m.DeactivateCount++
	if p, ok := m.Patterns[patternID]; ok {
		p.IsActive = false
		m.Patterns[patternID] = p
	}
	m.mu.Unlock()

	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, patternID)
	}
	return nil
}

func (m *MockPatternStore) Delete(ctx context.Context, patternID string) error {
	m.mu.Lock()
	m.DeleteCount++
	delete(m.Patterns, patternID)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, patternID)
	}
	return nil
}

// Pattern returns the stored copy of a pattern by ID
func (m *MockPatternStore) Pattern(patternID string) (cascade.Pattern, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Patterns[patternID]
	return p, ok
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient for testing
type MockEmbeddingClient struct {
	GenerateEmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

	mu        sync.Mutex
	CallCount int
	LastText  string
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastText = text
	m.mu.Unlock()

	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	// Default: return a simple embedding based on text length
	embedding := make([]float32, 10)
	for i := range embedding {
		embedding[i] = float32(len(text)) / 100.0
	}
	return embedding, nil
}

// Calls returns the number of embedding calls made so far
func (m *MockEmbeddingClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockFallbackClient is a mock implementation of FallbackClient for testing
type MockFallbackClient struct {
	RespondFunc func(ctx context.Context, utterance string, conv cascade.Conversation) (cascade.FallbackResult, error)

	mu            sync.Mutex
	CallCount     int
	LastUtterance string
}

func (m *MockFallbackClient) Respond(ctx context.Context, utterance string, conv cascade.Conversation) (cascade.FallbackResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastUtterance = utterance
	m.mu.Unlock()

	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, utterance, conv)
	}
	return cascade.FallbackResult{Text: "generated answer", Confidence: 0.5}, nil
}

// Calls returns the number of fallback calls made so far
func (m *MockFallbackClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockVectorIndex is a mock implementation of VectorIndex for testing
type MockVectorIndex struct {
	SearchFunc func(ctx context.Context, namespace string, vector []float32, topK int) ([]cascade.VectorMatch, error)
	UpsertFunc func(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error

	mu          sync.Mutex
	SearchCount int
	UpsertCount int
	Storage     map[string]struct {
		Namespace string
		Vector    []float32
		Metadata  map[string]any
	}
}

func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		Storage: make(map[string]struct {
			Namespace string
			Vector    []float32
			Metadata  map[string]any
		}),
	}
}

func (m *MockVectorIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]cascade.VectorMatch, error) {
	m.mu.Lock()
	m.SearchCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, namespace, vector, topK)
	}
	// Default: return empty results (index miss)
	return []cascade.VectorMatch{}, nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	m.UpsertCount++
	m.Storage[id] = struct {
		Namespace string
		Vector    []float32
		Metadata  map[string]any
	}{Namespace: namespace, Vector: vector, Metadata: metadata}
	m.mu.Unlock()

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, namespace, id, vector, metadata)
	}
	return nil
}

// CaptureTelemetry records every decision event for assertions
type CaptureTelemetry struct {
	mu     sync.Mutex
	Events []cascade.DecisionEvent
}

func (c *CaptureTelemetry) RecordDecision(ev cascade.DecisionEvent) {
	c.mu.Lock()
	c.Events = append(c.Events, ev)
	c.mu.Unlock()
}

// Recorded returns a copy of the captured events
func (c *CaptureTelemetry) Recorded() []cascade.DecisionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cascade.DecisionEvent, len(c.Events))
	copy(out, c.Events)
	return out
}
