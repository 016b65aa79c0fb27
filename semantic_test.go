package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
)

// stubEmbedding returns a fixed vector per text, or an error
type stubEmbedding struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedding) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

// stubVectors answers searches from a canned result list
type stubVectors struct {
	matches []VectorMatch
	err     error
}

func (s *stubVectors) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error) {
	return s.matches, s.err
}

func (s *stubVectors) Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error {
	return nil
}

func semanticEngine(embedding EmbeddingClient, vectors VectorIndex) *Engine {
	return &Engine{
		namespace: "test",
		embedding: embedding,
		vectors:   vectors,
		logger:    log.Default(),
	}
}

func embeddedPattern(key string, vecs ...[]float32) Pattern {
	p := activePattern(key, nil)
	for _, v := range vecs {
		p.ExampleQueries = append(p.ExampleQueries, ExampleQuery{Text: key + "-example", Embedding: v})
	}
	return p
}

// TestMatchSemanticBruteForce tests the in-memory cosine scan
func TestMatchSemanticBruteForce(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	set := buildSet(
		embeddedPattern("aligned", []float32{1, 0, 0}),
		embeddedPattern("orthogonal", []float32{0, 1, 0}),
	)

	e := semanticEngine(&stubEmbedding{vectors: map[string][]float32{
		"hello": {0.9, 0.1, 0},
	}}, nil)

	m, vec, err := e.matchSemantic(context.Background(), cfg, set, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec == nil {
		t.Fatal("utterance vector not returned")
	}
	if m == nil {
		t.Fatal("expected match, got miss")
	}
	if m.pattern.Key != "aligned" {
		t.Errorf("matched %q, want aligned", m.pattern.Key)
	}
	if m.score < DefaultSemanticThreshold {
		t.Errorf("score %v below threshold", m.score)
	}
}

// TestMatchSemanticBelowThreshold tests that weak similarity is a miss but
// still yields the utterance vector for learning
func TestMatchSemanticBelowThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	set := buildSet(embeddedPattern("orthogonal", []float32{0, 1, 0}))
	e := semanticEngine(&stubEmbedding{vectors: map[string][]float32{
		"hello": {1, 0, 0},
	}}, nil)

	m, vec, err := e.matchSemantic(context.Background(), cfg, set, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected miss, got %q score %v", m.pattern.Key, m.score)
	}
	if vec == nil {
		t.Error("utterance vector should be returned on a miss")
	}
}

// TestMatchSemanticProviderError tests that an embedding failure surfaces as
// an error for the caller to fail open on
func TestMatchSemanticProviderError(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	wantErr := errors.New("provider down")
	e := semanticEngine(&stubEmbedding{err: wantErr}, nil)

	m, _, err := e.matchSemantic(context.Background(), cfg, buildSet(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if m != nil {
		t.Error("match returned alongside an error")
	}
}

// TestMatchRemoteFiltersUnknownKeys tests that remote index results outside
// the active snapshot are discarded, so stale remote entries cannot
// resurrect deactivated patterns
func TestMatchRemoteFiltersUnknownKeys(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	set := buildSet(activePattern("live", nil))
	vectors := &stubVectors{matches: []VectorMatch{
		{ID: "v1", Score: 0.99, Metadata: map[string]any{"pattern_key": "deactivated"}},
		{ID: "v2", Score: 0.90, Metadata: map[string]any{"pattern_key": "live"}},
	}}

	e := semanticEngine(&stubEmbedding{}, vectors)
	m, _, err := e.matchSemantic(context.Background(), cfg, set, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected match from live pattern")
	}
	if m.pattern.Key != "live" {
		t.Errorf("matched %q, want live", m.pattern.Key)
	}
}

// TestMatchRemoteError tests that a remote index failure is an error, not a
// silent miss
func TestMatchRemoteError(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	wantErr := errors.New("index unavailable")
	e := semanticEngine(&stubEmbedding{}, &stubVectors{err: wantErr})

	_, vec, err := e.matchSemantic(context.Background(), cfg, buildSet(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if vec == nil {
		t.Error("utterance vector should survive a remote failure")
	}
}

// TestCosineSimilarity tests the similarity kernel
func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
