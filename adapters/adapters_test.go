package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/FrenchMajesty/pattern-cascade/clients/pinecone"
)

// TestLoadEnvVar tests credential resolution order
func TestLoadEnvVar(t *testing.T) {
	t.Run("explicit value wins", func(t *testing.T) {
		t.Setenv("CASCADE_TEST_CRED", "from-env")
		explicit := "from-arg"
		got, err := loadEnvVar(&explicit, "CASCADE_TEST_CRED")
		if err != nil {
			t.Fatal(err)
		}
		if *got != "from-arg" {
			t.Errorf("value = %q, want from-arg", *got)
		}
	})

	t.Run("falls back to environment", func(t *testing.T) {
		t.Setenv("CASCADE_TEST_CRED", "from-env")
		got, err := loadEnvVar(nil, "CASCADE_TEST_CRED")
		if err != nil {
			t.Fatal(err)
		}
		if *got != "from-env" {
			t.Errorf("value = %q, want from-env", *got)
		}
	})

	t.Run("empty explicit value falls back", func(t *testing.T) {
		t.Setenv("CASCADE_TEST_CRED", "from-env")
		empty := ""
		got, err := loadEnvVar(&empty, "CASCADE_TEST_CRED")
		if err != nil {
			t.Fatal(err)
		}
		if *got != "from-env" {
			t.Errorf("value = %q, want from-env", *got)
		}
	})

	t.Run("missing everywhere errors", func(t *testing.T) {
		t.Setenv("CASCADE_TEST_CRED", "")
		if _, err := loadEnvVar(nil, "CASCADE_TEST_CRED"); err == nil {
			t.Error("expected error when no credential is available")
		}
	})
}

// TestNewConvexPatternStoreRequiresURL tests constructor credential handling
func TestNewConvexPatternStoreRequiresURL(t *testing.T) {
	t.Setenv("CONVEX_URL", "")
	if _, err := NewConvexPatternStore(nil); err == nil {
		t.Error("expected error without a deployment URL")
	}

	url := "https://example.convex.cloud"
	store, err := NewConvexPatternStore(&url)
	if err != nil {
		t.Fatalf("NewConvexPatternStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

// TestNewGroqFallbackAdapterModelDefault tests model selection
func TestNewGroqFallbackAdapterModelDefault(t *testing.T) {
	key := "test-key"

	adapter, err := NewGroqFallbackAdapter(&key, "")
	if err != nil {
		t.Fatalf("NewGroqFallbackAdapter failed: %v", err)
	}
	if adapter.model != defaultFallbackModel {
		t.Errorf("model = %q, want default", adapter.model)
	}

	adapter, err = NewGroqFallbackAdapter(&key, "openai/gpt-oss-20b")
	if err != nil {
		t.Fatal(err)
	}
	if adapter.model != "openai/gpt-oss-20b" {
		t.Errorf("model = %q, want override", adapter.model)
	}
}

type stubPineconeService struct {
	searchFunc func(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]pinecone.QueryMatch, error)
	upserted   []pinecone.Vector
}

func (s *stubPineconeService) Search(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]pinecone.QueryMatch, error) {
	if s.searchFunc != nil {
		return s.searchFunc(ctx, namespace, queryVector, topK, includeMetadata)
	}
	return nil, nil
}

func (s *stubPineconeService) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	s.upserted = append(s.upserted, vectors...)
	return nil
}

// TestPineconeVectorAdapterSearch tests the SDK match conversion
func TestPineconeVectorAdapterSearch(t *testing.T) {
	meta, err := pinecone.NewMetadata(map[string]any{"pattern_key": "hours"})
	if err != nil {
		t.Fatal(err)
	}
	stub := &stubPineconeService{
		searchFunc: func(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]pinecone.QueryMatch, error) {
			if namespace != "tenant-a" {
				t.Errorf("namespace = %q", namespace)
			}
			return []pinecone.QueryMatch{
				{Vector: &pinecone.Vector{Id: "v1", Metadata: meta}, Score: 0.87},
			}, nil
		},
	}
	adapter := &PineconeVectorAdapter{service: stub}

	matches, err := adapter.Search(context.Background(), "tenant-a", []float32{0.1}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].ID != "v1" || matches[0].Score != 0.87 {
		t.Errorf("match = %+v", matches[0])
	}
	if matches[0].Metadata["pattern_key"] != "hours" {
		t.Errorf("metadata = %v", matches[0].Metadata)
	}
}

// TestPineconeVectorAdapterSearchError tests error propagation
func TestPineconeVectorAdapterSearchError(t *testing.T) {
	wantErr := errors.New("index down")
	stub := &stubPineconeService{
		searchFunc: func(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]pinecone.QueryMatch, error) {
			return nil, wantErr
		},
	}
	adapter := &PineconeVectorAdapter{service: stub}

	if _, err := adapter.Search(context.Background(), "tenant-a", []float32{0.1}, 3); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

// TestPineconeVectorAdapterUpsert tests metadata conversion on the write path
func TestPineconeVectorAdapterUpsert(t *testing.T) {
	stub := &stubPineconeService{}
	adapter := &PineconeVectorAdapter{service: stub}

	err := adapter.Upsert(context.Background(), "tenant-a", "v1", []float32{0.1, 0.2}, map[string]any{"pattern_key": "hours"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(stub.upserted) != 1 {
		t.Fatalf("upserted = %d, want 1", len(stub.upserted))
	}
	v := stub.upserted[0]
	if v.Id != "v1" || len(v.Values) != 2 {
		t.Errorf("vector = %+v", v)
	}
	if v.Metadata == nil {
		t.Error("metadata not converted")
	}
}
