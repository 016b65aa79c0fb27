// Package adapters binds the concrete API clients to the interfaces the
// cascade engine consumes. Constructors take optional explicit credentials
// and fall back to environment variables.
package adapters

import (
	"context"
	"fmt"
	"os"

	cascade "github.com/FrenchMajesty/pattern-cascade"
	"github.com/FrenchMajesty/pattern-cascade/clients/pinecone"
	"github.com/FrenchMajesty/pattern-cascade/clients/voyage"
)

// VoyageEmbeddingAdapter adapts the Voyage client to the EmbeddingClient
// interface
type VoyageEmbeddingAdapter struct {
	client interface {
		GenerateEmbedding(ctx context.Context, text string, embeddingType voyage.VoyageEmbeddingType) ([]float32, error)
	}
}

// NewVoyageEmbeddingAdapter creates a new adapter for Voyage AI
func NewVoyageEmbeddingAdapter(apiKey *string) (*VoyageEmbeddingAdapter, error) {
	key, err := loadEnvVar(apiKey, "VOYAGEAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return &VoyageEmbeddingAdapter{
		client: voyage.NewEmbeddingService(*key),
	}, nil
}

// GenerateEmbedding implements cascade.EmbeddingClient
func (a *VoyageEmbeddingAdapter) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return a.client.GenerateEmbedding(ctx, text, voyage.VoyageEmbeddingTypeQuery)
}

// PineconeVectorAdapter adapts the Pinecone client to the VectorIndex
// interface. Tenant namespaces map directly onto Pinecone namespaces, so
// isolation is enforced by the index itself.
type PineconeVectorAdapter struct {
	service interface {
		Search(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]pinecone.QueryMatch, error)
		Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error
	}
}

// NewPineconeVectorAdapter creates a new adapter for Pinecone
func NewPineconeVectorAdapter(apiKey, host *string) (*PineconeVectorAdapter, error) {
	key, err := loadEnvVar(apiKey, "PINECONE_API_KEY")
	if err != nil {
		return nil, err
	}
	h, err := loadEnvVar(host, "PINECONE_HOST")
	if err != nil {
		return nil, err
	}

	service, err := pinecone.NewPineconeService(*key, *h)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone service: %w", err)
	}
	return &PineconeVectorAdapter{service: service}, nil
}

// Search implements cascade.VectorIndex
func (a *PineconeVectorAdapter) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]cascade.VectorMatch, error) {
	matches, err := a.service.Search(ctx, namespace, vector, topK, true)
	if err != nil {
		return nil, err
	}

	results := make([]cascade.VectorMatch, len(matches))
	for i, match := range matches {
		metadata := make(map[string]any)
		if match.Vector != nil && match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}
		results[i] = cascade.VectorMatch{
			ID:       match.Vector.Id,
			Score:    match.Score,
			Metadata: metadata,
		}
	}
	return results, nil
}

// Upsert implements cascade.VectorIndex
func (a *PineconeVectorAdapter) Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error {
	meta, err := pinecone.NewMetadata(metadata)
	if err != nil {
		return err
	}
	return a.service.Upsert(ctx, namespace, []pinecone.Vector{
		{
			Id:       id,
			Values:   vector,
			Metadata: meta,
		},
	})
}

// loadEnvVar resolves a credential from an explicit value or the named
// environment variable
func loadEnvVar(target *string, envKey string) (*string, error) {
	if target != nil && *target != "" {
		return target, nil
	}
	envVar := os.Getenv(envKey)
	if envVar == "" {
		return nil, fmt.Errorf("%s environment variable not set and no value provided", envKey)
	}
	return &envVar, nil
}
