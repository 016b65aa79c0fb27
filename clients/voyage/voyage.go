package voyage

import (
	"context"
	"fmt"
	"sync"

	"github.com/austinfhunter/voyageai"
)

var (
	client *voyageai.VoyageClient
	once   sync.Once
)

// EMBEDDING_DIMENSIONS is the fixed dimensionality of every vector this
// service produces. All stored pattern-example embeddings share it.
const EMBEDDING_DIMENSIONS = 1024

const VOYAGEAI_EMBEDDING_MODEL = "voyage-3.5-lite"

type VoyageEmbeddingType string

const (
	VoyageEmbeddingTypeDocument VoyageEmbeddingType = "document"
	VoyageEmbeddingTypeQuery    VoyageEmbeddingType = "query"
)

// embeddingService handles generating embeddings for text
type embeddingService struct {
	dimensions int
	model      string
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey string) *embeddingService {
	once.Do(func() {
		client = voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		})
	})

	return &embeddingService{
		dimensions: EMBEDDING_DIMENSIONS,
		model:      VOYAGEAI_EMBEDDING_MODEL,
	}
}

// GenerateEmbedding generates an embedding for a single text using VoyageAI
func (es *embeddingService) GenerateEmbedding(ctx context.Context, text string, embeddingType VoyageEmbeddingType) ([]float32, error) {
	inputType := string(embeddingType)
	embeddings, err := client.Embed(
		[]string{text},
		es.model,
		&voyageai.EmbeddingRequestOpts{
			InputType:       &inputType,
			OutputDimension: &es.dimensions,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not get embedding: %w", err)
	}

	return embeddings.Data[0].Embedding, nil
}

// SetDimensions overrides the output dimensionality. Must match the
// dimensionality of previously stored vectors.
func (es *embeddingService) SetDimensions(dimensions int) {
	es.dimensions = dimensions
}

// SetModel overrides the embedding model
func (es *embeddingService) SetModel(model string) {
	es.model = model
}

// GetEmbeddingDimensions returns the dimension count for the embedding model
func (es *embeddingService) GetEmbeddingDimensions() int {
	return es.dimensions
}
