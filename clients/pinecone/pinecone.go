package pinecone

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Vector is an alias for the SDK vector type
type Vector = pinecone.Vector

// Metadata is an alias for the SDK metadata type
type Metadata = pinecone.Metadata

// QueryMatch is one scored result of a similarity search
type QueryMatch = pinecone.ScoredVector

// pineconeService wraps the official SDK client. Index connections are
// namespace-bound, so the service caches one connection per namespace.
type pineconeService struct {
	client *pinecone.Client
	host   string

	mu          sync.Mutex
	connections map[string]*pinecone.IndexConnection
}

// NewPineconeService creates a new Pinecone service against one index host
func NewPineconeService(apiKey, host string) (*pineconeService, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pinecone client: %w", err)
	}

	return &pineconeService{
		client:      client,
		host:        host,
		connections: make(map[string]*pinecone.IndexConnection),
	}, nil
}

// forNamespace returns the cached index connection for a namespace
func (ps *pineconeService) forNamespace(namespace string) (*pinecone.IndexConnection, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if conn, ok := ps.connections[namespace]; ok {
		return conn, nil
	}
	conn, err := ps.client.Index(pinecone.NewIndexConnParams{
		Host:      ps.host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index for namespace %q: %w", namespace, err)
	}
	ps.connections[namespace] = conn
	return conn, nil
}

// Search performs a vector similarity search within one namespace
func (ps *pineconeService) Search(ctx context.Context, namespace string, queryVector []float32, topK int, includeMetadata bool) ([]QueryMatch, error) {
	conn, err := ps.forNamespace(namespace)
	if err != nil {
		return nil, err
	}

	queryResponse, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          queryVector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]QueryMatch, len(queryResponse.Matches))
	for i, match := range queryResponse.Matches {
		matches[i] = *match
	}
	return matches, nil
}

// Upsert stores vectors within one namespace
func (ps *pineconeService) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	conn, err := ps.forNamespace(namespace)
	if err != nil {
		return err
	}

	pineconeVectors := make([]*pinecone.Vector, len(vectors))
	for i, v := range vectors {
		pineconeVectors[i] = &v
	}
	_, err = conn.UpsertVectors(ctx, pineconeVectors)
	return err
}

// Delete removes vectors from one namespace
func (ps *pineconeService) Delete(ctx context.Context, namespace string, ids []string) error {
	conn, err := ps.forNamespace(namespace)
	if err != nil {
		return err
	}
	return conn.DeleteVectorsById(ctx, ids)
}

// NewMetadata converts a plain map into SDK metadata
func NewMetadata(fields map[string]any) (*Metadata, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata map: %w", err)
	}
	return &Metadata{Fields: s.Fields}, nil
}
