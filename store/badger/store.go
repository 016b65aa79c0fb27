// Package badger provides an embedded PatternStore for single-node
// deployments. Pattern records are service infrastructure at modest
// cardinality; an embedded store means no network call and no availability
// dependency on the persistence tier.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	cascade "github.com/FrenchMajesty/pattern-cascade"
)

// Key layout, versioned to allow future format changes without collision:
//
//	pat/v1/{id}              → JSON-encoded pattern record
//	ns/v1/{namespace}/{id}   → empty (namespace membership index)
const (
	patternKeyPrefix   = "pat/v1/"
	namespaceKeyPrefix = "ns/v1/"
)

// ErrNotFound is returned when a pattern ID does not exist
var ErrNotFound = errors.New("pattern not found")

// PatternStore implements cascade.PatternStore on BadgerDB. Counter updates
// run inside serializable read-modify-write transactions, so concurrent
// increments never lose updates.
type PatternStore struct {
	db *badger.DB
}

// Open opens (or creates) a store at the given directory
func Open(dir string) (*PatternStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", dir, err)
	}
	return &PatternStore{db: db}, nil
}

// Close releases the underlying database
func (s *PatternStore) Close() error {
	return s.db.Close()
}

func patternKey(id string) []byte {
	return []byte(patternKeyPrefix + id)
}

func namespaceKey(namespace, id string) []byte {
	return []byte(namespaceKeyPrefix + namespace + "/" + id)
}

// GetActivePatterns implements cascade.PatternStore
func (s *PatternStore) GetActivePatterns(ctx context.Context, namespace string) ([]cascade.Pattern, error) {
	var patterns []cascade.Pattern

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(namespaceKeyPrefix + namespace + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(it.Item().Key()[len(namespaceKeyPrefix)+len(namespace)+1:])

			item, err := txn.Get(patternKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Dangling index entry; skip rather than fail the load
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				var p cascade.Pattern
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("corrupt pattern record %s: %w", id, err)
				}
				if p.IsActive {
					patterns = append(patterns, p)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

// CreatePattern implements cascade.PatternStore
func (s *PatternStore) CreatePattern(ctx context.Context, p cascade.Pattern) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pattern: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(patternKey(p.ID), data); err != nil {
			return err
		}
		return txn.Set(namespaceKey(p.Namespace, p.ID), nil)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write pattern %s: %w", p.ID, err)
	}
	return p.ID, nil
}

// IncrementHitCount implements cascade.PatternStore
func (s *PatternStore) IncrementHitCount(ctx context.Context, patternID string) error {
	return s.mutate(patternID, func(p *cascade.Pattern) {
		p.HitCount++
	})
}

// UpdateSuccessRate implements cascade.PatternStore
func (s *PatternStore) UpdateSuccessRate(ctx context.Context, patternID string, success bool) error {
	return s.mutate(patternID, func(p *cascade.Pattern) {
		p.SampleCount++
		if success {
			p.SuccessCount++
		}
	})
}

// AppendExampleQuery implements cascade.PatternStore
func (s *PatternStore) AppendExampleQuery(ctx context.Context, patternID string, text string, embedding []float32) error {
	return s.mutate(patternID, func(p *cascade.Pattern) {
		p.ExampleQueries = append(p.ExampleQueries, cascade.ExampleQuery{Text: text, Embedding: embedding})
	})
}

// Deactivate implements cascade.PatternStore
func (s *PatternStore) Deactivate(ctx context.Context, patternID string) error {
	return s.mutate(patternID, func(p *cascade.Pattern) {
		p.IsActive = false
	})
}

// Delete implements cascade.PatternStore
func (s *PatternStore) Delete(ctx context.Context, patternID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		p, err := readPattern(txn, patternID)
		if err != nil {
			return err
		}
		if err := txn.Delete(patternKey(patternID)); err != nil {
			return err
		}
		return txn.Delete(namespaceKey(p.Namespace, patternID))
	})
}

// mutate applies fn to a pattern inside one serializable transaction.
// Badger's optimistic concurrency aborts conflicting read-modify-write
// transactions, so conflicts are retried instead of losing the update.
func (s *PatternStore) mutate(patternID string, fn func(*cascade.Pattern)) error {
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			p, err := readPattern(txn, patternID)
			if err != nil {
				return err
			}
			fn(&p)
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal pattern: %w", err)
			}
			return txn.Set(patternKey(patternID), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func readPattern(txn *badger.Txn, patternID string) (cascade.Pattern, error) {
	var p cascade.Pattern
	item, err := txn.Get(patternKey(patternID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return p, fmt.Errorf("%w: %s", ErrNotFound, patternID)
	}
	if err != nil {
		return p, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	if err != nil {
		return p, fmt.Errorf("corrupt pattern record %s: %w", patternID, err)
	}
	return p, nil
}
