package cascade

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// jobKind discriminates the background work the learner performs
type jobKind int

const (
	jobLearn jobKind = iota
	jobHit
	jobFeedback
	jobDeactivate
)

// storeJob is one unit of background work. Learning and counter writes go
// through this queue so a slow or failed store write structurally cannot
// delay or fail the conversational turn that produced it.
type storeJob struct {
	kind      jobKind
	patternID string
	success   bool
	utterance string
	embedding []float32
	result    FallbackResult
}

// learnQueueSize bounds the background queue. A full queue drops the job
// with a warning; learning is best-effort.
const learnQueueSize = 256

// newPatternID mints a unique identifier for stores that do not assign
// their own
func newPatternID() string {
	return uuid.New().String()
}

// backgroundTimeout bounds each background store or provider call
const backgroundTimeout = 10 * time.Second

// enqueue submits a background job without blocking. Jobs submitted during
// shutdown or against a full queue are dropped.
func (e *Engine) enqueue(job storeJob) {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	if e.closing {
		return
	}
	select {
	case e.jobs <- job:
	default:
		e.logger.Warn("background queue full, dropping job", "kind", job.kind, "namespace", e.namespace)
	}
}

// runWorker drains the background queue until Close. A completed learning
// write is applied even if the originating turn was already abandoned —
// the work is decoupled from the turn's lifetime.
func (e *Engine) runWorker() {
	defer close(e.workerDone)
	for job := range e.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		switch job.kind {
		case jobLearn:
			e.learn(ctx, job)
		case jobHit:
			if err := e.store.IncrementHitCount(ctx, job.patternID); err != nil {
				e.logger.Warn("hit count write failed", "pattern", job.patternID, "err", err)
			}
		case jobFeedback:
			if err := e.store.UpdateSuccessRate(ctx, job.patternID, job.success); err != nil {
				e.logger.Warn("success rate write failed", "pattern", job.patternID, "err", err)
			}
		case jobDeactivate:
			if err := e.store.Deactivate(ctx, job.patternID); err != nil {
				e.logger.Warn("deactivate write failed", "pattern", job.patternID, "err", err)
			}
		}
		cancel()
	}
}

// learn persists a high-confidence fallback response as a pattern: a new
// pattern when the inferred key is unseen, or an extra example query when
// the key collides with an existing one.
func (e *Engine) learn(ctx context.Context, job storeJob) {
	key := e.keyInfer.InferKey(job.utterance)
	if key == "" {
		return
	}

	embedding := job.embedding
	if embedding == nil {
		// Stage 1b never ran for this turn (or its provider failed); embed
		// here where latency does not matter. A miss just means the new
		// example cannot semantic-match until re-embedded.
		vec, err := e.embedding.GenerateEmbedding(ctx, job.utterance)
		if err != nil {
			e.logger.Warn("learning embed failed", "namespace", e.namespace, "err", err)
		} else {
			embedding = vec
		}
	}

	if e.index.contains(key) {
		e.learnCollision(ctx, key, job.utterance, embedding)
		return
	}

	p := Pattern{
		ID:             newPatternID(),
		Key:            key,
		Namespace:      e.namespace,
		Keywords:       strings.Split(key, "_"),
		ExampleQueries: []ExampleQuery{{Text: job.utterance, Embedding: embedding}},
		CachedResponse: job.result.Text,
		ResponseType:   ResponseTypeStatic,
		IsActive:       true,
		Confidence:     job.result.Confidence,
		CreatedAt:      time.Now().UTC(),
	}

	id, err := e.store.CreatePattern(ctx, p)
	if err != nil {
		e.logger.Warn("pattern create failed", "namespace", e.namespace, "key", key, "err", err)
		return
	}
	p.ID = id
	e.index.upsert(p)
	atomic.AddInt64(&e.patternsLearned, 1)

	if e.vectors != nil && embedding != nil {
		meta := map[string]any{"pattern_key": key, "text": job.utterance}
		if err := e.vectors.Upsert(ctx, e.namespace, p.ID, embedding, meta); err != nil {
			e.logger.Warn("vector upsert failed", "namespace", e.namespace, "key", key, "err", err)
		}
	}

	e.logger.Info("learned pattern", "namespace", e.namespace, "key", key, "confidence", job.result.Confidence)
}

// learnCollision appends the utterance as a fresh example of the existing
// pattern and nudges its success rate upward — the provider just gave the
// same intent a confident answer again.
func (e *Engine) learnCollision(ctx context.Context, key, utterance string, embedding []float32) {
	snap := e.index.snapshot()
	p, ok := snap.get(key)
	if !ok {
		// Key exists but is deactivated; leave it alone
		return
	}
	for _, ex := range p.ExampleQueries {
		if ex.Text == utterance {
			return
		}
	}

	e.index.appendExample(key, utterance, embedding)
	if err := e.store.AppendExampleQuery(ctx, p.ID, utterance, embedding); err != nil {
		e.logger.Warn("example append failed", "pattern", p.ID, "err", err)
	}
	if err := e.store.UpdateSuccessRate(ctx, p.ID, true); err != nil {
		e.logger.Warn("success rate write failed", "pattern", p.ID, "err", err)
	}
	e.index.recordFeedback(key, true)

	if e.vectors != nil && embedding != nil {
		meta := map[string]any{"pattern_key": key, "text": utterance}
		if err := e.vectors.Upsert(ctx, e.namespace, uuid.New().String(), embedding, meta); err != nil {
			e.logger.Warn("vector upsert failed", "namespace", e.namespace, "key", key, "err", err)
		}
	}
}
