package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrShuttingDown is returned by Decide after Close has been called
	ErrShuttingDown = errors.New("cascade engine is shutting down")

	// ErrFallbackFailed wraps a Stage 2 provider failure. It is the only
	// error the cascade surfaces — there is no further fallback behind it.
	ErrFallbackFailed = errors.New("fallback provider failed")
)

// Options wires an Engine's collaborators. Store and Embedding are
// required; everything else has a working default.
type Options struct {
	// Namespace is the tenant this engine serves. Required.
	Namespace string

	// Store persists pattern records. Required.
	Store PatternStore

	// Embedding converts text to vectors for Stage 1b. Required.
	Embedding EmbeddingClient

	// Fallback is the generative provider invoked at Stage 2. If nil, the
	// engine returns OutcomeEscalate with an empty response and the host
	// performs the provider call itself.
	Fallback FallbackClient

	// Vectors is an optional remote nearest-neighbor index for Stage 1b
	Vectors VectorIndex

	// KeyInferrer derives pattern keys during learning. If nil, uses the
	// built-in heuristic.
	KeyInferrer KeyInferrer

	// Telemetry receives one event per decision. If nil, events are dropped.
	Telemetry TelemetrySink

	// Logger receives warnings from fail-open paths and the learning loop.
	// If nil, uses the default logger.
	Logger *log.Logger

	// Config is the initial cascade configuration, reloadable later through
	// UpdateConfig
	Config Config
}

// Engine runs the decision cascade for one tenant namespace: Stage 0
// validation, Stage 1a lexical matching, Stage 1b semantic matching, then
// Stage 2 generative fallback with online learning. Safe for concurrent use.
type Engine struct {
	namespace string
	store     PatternStore
	embedding EmbeddingClient
	fallback  FallbackClient
	vectors   VectorIndex
	keyInfer  KeyInferrer
	telemetry TelemetrySink
	logger    *log.Logger

	cfg     atomic.Pointer[Config]
	index   *patternIndex
	limiter *sessionLimiter

	refreshMu sync.Mutex

	// Background learning queue
	jobs       chan storeJob
	workerDone chan struct{}

	closing      bool
	closeLock    sync.RWMutex
	shutdownOnce sync.Once

	// Lifetime metrics
	decisions       int64
	suppressions    int64
	patternsLearned int64
}

// NewEngine creates an Engine and starts its background learning worker
func NewEngine(opts Options) (*Engine, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if opts.Embedding == nil {
		return nil, fmt.Errorf("embedding client is required")
	}

	cfg := opts.Config
	cfg.applyDefaults()

	keyInfer := opts.KeyInferrer
	if keyInfer == nil {
		keyInfer = &HeuristicKeyInferrer{}
	}

	var telemetry TelemetrySink = NopTelemetry{}
	if opts.Telemetry != nil {
		telemetry = opts.Telemetry
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{
		namespace:  opts.Namespace,
		store:      opts.Store,
		embedding:  opts.Embedding,
		fallback:   opts.Fallback,
		vectors:    opts.Vectors,
		keyInfer:   keyInfer,
		telemetry:  telemetry,
		logger:     logger.With("component", "cascade", "namespace", opts.Namespace),
		index:      newPatternIndex(),
		limiter:    newSessionLimiter(),
		jobs:       make(chan storeJob, learnQueueSize),
		workerDone: make(chan struct{}),
	}
	e.cfg.Store(&cfg)

	go e.runWorker()

	return e, nil
}

// Decide runs one utterance through the cascade and returns the terminal
// decision. Stages 0 and 1a never block on I/O; Stage 1b performs one
// bounded embedding call; Stage 2 invokes the fallback provider. The only
// error ever returned (besides shutdown) is a Stage 2 failure.
func (e *Engine) Decide(ctx context.Context, utterance string, conv Conversation) (*Decision, error) {
	e.closeLock.RLock()
	if e.closing {
		e.closeLock.RUnlock()
		return nil, ErrShuttingDown
	}
	e.closeLock.RUnlock()

	start := time.Now()
	cfg := e.cfg.Load()
	utterance = strings.TrimSpace(utterance)
	atomic.AddInt64(&e.decisions, 1)

	// Rollout gate: excluded tenants and disabled deployments go straight
	// to the provider with no matching work at all
	if cfg.Disabled || !participates(cfg, e.namespace, conv.SessionID) {
		return e.escalate(ctx, cfg, start, utterance, conv, MethodDisabled, nil)
	}

	// Stage 0: structural and policy validation, no I/O
	if reason := e.validate(cfg, utterance, conv.SessionID); reason != "" {
		d := &Decision{
			Outcome:      OutcomeReject,
			Stage:        StageValidation,
			Method:       MethodValidationReject,
			RejectReason: reason,
			Response:     cfg.ClarificationPrompt,
			ResponseType: ResponseTypeStatic,
			Latency:      time.Since(start),
		}
		atomic.AddInt64(&e.suppressions, 1)
		e.emit(d)
		return d, nil
	}

	set := e.activePatterns(ctx, cfg)

	// Stage 1a: lexical. Cannot error; an unexpected panic fails open.
	if m := e.lexicalStage(set, utterance, cfg.FuzzyThreshold); m != nil {
		return e.hit(cfg, start, m.pattern, m.score, m.method, StageLexical, 0), nil
	}

	// Stage 1b: semantic. Provider errors and timeouts are misses.
	var utteranceVec []float32
	if m, vec := e.semanticStage(ctx, cfg, set, utterance); m != nil {
		return e.hit(cfg, start, m.pattern, m.score, MethodEmbedding, StageSemantic, estimatedEmbeddingCost), nil
	} else {
		utteranceVec = vec
	}

	// Stage 2: the last resort always answers (or its failure surfaces)
	return e.escalate(ctx, cfg, start, utterance, conv, MethodFallback, utteranceVec)
}

// lexicalStage wraps Stage 1a so an unexpected panic degrades to a miss
func (e *Engine) lexicalStage(set *patternSet, utterance string, threshold float32) (m *lexicalMatch) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lexical stage panicked, failing open", "panic", r)
			m = nil
		}
	}()
	return matchLexical(set, utterance, threshold)
}

// semanticStage wraps Stage 1b: provider errors, timeouts and panics all
// degrade to a miss. The utterance embedding is kept for the learning path.
func (e *Engine) semanticStage(ctx context.Context, cfg *Config, set *patternSet, utterance string) (m *semanticMatch, vec []float32) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("semantic stage panicked, failing open", "panic", r)
			m = nil
		}
	}()
	match, vector, err := e.matchSemantic(ctx, cfg, set, utterance)
	if err != nil {
		e.logger.Warn("semantic stage failed open", "err", err)
		return nil, vector
	}
	return match, vector
}

// hit finalizes a Stage 1a/1b cache hit: counters, telemetry, decision
func (e *Engine) hit(cfg *Config, start time.Time, p Pattern, score float32, method Method, stage Stage, cost float64) *Decision {
	if id, ok := e.index.recordHit(p.Key); ok {
		e.enqueue(storeJob{kind: jobHit, patternID: id})
	}
	atomic.AddInt64(&e.suppressions, 1)

	d := &Decision{
		Outcome:            OutcomeHit,
		Stage:              stage,
		Method:             method,
		Response:           p.CachedResponse,
		ResponseType:       p.ResponseType,
		PatternKey:         p.Key,
		MatchScore:         score,
		Latency:            time.Since(start),
		EstimatedCostDelta: cost,
	}
	e.emit(d)
	return d
}

// escalate runs Stage 2. With no fallback client configured the decision
// carries an empty response and the host owns the provider call; otherwise
// the provider answers here and a confident answer is queued for learning.
func (e *Engine) escalate(ctx context.Context, cfg *Config, start time.Time, utterance string, conv Conversation, method Method, embedding []float32) (*Decision, error) {
	d := &Decision{
		Outcome:            OutcomeEscalate,
		Stage:              StageFallback,
		Method:             method,
		EstimatedCostDelta: estimatedFallbackCost,
	}

	if e.fallback == nil {
		d.Latency = time.Since(start)
		e.emit(d)
		return d, nil
	}

	result, err := e.fallback.Respond(ctx, utterance, conv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFallbackFailed, err)
	}

	d.Response = result.Text
	d.ResponseType = ResponseTypeStatic
	d.MatchScore = result.Confidence
	d.Latency = time.Since(start)

	// Learning is gated on confidence and never touches this turn's latency
	if method == MethodFallback && result.Confidence >= cfg.LearningConfidenceThreshold {
		e.enqueue(storeJob{
			kind:      jobLearn,
			utterance: utterance,
			embedding: embedding,
			result:    result,
		})
	}

	e.emit(d)
	return d, nil
}

// RecordFeedback applies one explicit or inferred feedback sample to a
// matched pattern and deactivates it when its success rate falls below the
// configured floor after enough samples. Store writes are asynchronous.
func (e *Engine) RecordFeedback(patternKey string, success bool) {
	cfg := e.cfg.Load()
	p, ok := e.index.recordFeedback(patternKey, success)
	if !ok {
		return
	}
	e.enqueue(storeJob{kind: jobFeedback, patternID: p.ID, success: success})

	if p.SampleCount >= int64(cfg.DeactivationMinSamples) && p.SuccessRate() < cfg.DeactivationSuccessFloor {
		if id, deactivated := e.index.deactivate(patternKey); deactivated {
			e.enqueue(storeJob{kind: jobDeactivate, patternID: id})
			e.logger.Info("auto-deactivated pattern",
				"key", patternKey, "successRate", p.SuccessRate(), "samples", p.SampleCount)
		}
	}
}

// Seed installs starter patterns for the namespace, embedding any example
// queries that arrive without vectors. Used by bootstrap routines to cover
// common intents before any learning has happened.
func (e *Engine) Seed(ctx context.Context, patterns []Pattern) error {
	for i := range patterns {
		p := patterns[i]
		p.Namespace = e.namespace
		p.IsActive = true
		if p.ID == "" {
			p.ID = newPatternID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if p.ResponseType == "" {
			p.ResponseType = ResponseTypeStatic
		}
		for j := range p.ExampleQueries {
			if p.ExampleQueries[j].Embedding != nil {
				continue
			}
			vec, err := e.embedding.GenerateEmbedding(ctx, p.ExampleQueries[j].Text)
			if err != nil {
				return fmt.Errorf("failed to embed seed example %q: %w", p.ExampleQueries[j].Text, err)
			}
			p.ExampleQueries[j].Embedding = vec
		}

		id, err := e.store.CreatePattern(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to seed pattern %q: %w", p.Key, err)
		}
		p.ID = id
		e.index.upsert(p)

		if e.vectors != nil {
			for _, ex := range p.ExampleQueries {
				meta := map[string]any{"pattern_key": p.Key, "text": ex.Text}
				if err := e.vectors.Upsert(ctx, e.namespace, newPatternID(), ex.Embedding, meta); err != nil {
					e.logger.Warn("vector upsert failed for seed", "key", p.Key, "err", err)
				}
			}
		}
	}
	return nil
}

// UpdateConfig swaps in a new configuration atomically. In-flight decisions
// finish under the config they started with.
func (e *Engine) UpdateConfig(cfg Config) {
	cfg.applyDefaults()
	e.cfg.Store(&cfg)
}

// GetMetrics returns lifetime engine counters
func (e *Engine) GetMetrics() Metrics {
	decisions := atomic.LoadInt64(&e.decisions)
	suppressions := atomic.LoadInt64(&e.suppressions)

	var rate float32
	if decisions > 0 {
		rate = float32(suppressions) / float32(decisions) * 100
	}
	return Metrics{
		Decisions:       decisions,
		Suppressions:    suppressions,
		PatternsLearned: atomic.LoadInt64(&e.patternsLearned),
		SuppressionRate: rate,
	}
}

// Close stops accepting decisions, drains the background queue and waits
// for the worker to finish. Safe to call multiple times.
func (e *Engine) Close() error {
	e.shutdownOnce.Do(func() {
		e.closeLock.Lock()
		e.closing = true
		close(e.jobs)
		e.closeLock.Unlock()

		<-e.workerDone
	})
	return nil
}

// activePatterns returns the current snapshot, reloading from the store
// when stale. A store failure degrades to the previous (possibly empty)
// snapshot with a logged warning — reads never block the cascade.
func (e *Engine) activePatterns(ctx context.Context, cfg *Config) *patternSet {
	if e.index.stale(cfg.RefreshInterval) {
		e.refreshMu.Lock()
		if e.index.stale(cfg.RefreshInterval) {
			patterns, err := e.store.GetActivePatterns(ctx, e.namespace)
			if err != nil {
				e.logger.Warn("pattern load failed, continuing with cached set", "err", err)
			} else {
				e.index.replaceAll(patterns)
			}
		}
		e.refreshMu.Unlock()
	}
	return e.index.snapshot()
}

// emit forwards the decision to telemetry
func (e *Engine) emit(d *Decision) {
	e.telemetry.RecordDecision(DecisionEvent{
		Namespace:  e.namespace,
		Stage:      d.Stage,
		Method:     d.Method,
		Outcome:    d.Outcome,
		MatchScore: d.MatchScore,
		LatencyMs:  float64(d.Latency.Microseconds()) / 1000,
		CostDelta:  d.EstimatedCostDelta,
	})
}
