// cascade-smoke runs a handful of utterances through a real engine to
// verify credentials, the embedded store and the provider clients are all
// wired correctly. It seeds two starter patterns, replays the given
// utterances and prints each decision.
//
// Usage:
//
//	cascade-smoke -namespace demo -dir ./smoke-data "what time do you open" "do you take walk ins"
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	cascade "github.com/FrenchMajesty/pattern-cascade"
	"github.com/FrenchMajesty/pattern-cascade/adapters"
	badgerstore "github.com/FrenchMajesty/pattern-cascade/store/badger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using ambient environment")
	}

	namespace := flag.String("namespace", "smoke", "tenant namespace to run against")
	dir := flag.String("dir", "./smoke-data", "directory for the embedded pattern store")
	withFallback := flag.Bool("fallback", false, "invoke the generative provider on escalation (requires GROQ_API_KEY)")
	withVectors := flag.Bool("vectors", false, "use the remote vector index (requires PINECONE_API_KEY and PINECONE_HOST)")
	flag.Parse()

	utterances := flag.Args()
	if len(utterances) == 0 {
		utterances = []string{
			"what time do you open",
			"what are your hours today",
			"do you take walk ins",
			"hm",
		}
	}

	if err := run(*namespace, *dir, *withFallback, *withVectors, utterances); err != nil {
		log.Fatal("smoke test failed", "err", err)
	}
}

func run(namespace, dir string, withFallback, withVectors bool, utterances []string) error {
	store, err := badgerstore.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	embedding, err := adapters.NewVoyageEmbeddingAdapter(nil)
	if err != nil {
		return err
	}

	opts := cascade.Options{
		Namespace: namespace,
		Store:     store,
		Embedding: embedding,
		Telemetry: cascade.PrometheusTelemetry{},
		Logger:    log.Default(),
	}
	if withFallback {
		fallback, err := adapters.NewGroqFallbackAdapter(nil, "")
		if err != nil {
			return err
		}
		opts.Fallback = fallback
	}
	if withVectors {
		vectors, err := adapters.NewPineconeVectorAdapter(nil, nil)
		if err != nil {
			return err
		}
		opts.Vectors = vectors
	}

	engine, err := cascade.NewEngine(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := engine.Seed(ctx, seedPatterns()); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	conv := cascade.Conversation{SessionID: "smoke-session"}
	for _, utterance := range utterances {
		decision, err := engine.Decide(ctx, utterance, conv)
		if err != nil {
			return fmt.Errorf("decide %q: %w", utterance, err)
		}
		printDecision(utterance, decision)
	}

	metrics := engine.GetMetrics()
	fmt.Printf("\n%d decisions, %d suppressed (%.1f%%), %d patterns learned\n",
		metrics.Decisions, metrics.Suppressions, metrics.SuppressionRate, metrics.PatternsLearned)
	return nil
}

func seedPatterns() []cascade.Pattern {
	return []cascade.Pattern{
		{
			Key:            "business_hours",
			Keywords:       []string{"hours", "open", "close"},
			CachedResponse: "We're open Monday through Saturday, nine to six.",
			ExampleQueries: []cascade.ExampleQuery{
				{Text: "what time do you open"},
				{Text: "when do you close today"},
			},
		},
		{
			Key:            "walk_ins",
			Keywords:       []string{"walk in", "walk ins", "appointment"},
			CachedResponse: "Walk-ins are welcome, though appointments get priority.",
			ExampleQueries: []cascade.ExampleQuery{
				{Text: "do you take walk ins"},
				{Text: "do I need an appointment"},
			},
		},
	}
}

func printDecision(utterance string, d *cascade.Decision) {
	switch d.Outcome {
	case cascade.OutcomeReject:
		fmt.Printf("%-40q  stage %-2s  REJECT (%s)\n", utterance, d.Stage, d.RejectReason)
	case cascade.OutcomeHit:
		fmt.Printf("%-40q  stage %-2s  HIT %s score=%.2f (%s) in %s\n",
			utterance, d.Stage, d.PatternKey, d.MatchScore, d.Method, d.Latency)
	default:
		fmt.Printf("%-40q  stage %-2s  ESCALATE (%s) in %s\n", utterance, d.Stage, d.Method, d.Latency)
		if d.Response != "" {
			fmt.Printf("    provider said: %s\n", d.Response)
		}
	}
}
