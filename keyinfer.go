package cascade

import (
	"strings"
	"unicode"
)

// HeuristicKeyInferrer derives pattern keys by keeping the first few
// significant tokens of the normalized utterance. "What are your hours?"
// becomes "hours"; "Do you deliver to downtown?" becomes "deliver_downtown".
type HeuristicKeyInferrer struct {
	// MaxTokens caps how many significant tokens form the key. If 0, uses 3.
	MaxTokens int
}

// stopwords are tokens that carry no intent signal and are dropped before
// key assembly
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "will": {},
	"would": {}, "should": {}, "i": {}, "you": {}, "your": {}, "yours": {},
	"my": {}, "me": {}, "we": {}, "our": {}, "it": {}, "its": {}, "what": {},
	"when": {}, "where": {}, "who": {}, "why": {}, "how": {}, "which": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {},
	"and": {}, "or": {}, "that": {}, "this": {}, "there": {}, "have": {},
	"has": {}, "had": {}, "be": {}, "been": {}, "am": {}, "please": {},
	"hi": {}, "hello": {}, "hey": {}, "thanks": {}, "thank": {},
}

// InferKey implements KeyInferrer
func (h *HeuristicKeyInferrer) InferKey(utterance string) string {
	max := h.MaxTokens
	if max <= 0 {
		max = 3
	}

	tokens := tokenize(utterance)
	kept := make([]string, 0, max)
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == max {
			break
		}
	}

	// Nothing significant survived; fall back to the raw tokens so the key
	// is still stable for the same utterance
	if len(kept) == 0 {
		if len(tokens) == 0 {
			return "unclassified"
		}
		if len(tokens) > max {
			tokens = tokens[:max]
		}
		kept = tokens
	}

	return strings.Join(kept, "_")
}

// normalizeText lowercases, strips punctuation and collapses whitespace.
// Shared by the lexical matcher and the key inferrer so keyword matching and
// key inference agree on token boundaries.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenize splits normalized text into tokens
func tokenize(s string) []string {
	norm := normalizeText(s)
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}
