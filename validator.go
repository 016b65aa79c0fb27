package cascade

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Stage 0 rejection reasons
const (
	RejectTooShort    = "too short"
	RejectTooLong     = "too long"
	RejectBlocked     = "blocked"
	RejectRateLimited = "rate limited"
)

// validate runs the Stage 0 structural and policy checks, in order: minimum
// length, maximum length, blocklist, rate limit. It performs no I/O and has
// no side effect beyond rate-limiter state. An empty reason means the
// utterance passed.
func (e *Engine) validate(cfg *Config, utterance, sessionID string) string {
	n := utf8.RuneCountInString(utterance)
	if n < cfg.MinUtteranceLength {
		return RejectTooShort
	}
	if n > cfg.MaxUtteranceLength {
		return RejectTooLong
	}

	lower := strings.ToLower(utterance)
	for _, blocked := range cfg.Blocklist {
		if blocked == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(blocked)) {
			return RejectBlocked
		}
	}

	if cfg.RateLimitPerMinute > 0 && !e.limiter.allow(sessionID, cfg.RateLimitPerMinute) {
		return RejectRateLimited
	}

	return ""
}

// limiterEntry holds a session's token bucket and its last access time
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// sessionLimiter rate-limits cascade invocations per session using a
// token bucket per key. Idle entries are dropped during allow calls once
// they age past the expiry, so no background goroutine is needed.
type sessionLimiter struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	expiry      time.Duration
	lastCleanup time.Time
}

func newSessionLimiter() *sessionLimiter {
	return &sessionLimiter{
		entries: make(map[string]*limiterEntry),
		expiry:  10 * time.Minute,
	}
}

// allow reports whether the session may proceed under the given per-minute
// limit. Sessions without an ID share one bucket keyed by empty string.
func (s *sessionLimiter) allow(sessionID string, perMinute int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastCleanup) > s.expiry {
		for k, entry := range s.entries {
			if now.Sub(entry.lastAccess) > s.expiry {
				delete(s.entries, k)
			}
		}
		s.lastCleanup = now
	}

	entry, ok := s.entries[sessionID]
	if !ok || entry.limiter.Limit() != rate.Limit(float64(perMinute)/60.0) {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		s.entries[sessionID] = entry
	}
	entry.lastAccess = now

	return entry.limiter.Allow()
}
