package cascade

import (
	"crypto/sha256"
	"encoding/binary"
)

// participates decides whether an identity takes part in the cascade under
// the given config. Deny wins over allow; otherwise the identity is hashed
// deterministically into [0,100) and compared against the rollout
// percentage, so the same session always lands in the same bucket.
func participates(cfg *Config, namespace, sessionID string) bool {
	for _, t := range cfg.RolloutDenylist {
		if t == namespace {
			return false
		}
	}
	for _, t := range cfg.RolloutAllowlist {
		if t == namespace {
			return true
		}
	}

	if cfg.RolloutPercentage >= 100 {
		return true
	}

	id := sessionID
	if id == "" {
		id = namespace
	}
	return rolloutBucket(id) < cfg.RolloutPercentage
}

// rolloutBucket maps a stable identifier into [0,100)
func rolloutBucket(id string) int {
	sum := sha256.Sum256([]byte(id))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}
