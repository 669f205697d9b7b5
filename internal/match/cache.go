package match

import (
	"sync"
	"time"

	"github.com/tivault/docmatch/internal/model"
)

// scoreKey identifies a cached score: the document's content hash plus the
// template's identity and version. A template edit bumps the version and
// naturally invalidates its entries.
type scoreKey struct {
	contentHash     string
	templateID      string
	templateVersion int
}

// scoreCache is a concurrent TTL cache for confidence scores. Writes are
// idempotent — recomputing and overwriting with an identical value is
// harmless — so a plain RWMutex around the map suffices.
type scoreCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[scoreKey]scoreEntry
	now     func() time.Time
}

type scoreEntry struct {
	score   model.ConfidenceScore
	expires time.Time
}

func newScoreCache(ttl time.Duration) *scoreCache {
	return &scoreCache{
		ttl:     ttl,
		entries: make(map[scoreKey]scoreEntry),
		now:     time.Now,
	}
}

func (c *scoreCache) get(key scoreKey) (model.ConfidenceScore, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return model.ConfidenceScore{}, false
	}
	return entry.score, true
}

func (c *scoreCache) put(key scoreKey, score model.ConfidenceScore) {
	c.mu.Lock()
	c.entries[key] = scoreEntry{score: score, expires: c.now().Add(c.ttl)}
	// Opportunistic purge keeps the map bounded without a sweeper goroutine.
	if len(c.entries) > 4096 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()
}

// fingerprintCache caches document fingerprints by content hash so repeated
// match attempts against the same content skip rebuilding.
type fingerprintCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]fingerprintEntry
	now     func() time.Time
}

type fingerprintEntry struct {
	fp      model.DocumentFingerprint
	expires time.Time
}

func newFingerprintCache(ttl time.Duration) *fingerprintCache {
	return &fingerprintCache{
		ttl:     ttl,
		entries: make(map[string]fingerprintEntry),
		now:     time.Now,
	}
}

func (c *fingerprintCache) get(contentHash string) (model.DocumentFingerprint, bool) {
	c.mu.RLock()
	entry, ok := c.entries[contentHash]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return model.DocumentFingerprint{}, false
	}
	return entry.fp, true
}

func (c *fingerprintCache) put(fp model.DocumentFingerprint) {
	c.mu.Lock()
	c.entries[fp.ContentHash] = fingerprintEntry{fp: fp, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
