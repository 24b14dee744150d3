// Package store holds the process-lifetime mutable state: the download
// history used to skip duplicates in batch runs, and provider access tokens.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// History remembers which tracks a batch run has already resolved, so the
// same song requested twice is downloaded once. A Bloom filter answers the
// common negative case cheaply; a bounded LRU holds the exact entries.
type History struct {
	mu    sync.RWMutex
	bloom *bloom.BloomFilter
	seen  *lru.Cache[string, struct{}]
}

// NewHistory creates a history bounded to capacity entries with the given
// Bloom false-positive rate.
func NewHistory(capacity int, falsePositiveRate float64) *History {
	seen, _ := lru.New[string, struct{}](capacity)
	return &History{
		bloom: bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		seen:  seen,
	}
}

// Seen reports whether the track identity was already resolved this run.
func (h *History) Seen(trackID string) bool {
	if trackID == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.bloom.TestString(trackID) {
		return false
	}
	return h.seen.Contains(trackID)
}

// Mark records a resolved track identity.
func (h *History) Mark(trackID string) {
	if trackID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bloom.AddString(trackID)
	h.seen.Add(trackID, struct{}{})
}

// Len returns the number of exact entries currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seen.Len()
}
