// Package queue holds the single pending batch of candidates awaiting review.
package queue

import (
	"fmt"
	"sync"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Queue is the persisted review batch. At most one batch exists; Replace
// overwrites it.
type Queue struct {
	mu      sync.Mutex
	records types.Records
}

// New creates a queue over records.
func New(records types.Records) *Queue {
	return &Queue{records: records}
}

// Load returns the pending batch, or an empty slice when there is none.
func (q *Queue) Load() ([]types.Candidate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.load()
}

// Replace stores cands as the pending batch in a single write.
func (q *Queue) Replace(cands []types.Candidate) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.records.Put(store.KeyCandidates, cands); err != nil {
		return fmt.Errorf("replacing review queue: %w", err)
	}
	return nil
}

// Take returns the pending batch and clears it.
func (q *Queue) Take() ([]types.Candidate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cands, err := q.load()
	if err != nil {
		return nil, err
	}
	if err := q.clear(); err != nil {
		return nil, err
	}
	return cands, nil
}

// Clear discards the pending batch. Clearing an empty queue succeeds.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.clear()
}

func (q *Queue) load() ([]types.Candidate, error) {
	var cands []types.Candidate
	if _, err := q.records.Get(store.KeyCandidates, &cands); err != nil {
		return nil, fmt.Errorf("loading review queue: %w", err)
	}
	if cands == nil {
		cands = []types.Candidate{}
	}
	return cands, nil
}

func (q *Queue) clear() error {
	if err := q.records.Delete(store.KeyCandidates); err != nil {
		return fmt.Errorf("clearing review queue: %w", err)
	}
	return nil
}
