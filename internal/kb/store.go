// Package kb maintains the knowledge base used for response suggestions:
// resolved tickets, FAQ entries, and response templates, searchable by
// embedding similarity.
package kb

import (
	"math"
	"sort"
	"sync"

	"github.com/novadesk/triage/internal/domain"
)

// Store is an in-memory vector index over knowledge base entries.
// Entries with a zero embedding are stored but never returned by Search.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.KBEntry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]domain.KBEntry)}
}

// Add inserts or replaces an entry by ID.
func (s *Store) Add(entry domain.KBEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
}

// Get returns an entry by ID.
func (s *Store) Get(id string) (domain.KBEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Delete removes an entry by ID.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Search returns entries similar to the query vector, best first.
// Matches below minScore are dropped. An empty category matches all
// entries; otherwise only entries with exactly that category are
// considered.
func (s *Store) Search(query []float64, category string, limit int, minScore float64) []domain.KBMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.KBMatch
	for _, e := range s.entries {
		if category != "" && e.Category != category {
			continue
		}
		score := cosineSimilarity(query, e.Embedding)
		if score < minScore {
			continue
		}
		matches = append(matches, domain.KBMatch{Entry: e, Score: round3(score)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// cosineSimilarity returns the similarity of two vectors clamped to
// [0, 1]. Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	return sim
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
