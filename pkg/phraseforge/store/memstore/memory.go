package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

// Store is an in-memory implementation of store.Store for tests and
// dry runs.
type Store struct {
	mu           sync.RWMutex
	nextPhraseID int64
	nextReviewID int64
	phrases      map[int64]store.Phrase
	phraseKeys   map[string]int64 // category|canonical -> id
	reviews      map[int64]store.Phrase
	resolutions  map[int64]string
	sessions     map[string]store.Session
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextPhraseID: 1,
		nextReviewID: 1,
		phrases:      make(map[int64]store.Phrase),
		phraseKeys:   make(map[string]int64),
		reviews:      make(map[int64]store.Phrase),
		resolutions:  make(map[int64]string),
		sessions:     make(map[string]store.Session),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// InsertPhrase inserts a phrase, returning false on conflict.
func (s *Store) InsertPhrase(ctx context.Context, p store.Phrase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Category + "|" + p.Canonical
	if _, exists := s.phraseKeys[key]; exists {
		return false, nil
	}

	p.ID = s.nextPhraseID
	s.nextPhraseID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.phrases[p.ID] = copyPhrase(p)
	s.phraseKeys[key] = p.ID
	return true, nil
}

// CountByCategory returns the stored phrase count for a category.
func (s *Store) CountByCategory(ctx context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.phrases {
		if p.Category == category {
			count++
		}
	}
	return count, nil
}

// CommonPhrases returns the category's highest-scoring phrases.
func (s *Store) CommonPhrases(ctx context.Context, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 30
	}

	phrases, err := s.PhrasesByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(phrases, func(i, j int) bool {
		return phrases[i].Total > phrases[j].Total
	})
	if len(phrases) > limit {
		phrases = phrases[:limit]
	}

	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = p.Text
	}
	return out, nil
}

// PhrasesByCategory returns all phrases in a category ordered by id.
func (s *Store) PhrasesByCategory(ctx context.Context, category string) ([]store.Phrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Phrase
	for _, p := range s.phrases {
		if p.Category == category {
			out = append(out, copyPhrase(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AppendReview adds a phrase to the review queue.
func (s *Store) AppendReview(ctx context.Context, p store.Phrase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextReviewID
	s.nextReviewID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.reviews[p.ID] = copyPhrase(p)
	return nil
}

// PendingReviews returns unresolved review entries in id order. A
// non-positive limit returns the whole backlog.
func (s *Store) PendingReviews(ctx context.Context, limit int) ([]store.Phrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Phrase
	for id, p := range s.reviews {
		if s.resolutions[id] == "" {
			out = append(out, copyPhrase(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResolveReview marks a review entry resolved.
func (s *Store) ResolveReview(ctx context.Context, id int64, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutions[id] = resolution
	return nil
}

// SaveSession persists a session checkpoint.
func (s *Store) SaveSession(ctx context.Context, sess store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// LoadSession reads one session.
func (s *Store) LoadSession(ctx context.Context, id string) (store.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return copySession(sess), true, nil
	}
	return store.Session{}, false, nil
}

// LatestIncompleteSession returns the most recent unfinished session.
func (s *Store) LatestIncompleteSession(ctx context.Context) (store.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest store.Session
		found  bool
	)
	for _, sess := range s.sessions {
		if !sess.Incomplete() {
			continue
		}
		if !found || sess.StartedAt.After(latest.StartedAt) {
			latest = sess
			found = true
		}
	}
	if !found {
		return store.Session{}, false, nil
	}
	return copySession(latest), true, nil
}

// ArchiveSession removes a session record.
func (s *Store) ArchiveSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func copyPhrase(p store.Phrase) store.Phrase {
	out := p
	if p.Breakdown != nil {
		out.Breakdown = make(map[string]float64, len(p.Breakdown))
		for k, v := range p.Breakdown {
			out.Breakdown[k] = v
		}
	}
	return out
}

func copySession(s store.Session) store.Session {
	out := s
	out.Batches = make([]store.Batch, len(s.Batches))
	copy(out.Batches, s.Batches)
	return out
}
