package store

import (
	"context"
	"time"
)

// Store is the persistence interface for phrases, the review queue,
// and resumable generation sessions.
type Store interface {
	Close() error

	// Phrases. InsertPhrase returns false on a canonical-form conflict
	// within the category; a conflict is a normal outcome (a true
	// duplicate slipping past the Bloom filter), not an error.
	InsertPhrase(ctx context.Context, p Phrase) (bool, error)
	CountByCategory(ctx context.Context, category string) (int, error)
	CommonPhrases(ctx context.Context, category string, limit int) ([]string, error)
	PhrasesByCategory(ctx context.Context, category string) ([]Phrase, error)

	// Review queue, consumed by the external human-review tool. A
	// non-positive PendingReviews limit returns the whole backlog.
	AppendReview(ctx context.Context, p Phrase) error
	PendingReviews(ctx context.Context, limit int) ([]Phrase, error)
	ResolveReview(ctx context.Context, id int64, resolution string) error

	// Sessions. Saved after every batch transition so an interrupted
	// run resumes exactly where it left off.
	SaveSession(ctx context.Context, s Session) error
	LoadSession(ctx context.Context, id string) (Session, bool, error)
	LatestIncompleteSession(ctx context.Context) (Session, bool, error)
	ArchiveSession(ctx context.Context, id string) error
}

// Phrase is a stored candidate with its full score breakdown.
type Phrase struct {
	ID         int64
	Text       string
	Canonical  string
	Category   string
	Source     string
	ProviderID string
	ModelID    string
	Breakdown  map[string]float64
	Total      float64
	Decision   string
	CreatedAt  time.Time
}

// Session statuses.
const (
	SessionRunning     = "running"
	SessionCompleted   = "completed"
	SessionInterrupted = "interrupted"
)

// Batch statuses.
const (
	BatchQueued   = "queued"
	BatchInFlight = "in_flight"
	BatchStored   = "stored"
	BatchFailed   = "failed"
)

// Session is the resumable record of an in-progress run. Its JSON form
// is forward-compatible: unknown fields are ignored on load, so
// resumed sessions survive minor schema additions.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
	Batches   []Batch   `json:"batches"`
}

// Batch is one generator request's state-machine record.
type Batch struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Size       int    `json:"size"`
	Status     string `json:"status"`
	ProviderID string `json:"provider_id,omitempty"`
	ModelID    string `json:"model_id,omitempty"`
	Candidates int    `json:"candidates"`
	Accepted   int    `json:"accepted"`
	Review     int    `json:"review"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// Incomplete reports whether the session still has unfinished work.
func (s Session) Incomplete() bool {
	return s.Status == SessionRunning || s.Status == SessionInterrupted
}
