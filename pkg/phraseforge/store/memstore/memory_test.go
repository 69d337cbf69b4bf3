package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

func TestInsertPhraseConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.InsertPhrase(ctx, store.Phrase{
		Text: "Ice Cream", Canonical: "ice cream", Category: "food", Total: 72,
	})
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}

	// Same canonical form in the same category conflicts.
	ok, err = s.InsertPhrase(ctx, store.Phrase{
		Text: "ICE-CREAM", Canonical: "ice cream", Category: "food", Total: 65,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("duplicate canonical form should conflict")
	}

	// Same canonical form in another category does not.
	ok, err = s.InsertPhrase(ctx, store.Phrase{
		Text: "Ice Cream", Canonical: "ice cream", Category: "desserts", Total: 70,
	})
	if err != nil || !ok {
		t.Errorf("cross-category insert should succeed: ok=%v err=%v", ok, err)
	}

	count, err := s.CountByCategory(ctx, "food")
	if err != nil || count != 1 {
		t.Errorf("CountByCategory(food) = %d, want 1", count)
	}
}

func TestCommonPhrasesOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, p := range []store.Phrase{
		{Text: "low", Canonical: "low", Category: "c", Total: 45},
		{Text: "high", Canonical: "high", Category: "c", Total: 90},
		{Text: "mid", Canonical: "mid", Category: "c", Total: 70},
	} {
		if _, err := s.InsertPhrase(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.CommonPhrases(ctx, "c", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "high" || got[1] != "mid" {
		t.Errorf("CommonPhrases = %v, want [high mid]", got)
	}
}

func TestReviewQueue(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AppendReview(ctx, store.Phrase{Text: "borderline thing", Canonical: "borderline thing", Category: "c", Total: 55}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendReview(ctx, store.Phrase{Text: "other thing", Canonical: "other thing", Category: "c", Total: 48}); err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingReviews(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("PendingReviews = %d entries, want 2", len(pending))
	}

	if err := s.ResolveReview(ctx, pending[0].ID, "accept"); err != nil {
		t.Fatal(err)
	}

	pending, _ = s.PendingReviews(ctx, 10)
	if len(pending) != 1 || pending[0].Text != "other thing" {
		t.Errorf("resolved entry should leave the queue, got %v", pending)
	}
}

func TestPendingReviewsNoLimitReturnsBacklog(t *testing.T) {
	s := New()
	ctx := context.Background()

	const backlog = 120
	for i := 0; i < backlog; i++ {
		text := fmt.Sprintf("borderline %d", i)
		if err := s.AppendReview(ctx, store.Phrase{Text: text, Canonical: text, Category: "c", Total: 55}); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := s.PendingReviews(ctx, 0)
	if err != nil || len(pending) != backlog {
		t.Fatalf("PendingReviews(0) = %d entries, want %d", len(pending), backlog)
	}
	pending, err = s.PendingReviews(ctx, 10)
	if err != nil || len(pending) != 10 {
		t.Fatalf("PendingReviews(10) = %d entries, want 10", len(pending))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess := store.Session{
		ID:        "01HTEST",
		StartedAt: time.Now().UTC(),
		Status:    store.SessionRunning,
		Batches: []store.Batch{
			{ID: "b1", Category: "Movies", Size: 20, Status: store.BatchStored},
			{ID: "b2", Category: "Movies", Size: 20, Status: store.BatchInFlight},
		},
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.LatestIncompleteSession(ctx)
	if err != nil || !found {
		t.Fatalf("incomplete session should be found: %v", err)
	}
	if got.ID != sess.ID || len(got.Batches) != 2 {
		t.Errorf("loaded session = %+v", got)
	}

	sess.Status = store.SessionCompleted
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.LatestIncompleteSession(ctx); found {
		t.Error("completed session should not be reported as incomplete")
	}

	if err := s.ArchiveSession(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.LoadSession(ctx, sess.ID); found {
		t.Error("archived session should be gone")
	}
}
