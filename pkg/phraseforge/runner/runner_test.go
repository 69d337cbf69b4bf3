package runner

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wordparty/phraseforge/pkg/phraseforge"
	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/generator"
	"github.com/wordparty/phraseforge/pkg/phraseforge/score"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store/memstore"
)

// fakePipeline accepts everything and records what it processed.
type fakePipeline struct {
	mu       sync.Mutex
	deficits map[string]int
	batches  []processed
}

type processed struct {
	category   string
	providerID string
	candidates int
}

func (f *fakePipeline) QuotaDeficit(ctx context.Context, category string) (int, error) {
	return f.deficits[category], nil
}

func (f *fakePipeline) ProcessBatch(ctx context.Context, category string, res generator.Result, src score.Source) (phraseforge.BatchCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, processed{category: category, providerID: res.ProviderID, candidates: len(res.Candidates)})
	return phraseforge.BatchCounts{Candidates: len(res.Candidates), Accepted: len(res.Candidates)}, nil
}

func (f *fakePipeline) byCategory(category string) []processed {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []processed
	for _, p := range f.batches {
		if p.category == category {
			out = append(out, p)
		}
	}
	return out
}

func testCategories() []config.Category {
	return []config.Category{
		{Name: "animals", Target: 100},
		{Name: "movies", Target: 100, HighValue: true},
		{Name: "food", Target: 100},
	}
}

func staticProvider(id string) *generator.Static {
	return &generator.Static{
		ID:    id,
		Model: "test-model",
		Phrases: map[string][]string{
			"animals": {"arctic fox", "sea otter"},
			"movies":  {"jurassic park", "home alone"},
			"food":    {"ice cream", "pad thai"},
		},
	}
}

func TestStartSkipsMetQuotas(t *testing.T) {
	st := memstore.New()
	pipe := &fakePipeline{deficits: map[string]int{"animals": 10, "movies": 10, "food": 0}}

	r := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     staticProvider("primary"),
		Categories:  testCategories(),
		Concurrency: 1,
		BatchSize:   5,
		MaxBatches:  10,
		Rand:        rand.New(rand.NewSource(1)),
	})

	sum, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Status != store.SessionCompleted {
		t.Fatalf("status = %q, want completed", sum.Status)
	}
	// 10-deficit categories at batch size 5: two batches each.
	if sum.Batches != 4 || sum.Stored != 4 {
		t.Errorf("batches = %d stored = %d, want 4/4", sum.Batches, sum.Stored)
	}
	if got := pipe.byCategory("food"); len(got) != 0 {
		t.Errorf("met-quota category was processed %d times", len(got))
	}

	sess, ok, err := st.LoadSession(context.Background(), sum.SessionID)
	if err != nil || !ok {
		t.Fatalf("LoadSession: %v ok=%v", err, ok)
	}
	if sess.Status != store.SessionCompleted {
		t.Errorf("persisted status = %q", sess.Status)
	}
	for _, b := range sess.Batches {
		if b.Status != store.BatchStored || b.ProviderID != "primary" {
			t.Errorf("batch %s: status=%q provider=%q", b.ID, b.Status, b.ProviderID)
		}
	}
}

func TestStartAllQuotasMetIsError(t *testing.T) {
	pipe := &fakePipeline{deficits: map[string]int{"animals": 0, "movies": 0, "food": 0}}
	r := New(Options{
		Store:      memstore.New(),
		Pipeline:   pipe,
		Primary:    staticProvider("primary"),
		Categories: testCategories(),
	})
	if _, err := r.Start(context.Background()); err == nil {
		t.Fatal("want error when every quota is met")
	}
}

func TestResumeSkipsStoredBatches(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	// A crashed session: one batch finished, one died in flight, one
	// never started.
	sess := store.Session{
		ID:        "01TESTSESSION0000000000000",
		StartedAt: time.Now().UTC(),
		Status:    store.SessionRunning,
		Batches: []store.Batch{
			{ID: "b1", Category: "animals", Size: 5, Status: store.BatchStored, ProviderID: "primary", Candidates: 5, Accepted: 5},
			{ID: "b2", Category: "movies", Size: 5, Status: store.BatchInFlight},
			{ID: "b3", Category: "food", Size: 5, Status: store.BatchQueued},
		},
	}
	if err := st.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	pipe := &fakePipeline{deficits: map[string]int{}}
	prov := staticProvider("primary")
	r := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     prov,
		Categories:  testCategories(),
		Concurrency: 1,
	})

	sum, err := r.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if sum.Status != store.SessionCompleted {
		t.Fatalf("status = %q, want completed", sum.Status)
	}
	if prov.CallCount != 2 {
		t.Errorf("provider called %d times, want 2 (stored batch must not re-run)", prov.CallCount)
	}
	if got := pipe.byCategory("animals"); len(got) != 0 {
		t.Errorf("stored batch re-processed %d times", len(got))
	}
	// Completed totals still include the previously stored batch.
	if sum.Accepted != 5+2+2 {
		t.Errorf("accepted = %d, want 9", sum.Accepted)
	}

	// A second resume finds nothing incomplete.
	if _, err := r.Resume(ctx); err == nil {
		t.Fatal("want error resuming with no incomplete session")
	}
}

func TestProviderFallbackAttribution(t *testing.T) {
	st := memstore.New()
	pipe := &fakePipeline{deficits: map[string]int{"animals": 5}}

	primary := &generator.Static{ID: "primary", Err: errors.New("upstream 500")}
	secondary := staticProvider("secondary")

	r := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     primary,
		Secondary:   secondary,
		Categories:  []config.Category{{Name: "animals", Target: 100}},
		Concurrency: 1,
		BatchSize:   5,
		MaxBatches:  1,
	})

	sum, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Stored != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	got := pipe.byCategory("animals")
	if len(got) != 1 || got[0].providerID != "secondary" {
		t.Fatalf("processed = %+v, want one batch attributed to secondary", got)
	}

	sess, _, err := st.LoadSession(context.Background(), sum.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Batches[0].ProviderID != "secondary" {
		t.Errorf("batch provider = %q, want secondary", sess.Batches[0].ProviderID)
	}
}

func TestBothProvidersFailingMarksBatchFailed(t *testing.T) {
	st := memstore.New()
	pipe := &fakePipeline{deficits: map[string]int{"animals": 5}}

	r := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     &generator.Static{ID: "primary", Err: errors.New("down")},
		Secondary:   &generator.Static{ID: "secondary", Err: errors.New("also down")},
		Categories:  []config.Category{{Name: "animals", Target: 100}},
		Concurrency: 1,
		MaxBatches:  1,
	})

	sum, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A failed batch ends the session; it does not hang it.
	if sum.Status != store.SessionCompleted || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

// blockingProvider parks in Generate until released, so the test can
// cancel the run while a batch is in flight.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	p.started <- struct{}{}
	<-p.release
	return generator.Result{
		Candidates: []string{"arctic fox"},
		ProviderID: "blocking",
		ModelID:    "m",
	}, nil
}

func TestCancellationSuspendsAndResumeCompletes(t *testing.T) {
	st := memstore.New()
	pipe := &fakePipeline{deficits: map[string]int{"animals": 15}}
	prov := &blockingProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	r := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     prov,
		Categories:  []config.Category{{Name: "animals", Target: 100}},
		Concurrency: 1,
		BatchSize:   5,
		MaxBatches:  3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		sum Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := r.Start(ctx)
		done <- result{sum, err}
	}()

	// First batch is in flight; cancel, then let it finish.
	<-prov.started
	cancel()
	close(prov.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("Start: %v", res.err)
	}
	if res.sum.Status != store.SessionInterrupted {
		t.Fatalf("status = %q, want interrupted", res.sum.Status)
	}
	// The in-flight batch completed and persisted; the rest were never
	// dispatched.
	if res.sum.Stored != 1 || res.sum.Requeued != 2 {
		t.Fatalf("summary = %+v", res.sum)
	}
	if len(pipe.byCategory("animals")) != 1 {
		t.Fatal("in-flight batch result was not persisted")
	}

	// Resume on a fresh runner finishes the remaining batches.
	r2 := New(Options{
		Store:       st,
		Pipeline:    pipe,
		Primary:     staticProvider("primary"),
		Categories:  []config.Category{{Name: "animals", Target: 100}},
		Concurrency: 2,
	})
	sum, err := r2.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if sum.Status != store.SessionCompleted || sum.Stored != 3 {
		t.Fatalf("resumed summary = %+v", sum)
	}
	if len(pipe.byCategory("animals")) != 3 {
		t.Errorf("processed %d batches total, want 3", len(pipe.byCategory("animals")))
	}
}

func TestDiversifierConfigThreadsThrough(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	for i, p := range []struct {
		text  string
		total float64
	}{
		{"arctic fox", 90},
		{"sea otter", 80},
		{"fruit bat", 70},
	} {
		_, err := st.InsertPhrase(ctx, store.Phrase{
			ID: int64(i + 1), Text: p.text, Canonical: p.text,
			Category: "animals", Total: p.total, Decision: "accept",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	r := New(Options{
		Store:    st,
		Pipeline: &fakePipeline{deficits: map[string]int{}},
		Primary:  staticProvider("primary"),
		Categories: []config.Category{
			{Name: "animals", Target: 10, RaritySeeds: []string{"desert reptiles", "deep sea fish"}},
		},
		Dedup: config.Dedup{MaxAvoidList: 2, SaturationRatio: 0.1},
	})

	if r.div.MaxAvoid != 2 || r.div.SaturationRatio != 0.1 {
		t.Fatalf("diversifier = max_avoid %d ratio %v, want config values 2/0.1",
			r.div.MaxAvoid, r.div.SaturationRatio)
	}

	prompt := r.prompt(ctx, "animals", 5)
	if !strings.Contains(prompt, "arctic fox") || !strings.Contains(prompt, "sea otter") {
		t.Errorf("avoid list missing the most common phrases:\n%s", prompt)
	}
	if strings.Contains(prompt, "fruit bat") {
		t.Errorf("avoid list exceeds configured cap of 2:\n%s", prompt)
	}
	// 3 of 10 stored is past the configured 0.1 saturation ratio, so
	// rarity seeds must appear.
	if !strings.Contains(prompt, "desert reptiles") {
		t.Errorf("saturated prompt missing rarity seeds:\n%s", prompt)
	}
}

func TestQueueOrdersByDeficitAndBonus(t *testing.T) {
	q := newQueue(rand.New(rand.NewSource(42)))
	q.push("big", 100, false)
	q.push("boosted", 50, true) // 50 + 25 bonus, still under 100
	q.push("small", 10, false)
	q.push("met", 0, false)

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3 (met quota skipped)", q.len())
	}
	want := []string{"big", "boosted", "small"}
	for _, w := range want {
		got, ok := q.pop()
		if !ok || got != w {
			t.Fatalf("pop = %q ok=%v, want %q", got, ok, w)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop on empty queue")
	}
}

func TestLimiterDailyBudget(t *testing.T) {
	cur := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	l := NewLimiter(0, 2)
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if got := l.DailyRemaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}

	// Budget exhausted: the third acquire suspends until the day rolls
	// over, which here means until the context gives up.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("exhausted acquire = %v, want deadline exceeded", err)
	}

	mu.Lock()
	cur = cur.Add(24 * time.Hour)
	mu.Unlock()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after rollover: %v", err)
	}
}

func TestLimiterSpacesRequests(t *testing.T) {
	// 600/min is 10/s with no burst: five acquires need at least four
	// 100ms gaps.
	l := NewLimiter(600, 0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Fatalf("five acquires took %v, want >= ~400ms", elapsed)
	}
}
