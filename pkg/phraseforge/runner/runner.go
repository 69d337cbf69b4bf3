// Package runner orchestrates concurrent, rate-limited generation
// sessions. A session plans batches against category quota deficits,
// executes them on a bounded worker pool, and checkpoints every batch
// transition so an interrupted run resumes without re-storing work.
package runner

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wordparty/phraseforge/pkg/phraseforge"
	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/generator"
	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
	"github.com/wordparty/phraseforge/pkg/phraseforge/score"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

// Pipeline is the scoring-and-persistence surface the runner drives,
// implemented by the engine facade.
type Pipeline interface {
	ProcessBatch(ctx context.Context, category string, res generator.Result, src score.Source) (phraseforge.BatchCounts, error)
	QuotaDeficit(ctx context.Context, category string) (int, error)
}

// Options configures a Runner.
type Options struct {
	Store     store.Store
	Pipeline  Pipeline
	Primary   generator.Provider
	Secondary generator.Provider // optional fallback, one retry per batch

	// Limits maps provider name to its request budgets. Providers
	// without an entry run unthrottled.
	Limits map[string]*Limiter

	Categories []config.Category
	Source     score.Source

	// Dedup tunes the prompt diversifier (avoid-list size, quota
	// saturation ratio). Zero values keep the defaults.
	Dedup config.Dedup

	Concurrency int
	BatchSize   int
	MaxBatches  int

	// Rand seeds the queue's priority jitter. Tests inject a fixed
	// seed.
	Rand *rand.Rand
}

// Runner executes generation sessions.
type Runner struct {
	store      store.Store
	pipe       Pipeline
	primary    generator.Provider
	secondary  generator.Provider
	limits     map[string]*Limiter
	categories map[string]config.Category
	source     score.Source
	div        *dedup.Diversifier

	concurrency int
	batchSize   int
	maxBatches  int
	rng         *rand.Rand

	mu   sync.Mutex
	sess store.Session
}

// New builds a Runner. Zero concurrency, batch size, or batch cap fall
// back to modest defaults.
func New(opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = 40
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Source == "" {
		opts.Source = score.SourceAIGenerated
	}

	cats := make(map[string]config.Category, len(opts.Categories))
	for _, c := range opts.Categories {
		cats[c.Name] = c
	}

	div := dedup.NewDiversifier()
	if opts.Dedup.MaxAvoidList > 0 {
		div.MaxAvoid = opts.Dedup.MaxAvoidList
	}
	if opts.Dedup.SaturationRatio > 0 {
		div.SaturationRatio = opts.Dedup.SaturationRatio
	}

	return &Runner{
		store:       opts.Store,
		pipe:        opts.Pipeline,
		primary:     opts.Primary,
		secondary:   opts.Secondary,
		limits:      opts.Limits,
		categories:  cats,
		source:      opts.Source,
		div:         div,
		concurrency: opts.Concurrency,
		batchSize:   opts.BatchSize,
		maxBatches:  opts.MaxBatches,
		rng:         opts.Rand,
	}
}

// Summary reports one session's outcome.
type Summary struct {
	SessionID string
	Status    string

	Batches  int
	Stored   int
	Failed   int
	Requeued int

	Candidates int
	Accepted   int
	Review     int
	Rejected   int
	Duplicates int
}

// Start plans a fresh session from current quota deficits and runs it.
// Categories whose quota is met are skipped; the rest are ordered by
// deficit with a jittered tiebreak and a bonus for high-value
// categories.
func (r *Runner) Start(ctx context.Context) (Summary, error) {
	deficits := make(map[string]int, len(r.categories))
	q := newQueue(r.rng)
	for name, cat := range r.categories {
		d, err := r.pipe.QuotaDeficit(ctx, name)
		if err != nil {
			return Summary{}, fmt.Errorf("plan session: %w", err)
		}
		deficits[name] = d
		q.push(name, d, cat.HighValue)
	}

	var batches []store.Batch
	for len(batches) < r.maxBatches {
		name, ok := q.pop()
		if !ok {
			break
		}
		batches = append(batches, store.Batch{
			ID:       ulid.Make().String(),
			Category: name,
			Size:     r.batchSize,
			Status:   store.BatchQueued,
		})
		deficits[name] -= r.batchSize
		q.push(name, deficits[name], r.categories[name].HighValue)
	}
	if len(batches) == 0 {
		return Summary{}, fmt.Errorf("plan session: %w (all quotas met)", internalerr.ErrNotFound)
	}

	r.mu.Lock()
	r.sess = store.Session{
		ID:        ulid.Make().String(),
		StartedAt: time.Now().UTC(),
		Status:    store.SessionRunning,
		Batches:   batches,
	}
	r.mu.Unlock()
	if err := r.checkpoint(); err != nil {
		return Summary{}, err
	}

	log.Printf("session %s: planned %d batches across %d categories", r.sess.ID, len(batches), len(r.categories))
	return r.run(ctx)
}

// Resume picks up the latest incomplete session. Batches left queued
// or in-flight re-run; stored and failed batches never re-run, so
// resuming an already-finished store is idempotent.
func (r *Runner) Resume(ctx context.Context) (Summary, error) {
	sess, ok, err := r.store.LatestIncompleteSession(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("resume: %w", err)
	}
	if !ok {
		return Summary{}, fmt.Errorf("resume: no incomplete session: %w", internalerr.ErrNotFound)
	}

	requeued := 0
	for i := range sess.Batches {
		if sess.Batches[i].Status == store.BatchInFlight {
			// The process died mid-batch. Results were never stored,
			// so the batch re-runs; the Bloom filter and the store's
			// unique constraint absorb any overlap.
			sess.Batches[i].Status = store.BatchQueued
			requeued++
		}
	}
	sess.Status = store.SessionRunning

	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
	if err := r.checkpoint(); err != nil {
		return Summary{}, err
	}

	log.Printf("session %s: resuming, %d batches re-queued from in-flight", sess.ID, requeued)
	return r.run(ctx)
}

// run drains the session's queued batches on the worker pool.
// Cancellation stops dispatching new batches; batches already handed
// to a worker run to completion and their results are persisted.
func (r *Runner) run(ctx context.Context) (Summary, error) {
	indices := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < r.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				r.runBatch(ctx, i)
			}
		}()
	}

	r.mu.Lock()
	total := len(r.sess.Batches)
	r.mu.Unlock()

dispatch:
	for i := 0; i < total; i++ {
		if r.batchStatus(i) != store.BatchQueued {
			continue
		}
		select {
		case indices <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indices)
	wg.Wait()

	r.mu.Lock()
	done := true
	for _, b := range r.sess.Batches {
		if b.Status == store.BatchQueued || b.Status == store.BatchInFlight {
			done = false
			break
		}
	}
	if done {
		r.sess.Status = store.SessionCompleted
	} else {
		r.sess.Status = store.SessionInterrupted
	}
	r.mu.Unlock()

	if err := r.checkpoint(); err != nil {
		return Summary{}, err
	}

	sum := r.summary()
	log.Printf("session %s: %s: %d stored, %d failed, %d pending; %d accepted, %d review, %d rejected, %d duplicates",
		sum.SessionID, sum.Status, sum.Stored, sum.Failed, sum.Requeued,
		sum.Accepted, sum.Review, sum.Rejected, sum.Duplicates)
	return sum, nil
}

// runBatch drives one batch through the state machine, checkpointing
// after every transition.
func (r *Runner) runBatch(ctx context.Context, i int) {
	r.setBatch(i, func(b *store.Batch) { b.Status = store.BatchInFlight })
	if err := r.checkpoint(); err != nil {
		log.Printf("session %s: checkpoint: %v", r.sess.ID, err)
	}

	b := r.batch(i)
	req := generator.Request{
		Category:       b.Category,
		BatchSize:      b.Size,
		PromptOverride: r.prompt(ctx, b.Category, b.Size),
	}

	res, err := r.generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Suspended, not failed: the batch re-runs on resume.
			r.setBatch(i, func(b *store.Batch) { b.Status = store.BatchQueued })
		} else {
			log.Printf("batch %s (%s): generation failed: %v", b.ID, b.Category, err)
			r.setBatch(i, func(b *store.Batch) {
				b.Status = store.BatchFailed
				b.Error = err.Error()
			})
		}
		if cerr := r.checkpoint(); cerr != nil {
			log.Printf("session %s: checkpoint: %v", r.sess.ID, cerr)
		}
		return
	}

	// The batch is in flight with results in hand; persist them even
	// if the run was cancelled meanwhile.
	counts, err := r.pipe.ProcessBatch(context.Background(), b.Category, res, r.source)
	if err != nil {
		log.Printf("batch %s (%s): processing failed: %v", b.ID, b.Category, err)
		r.setBatch(i, func(b *store.Batch) {
			b.Status = store.BatchFailed
			b.ProviderID = res.ProviderID
			b.ModelID = res.ModelID
			b.Error = err.Error()
		})
	} else {
		r.setBatch(i, func(b *store.Batch) {
			b.Status = store.BatchStored
			b.ProviderID = res.ProviderID
			b.ModelID = res.ModelID
			b.Candidates = counts.Candidates
			b.Accepted = counts.Accepted
			b.Review = counts.Review
			b.Rejected = counts.Rejected
			b.Duplicates = counts.Duplicates
		})
	}
	if err := r.checkpoint(); err != nil {
		log.Printf("session %s: checkpoint: %v", r.sess.ID, err)
	}
}

// generate calls the primary provider under its rate budget, retrying
// once on the secondary when the primary fails. The returned result
// carries the attribution of whichever provider actually answered.
func (r *Runner) generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	if err := r.acquire(ctx, r.primary); err != nil {
		return generator.Result{}, err
	}
	res, err := r.primary.Generate(ctx, req)
	if err == nil {
		return res, nil
	}
	if r.secondary == nil || ctx.Err() != nil {
		return generator.Result{}, err
	}

	log.Printf("provider %s failed, retrying on %s: %v", r.primary.Name(), r.secondary.Name(), err)
	if aerr := r.acquire(ctx, r.secondary); aerr != nil {
		return generator.Result{}, aerr
	}
	res, serr := r.secondary.Generate(ctx, req)
	if serr != nil {
		return generator.Result{}, fmt.Errorf("primary: %v; secondary: %w", err, serr)
	}
	return res, nil
}

func (r *Runner) acquire(ctx context.Context, p generator.Provider) error {
	lim, ok := r.limits[p.Name()]
	if !ok {
		return nil
	}
	return lim.Acquire(ctx)
}

// prompt builds the diversified instruction block for one batch. Store
// errors here degrade to a plain prompt rather than failing the batch.
func (r *Runner) prompt(ctx context.Context, category string, batchSize int) string {
	cat := r.categories[category]

	existing, err := r.store.CommonPhrases(ctx, category, r.div.MaxAvoid)
	if err != nil {
		existing = nil
	}
	have, err := r.store.CountByCategory(ctx, category)
	if err != nil {
		have = 0
	}

	return r.div.Prompt(category, batchSize, existing, have, cat.Target, cat.RaritySeeds)
}

func (r *Runner) checkpoint() error {
	r.mu.Lock()
	sess := r.sess
	sess.Batches = append([]store.Batch(nil), r.sess.Batches...)
	r.mu.Unlock()

	// Checkpoints persist even while the run context is being
	// cancelled; losing the final state would undo the suspension.
	return r.store.SaveSession(context.Background(), sess)
}

func (r *Runner) batch(i int) store.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.Batches[i]
}

func (r *Runner) batchStatus(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.Batches[i].Status
}

func (r *Runner) setBatch(i int, fn func(*store.Batch)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.sess.Batches[i])
}

func (r *Runner) summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{SessionID: r.sess.ID, Status: r.sess.Status, Batches: len(r.sess.Batches)}
	for _, b := range r.sess.Batches {
		switch b.Status {
		case store.BatchStored:
			s.Stored++
		case store.BatchFailed:
			s.Failed++
		case store.BatchQueued:
			s.Requeued++
		}
		s.Candidates += b.Candidates
		s.Accepted += b.Accepted
		s.Review += b.Review
		s.Rejected += b.Rejected
		s.Duplicates += b.Duplicates
	}
	return s
}
