// Package phraseforge is the phrase generation quality pipeline: it
// evaluates candidate phrases against the lookup corpora, aggregates
// component scores under a source-selected weight profile, pre-empts
// duplicates with per-category Bloom filters, and persists accepted
// phrases.
package phraseforge

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/generator"
	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
	"github.com/wordparty/phraseforge/pkg/phraseforge/lookup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/pmi"
	"github.com/wordparty/phraseforge/pkg/phraseforge/score"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

// Engine is the scoring and persistence pipeline facade.
type Engine struct {
	entities   lookup.Entities
	cooc       lookup.Cooccurrence
	concrete   lookup.Concreteness
	prominence lookup.Prominence
	dict       *lookup.Dictionary

	distinct      *score.Distinctiveness
	describe      *score.Describability
	profiles      score.Profiles
	thresholds    score.Thresholds
	allowDegraded bool

	categories map[string]config.Category
	dedup      *dedup.Index
	store      store.Store

	mu    sync.Mutex
	catMu map[string]*sync.Mutex
}

// Options configures an Engine.
type Options struct {
	Entities     lookup.Entities
	Cooccurrence lookup.Cooccurrence
	Concreteness lookup.Concreteness
	Prominence   lookup.Prominence // optional
	Dictionary   *lookup.Dictionary

	Scoring    config.Scoring
	Categories []config.Category
	PMIBands   pmi.Bands

	Dedup *dedup.Index
	Store store.Store
}

// New creates an Engine and registers each category's Bloom filter at
// its quota capacity.
func New(opts Options) *Engine {
	bands := opts.PMIBands
	if bands == (pmi.Bands{}) {
		bands = pmi.DefaultBands()
	}

	idx := opts.Dedup
	if idx == nil {
		idx = dedup.NewIndex(0.01)
	}

	e := &Engine{
		entities:      opts.Entities,
		cooc:          opts.Cooccurrence,
		concrete:      opts.Concreteness,
		prominence:    opts.Prominence,
		dict:          opts.Dictionary,
		distinct:      score.NewDistinctiveness(bands),
		describe:      score.NewDescribability(opts.Scoring.WeakHeadNouns),
		profiles:      ProfilesFromConfig(opts.Scoring),
		thresholds:    score.Thresholds{Accept: opts.Scoring.AcceptThreshold, Reject: opts.Scoring.RejectThreshold},
		allowDegraded: opts.Scoring.AllowDegradedDecisions,
		categories:    make(map[string]config.Category, len(opts.Categories)),
		dedup:         idx,
		store:         opts.Store,
		catMu:         make(map[string]*sync.Mutex, len(opts.Categories)),
	}
	for _, cat := range opts.Categories {
		e.categories[cat.Name] = cat
		e.dedup.Register(cat.Name, uint(cat.Target))
		e.catMu[cat.Name] = &sync.Mutex{}
	}
	return e
}

// ProfilesFromConfig converts the YAML weight profiles into the closed
// profile set.
func ProfilesFromConfig(s config.Scoring) score.Profiles {
	conv := func(w config.ProfileWeights) score.Profile {
		return score.Profile{
			Distinctiveness:      w.Distinctiveness,
			Describability:       w.Describability,
			LegacyHeuristic:      w.LegacyHeuristic,
			CategoryBoost:        w.CategoryBoost,
			CulturalValidation:   w.CulturalValidation,
			StructuralNotability: w.StructuralNotability,
		}
	}
	return score.Profiles{
		CuratedExtraction: conv(s.Profiles.CuratedExtraction),
		AIGenerated:       conv(s.Profiles.AIGenerated),
		Manual:            conv(s.Profiles.Manual),
	}
}

// Close shuts down the engine's store and lookup processors.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{e.entities, e.cooc, e.concrete} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.prominence != nil {
		if err := e.prominence.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Candidate is one phrase flowing into the pipeline.
type Candidate struct {
	Text       string
	Category   string
	Source     score.Source
	ProviderID string
	ModelID    string
}

// Scored is a fully evaluated candidate.
type Scored struct {
	Candidate
	Canonical string
	Breakdown score.Breakdown
}

// Evaluate scores a candidate. Unavailable lookup processors
// contribute zero and flag the breakdown as degraded; degraded phrases
// route to review rather than being silently auto-accepted or
// auto-rejected.
func (e *Engine) Evaluate(ctx context.Context, cand Candidate) (Scored, error) {
	text := strings.TrimSpace(cand.Text)
	if text == "" {
		return Scored{}, fmt.Errorf("%w: empty phrase", internalerr.ErrInvalidInput)
	}
	cand.Text = text

	canon := dedup.Canonical(text)
	multiWord := strings.Contains(canon, " ")
	profile := e.profiles.For(cand.Source)

	var b score.Breakdown

	// Distinctiveness inputs.
	var dsig score.DistinctSignals
	entSig := lookup.EntitySignal{}
	if e.entities != nil {
		var err error
		entSig, err = e.entities.Lookup(ctx, text)
		if err != nil {
			b.Degraded = true
			entSig = lookup.EntitySignal{}
		}
		dsig.EntityExact = entSig.Class == lookup.EntityExact
		dsig.EntityAlias = entSig.Class == lookup.EntityAlias
	} else {
		b.Degraded = true
	}
	if multiWord {
		if e.cooc != nil {
			if v, ok, err := e.cooc.PhrasePMI(ctx, canon); err != nil {
				b.Degraded = true
			} else {
				dsig.PMI, dsig.PMIKnown = v, ok
			}
		} else {
			b.Degraded = true
		}
		dsig.InDictionary = e.dict.Contains(canon)
	}
	b.Distinctiveness, b.DistinctivenessBand = e.distinct.Score(dsig)

	// Describability inputs.
	rating, ratingKnown, degraded := e.concretenessFor(ctx, canon)
	if degraded {
		b.Degraded = true
	}
	b.Describability = e.describe.Score(score.DescribeSignals{
		Concreteness:      rating,
		ConcretenessKnown: ratingKnown,
		ProperNoun:        entSig.Class != lookup.EntityNone || score.ProperNounShape(text),
		HeadWord:          dedup.HeadWord(canon),
	})

	b.LegacyHeuristic = score.LegacyHeuristic(text)

	if cat, ok := e.categories[cand.Category]; ok {
		b.CategoryBoost = cat.Boost
	}

	// Cultural validation: recent pageview prominence, log-scaled.
	if e.prominence != nil {
		if views, ok, err := e.prominence.Pageviews(ctx, canon); err != nil {
			b.Degraded = true
		} else if ok {
			b.CulturalValidation = engagementSignal(views) * profile.CulturalValidation
		}
	}

	// Structural notability: sitelink count as a popularity proxy,
	// only weighted under the curated profile.
	if profile.StructuralNotability > 0 && entSig.Class != lookup.EntityNone {
		b.StructuralNotability = notabilitySignal(entSig.Sitelinks) * profile.StructuralNotability
	}

	b = score.Finalize(b, profile, e.thresholds, e.allowDegraded)

	return Scored{Candidate: cand, Canonical: canon, Breakdown: b}, nil
}

// concretenessFor rates the full phrase when the corpus has it,
// otherwise averages the known component-word ratings.
func (e *Engine) concretenessFor(ctx context.Context, canon string) (rating float64, known bool, degraded bool) {
	if e.concrete == nil {
		return 0, false, true
	}
	if v, ok, err := e.concrete.Rating(ctx, canon); err != nil {
		return 0, false, true
	} else if ok {
		return v, true, false
	}

	sum, n := 0.0, 0
	for _, w := range strings.Fields(canon) {
		v, ok, err := e.concrete.Rating(ctx, w)
		if err != nil {
			return 0, false, true
		}
		if ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false, false
	}
	return sum / float64(n), true, false
}

// engagementSignal maps recent pageviews onto [0,1]. A million monthly
// views saturates the signal.
func engagementSignal(views int64) float64 {
	if views <= 0 {
		return 0
	}
	return math.Min(1, math.Log10(float64(views)+1)/6)
}

// notabilitySignal maps entity sitelink counts onto [0,1]. Fifty
// language editions saturates the signal.
func notabilitySignal(sitelinks int) float64 {
	if sitelinks <= 0 {
		return 0
	}
	return math.Min(1, float64(sitelinks)/50)
}

// Outcome is the result of committing a scored candidate.
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeDuplicate
	OutcomeReview
	OutcomeRejected
)

// Commit routes a scored candidate: accepted phrases are persisted and
// added to the category Bloom filter, review phrases join the review
// queue, rejections are discarded. An insert conflict is a normal
// duplicate outcome. Workers touching the same category serialize
// here.
func (e *Engine) Commit(ctx context.Context, s Scored) (Outcome, error) {
	p := store.Phrase{
		Text:       s.Text,
		Canonical:  s.Canonical,
		Category:   s.Category,
		Source:     string(s.Source),
		ProviderID: s.ProviderID,
		ModelID:    s.ModelID,
		Breakdown:  s.Breakdown.Map(),
		Total:      s.Breakdown.Total,
		Decision:   string(s.Breakdown.Decision),
	}

	switch s.Breakdown.Decision {
	case score.DecisionAccept:
		mu := e.categoryLock(s.Category)
		mu.Lock()
		defer mu.Unlock()

		inserted, err := e.store.InsertPhrase(ctx, p)
		if err != nil {
			return OutcomeRejected, err
		}
		if !inserted {
			return OutcomeDuplicate, nil
		}
		e.dedup.Add(s.Category, s.Canonical)
		return OutcomeStored, nil

	case score.DecisionReview:
		if err := e.store.AppendReview(ctx, p); err != nil {
			return OutcomeRejected, err
		}
		return OutcomeReview, nil

	default:
		return OutcomeRejected, nil
	}
}

func (e *Engine) categoryLock(category string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.catMu[category]
	if !ok {
		mu = &sync.Mutex{}
		e.catMu[category] = mu
	}
	return mu
}

// BatchCounts tallies one batch's outcomes.
type BatchCounts struct {
	Candidates int
	Accepted   int
	Review     int
	Rejected   int
	Duplicates int
}

// ProcessBatch runs a generator result through duplicate pre-emption,
// scoring, and persistence. The Bloom test runs before the expensive
// scoring pass.
func (e *Engine) ProcessBatch(ctx context.Context, category string, res generator.Result, src score.Source) (BatchCounts, error) {
	var counts BatchCounts

	for _, text := range res.Candidates {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		counts.Candidates++

		if e.dedup.Seen(category, text) {
			counts.Duplicates++
			continue
		}

		scored, err := e.Evaluate(ctx, Candidate{
			Text:       text,
			Category:   category,
			Source:     src,
			ProviderID: res.ProviderID,
			ModelID:    res.ModelID,
		})
		if err != nil {
			return counts, err
		}

		outcome, err := e.Commit(ctx, scored)
		if err != nil {
			return counts, err
		}
		switch outcome {
		case OutcomeStored:
			counts.Accepted++
		case OutcomeDuplicate:
			counts.Duplicates++
		case OutcomeReview:
			counts.Review++
		case OutcomeRejected:
			counts.Rejected++
		}
	}

	// A filter that overfilled past its target rate would inflate the
	// duplicate count with false positives; regrow it from the store.
	if e.dedup.NeedsRebuild(category) {
		if err := e.rebuildFilter(ctx, category); err != nil {
			return counts, err
		}
	}

	return counts, nil
}

func (e *Engine) rebuildFilter(ctx context.Context, category string) error {
	phrases, err := e.store.PhrasesByCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("rebuild filter for %s: %w", category, err)
	}
	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Canonical
	}
	capacity := uint(2 * len(texts))
	if cat, ok := e.categories[category]; ok && uint(cat.Target) > capacity {
		capacity = uint(cat.Target)
	}
	e.dedup.Rebuild(category, texts, capacity)
	return nil
}

// WarmFilters rebuilds every category's Bloom filter from stored
// phrases, used at process start so restarts keep dedup soundness.
func (e *Engine) WarmFilters(ctx context.Context) error {
	for name, cat := range e.categories {
		phrases, err := e.store.PhrasesByCategory(ctx, name)
		if err != nil {
			return fmt.Errorf("warm filters for %s: %w", name, err)
		}
		texts := make([]string, len(phrases))
		for i, p := range phrases {
			texts[i] = p.Canonical
		}
		e.dedup.Rebuild(name, texts, uint(cat.Target))
	}
	return nil
}

// RescoreSummary reports an explicit rescoring pass over the review
// queue after a threshold change.
type RescoreSummary struct {
	Examined int
	Promoted int
	Rejected int
	Kept     int
}

// Rescore re-derives decisions for pending review-queue entries from
// their stored totals under the current thresholds. Threshold changes
// require this explicit pass; they are never reinterpreted implicitly.
func (e *Engine) Rescore(ctx context.Context) (RescoreSummary, error) {
	var summary RescoreSummary

	pending, err := e.store.PendingReviews(ctx, 0)
	if err != nil {
		return summary, err
	}

	for _, p := range pending {
		summary.Examined++
		switch e.thresholds.Decide(p.Total) {
		case score.DecisionAccept:
			p.Decision = string(score.DecisionAccept)
			mu := e.categoryLock(p.Category)
			mu.Lock()
			inserted, err := e.store.InsertPhrase(ctx, p)
			if err != nil {
				mu.Unlock()
				return summary, err
			}
			if inserted {
				e.dedup.Add(p.Category, p.Canonical)
			}
			mu.Unlock()
			if err := e.store.ResolveReview(ctx, p.ID, string(score.DecisionAccept)); err != nil {
				return summary, err
			}
			summary.Promoted++
		case score.DecisionReject:
			if err := e.store.ResolveReview(ctx, p.ID, string(score.DecisionReject)); err != nil {
				return summary, err
			}
			summary.Rejected++
		default:
			summary.Kept++
		}
	}

	return summary, nil
}

// QuotaDeficit returns how many phrases a category still needs.
func (e *Engine) QuotaDeficit(ctx context.Context, category string) (int, error) {
	cat, ok := e.categories[category]
	if !ok {
		return 0, fmt.Errorf("unknown category %q", category)
	}
	have, err := e.store.CountByCategory(ctx, category)
	if err != nil {
		return 0, err
	}
	deficit := cat.Target - have
	if deficit < 0 {
		deficit = 0
	}
	return deficit, nil
}

// Store exposes the underlying store for orchestration.
func (e *Engine) Store() store.Store { return e.store }

// Dedup exposes the duplicate pre-emption index.
func (e *Engine) Dedup() *dedup.Index { return e.dedup }

// Categories returns the configured category set.
func (e *Engine) Categories() []config.Category {
	out := make([]config.Category, 0, len(e.categories))
	for _, cat := range e.categories {
		out = append(out, cat)
	}
	return out
}
