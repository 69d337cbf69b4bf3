package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Index maintains one Bloom filter per category for cheap duplicate
// pre-emption ahead of the scoring pass. A positive test means "almost
// certainly a duplicate"; a negative test is a hard novelty guarantee.
type Index struct {
	mu      sync.Mutex
	fpRate  float64
	filters map[string]*categoryFilter
}

type categoryFilter struct {
	filter     *bloom.BloomFilter
	capacity   uint
	added      uint
	duplicates uint64
}

// NewIndex creates an empty index targeting the given false-positive
// rate (typically 0.01) for every category filter.
func NewIndex(fpRate float64) *Index {
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	return &Index{
		fpRate:  fpRate,
		filters: make(map[string]*categoryFilter),
	}
}

// Register creates the category's filter sized for its expected final
// cardinality. Registering an existing category is a no-op.
func (x *Index) Register(category string, capacity uint) {
	if capacity == 0 {
		capacity = 1
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.filters[category]; ok {
		return
	}
	x.filters[category] = &categoryFilter{
		filter:   bloom.NewWithEstimates(capacity, x.fpRate),
		capacity: capacity,
	}
}

// Seen tests the phrase's canonical form against the category filter.
// A positive result increments the category's duplicate counter.
func (x *Index) Seen(category, text string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	cf, ok := x.filters[category]
	if !ok {
		return false
	}
	if cf.filter.TestString(Canonical(text)) {
		cf.duplicates++
		return true
	}
	return false
}

// Add records an accepted phrase's canonical form. Filters only grow;
// entries are never removed.
func (x *Index) Add(category, text string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	cf, ok := x.filters[category]
	if !ok {
		cf = &categoryFilter{
			filter:   bloom.NewWithEstimates(1024, x.fpRate),
			capacity: 1024,
		}
		x.filters[category] = cf
	}
	cf.filter.AddString(Canonical(text))
	cf.added++
}

// Duplicates returns the count of positive tests for the category.
func (x *Index) Duplicates(category string) uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if cf, ok := x.filters[category]; ok {
		return cf.duplicates
	}
	return 0
}

// FalsePositiveRate returns the theoretical false-positive rate of the
// category filter at its current fill level.
func (x *Index) FalsePositiveRate(category string) float64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	cf, ok := x.filters[category]
	if !ok || cf.added == 0 {
		return 0
	}
	return bloom.EstimateFalsePositiveRate(cf.filter.Cap(), cf.filter.K(), cf.added)
}

// NeedsRebuild reports whether the category filter has drifted to
// twice its configured false-positive rate, the point where wholesale
// rebuilding at a larger capacity pays off.
func (x *Index) NeedsRebuild(category string) bool {
	return x.FalsePositiveRate(category) > 2*x.fpRate
}

// Rebuild replaces the category filter wholesale from the full phrase
// list, resized for the new capacity. Used when the measured
// false-positive rate drifts past target.
func (x *Index) Rebuild(category string, phrases []string, capacity uint) {
	if capacity < uint(len(phrases)) {
		capacity = uint(len(phrases))
	}
	if capacity == 0 {
		capacity = 1
	}

	cf := &categoryFilter{
		filter:   bloom.NewWithEstimates(capacity, x.fpRate),
		capacity: capacity,
	}
	for _, p := range phrases {
		cf.filter.AddString(Canonical(p))
		cf.added++
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.filters[category]; ok {
		cf.duplicates = old.duplicates
	}
	x.filters[category] = cf
}
