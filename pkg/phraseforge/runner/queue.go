package runner

import (
	"container/heap"
	"math/rand"
)

// highValueBonus keeps gameplay-critical categories ahead of larger
// but ordinary deficits.
const highValueBonus = 25

// jitterSpan bounds the random tiebreak added to each priority so
// equal-deficit categories do not always drain in config order.
const jitterSpan = 5

// queue orders categories by quota deficit, highest first. Categories
// whose quota is already met never enter the queue.
type queue struct {
	items queueItems
	rng   *rand.Rand
}

type queueItem struct {
	category string
	priority float64
	index    int
}

func newQueue(rng *rand.Rand) *queue {
	q := &queue{rng: rng}
	heap.Init(&q.items)
	return q
}

func (q *queue) push(category string, deficit int, highValue bool) {
	if deficit <= 0 {
		return
	}
	p := float64(deficit)
	if highValue {
		p += highValueBonus
	}
	if q.rng != nil {
		p += q.rng.Float64() * jitterSpan
	}
	heap.Push(&q.items, &queueItem{category: category, priority: p})
}

func (q *queue) pop() (string, bool) {
	if q.items.Len() == 0 {
		return "", false
	}
	it := heap.Pop(&q.items).(*queueItem)
	return it.category, true
}

func (q *queue) len() int { return q.items.Len() }

type queueItems []*queueItem

func (h queueItems) Len() int           { return len(h) }
func (h queueItems) Less(i, j int) bool { return h[i].priority > h[j].priority }
func (h queueItems) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *queueItems) Push(x any)        { it := x.(*queueItem); it.index = len(*h); *h = append(*h, it) }
func (h *queueItems) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
