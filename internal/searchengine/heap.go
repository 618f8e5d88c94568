package searchengine

import "container/heap"

// frontierItem is one pending URL in the exploration frontier, ordered by
// (priority, seq) so that equal priorities break FIFO (spec.md §4.8's
// "Priority tie-break"), satisfying Testable Property 6.
type frontierItem struct {
	url      string
	priority int
	seq      int
}

// frontierHeap is a min-heap keyed on (priority, seq): lower priority value
// explores sooner, matching spec.md §3's ExplorationState.frontier.
type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) {
	*h = append(*h, x.(frontierItem))
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// frontier wraps frontierHeap with a monotonic sequence counter so pushes
// at equal priority still resolve FIFO.
type frontier struct {
	h       frontierHeap
	nextSeq int
}

func newFrontier() *frontier {
	f := &frontier{}
	heap.Init(&f.h)
	return f
}

func (f *frontier) push(url string, priority int) {
	heap.Push(&f.h, frontierItem{url: url, priority: priority, seq: f.nextSeq})
	f.nextSeq++
}

func (f *frontier) empty() bool { return f.h.Len() == 0 }

func (f *frontier) pop() (string, bool) {
	if f.empty() {
		return "", false
	}
	item := heap.Pop(&f.h).(frontierItem)
	return item.url, true
}
