package taskpool

import "container/heap"

const queueCap = 64

// queueItem is one scheduled task plus its queue bookkeeping.
//
// seq is the submission sequence number assigned once, at first enqueue.
// It breaks priority ties so equal-priority tasks run in submission
// order, and a retry re-enqueues the same item, keeping its original
// rank among its peers. The container/heap implementation requires that
// each item track its index within the heap.
type queueItem struct {
	task Task

	// seq is the monotonic submission counter value.
	seq uint64

	// entry is the dedup record the terminal result is delivered through.
	entry *entry

	// attempt counts attempts already run.
	attempt int

	// errs accumulates one error per failed attempt.
	errs error

	index int
}

// taskHeap is a max-heap: higher priority first, lower seq among equals.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*queueItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// pqueue is the task queue shared by submitters and workers. It is not
// safe for concurrent use on its own; the scheduler mutex guards it.
type pqueue struct {
	h taskHeap
}

func newPQueue() *pqueue {
	q := &pqueue{h: make(taskHeap, 0, queueCap)} // preallocate
	heap.Init(&q.h)
	return q
}

// push inserts an item in priority order.
func (q *pqueue) push(it *queueItem) {
	heap.Push(&q.h, it)
}

// pop removes and returns the highest-priority item. If the queue is
// empty, pop returns nil and false.
func (q *pqueue) pop() (*queueItem, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*queueItem), true
}

func (q *pqueue) len() int { return q.h.Len() }
