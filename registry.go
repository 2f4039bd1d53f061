package taskpool

// entry is the dedup record for one in-flight task ID: the channels
// every Submit of that ID shares. It exists from the first accepted
// Submit until the terminal result is delivered.
type entry struct {
	result   chan Result
	progress chan int
}

// registry tracks in-flight task IDs. Removal happens in the same
// critical section as the terminal delivery, so a racing Submit either
// coalesces onto these channels before delivery or starts a fresh task
// after it; it can never observe a delivered-but-present ID.
//
// Callers must hold the scheduler mutex.
type registry struct {
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) lookup(id string) (*entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) insert(id string) *entry {
	e := &entry{
		result:   make(chan Result, 1),
		progress: make(chan int, progressBufSize),
	}
	r.entries[id] = e
	return e
}

func (r *registry) remove(id string) {
	delete(r.entries, id)
}

func (r *registry) len() int { return len(r.entries) }
