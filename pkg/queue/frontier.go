package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/models"
)

// --- Priority Queue Implementation ---

// pqItem represents an item in the priority queue
type pqItem struct {
	workItem models.WorkItem
	seq      uint64 // Insertion order, breaks ties between equal depths
	index    int    // The index of the item in the heap (required by heap interface)
}

// priorityQueue implements heap.Interface, ordered by depth then insertion order
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].workItem.Depth != pq[j].workItem.Depth {
		return pq[i].workItem.Depth < pq[j].workItem.Depth
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds an element to the heap
func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes and returns the minimum element from the heap
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Frontier is a thread-safe, breadth-first work queue. It tracks items handed out by Pop
// until the worker calls Done, and closes itself once nothing is queued or in flight.
type Frontier struct {
	pq       priorityQueue
	mu       sync.Mutex
	cond     *sync.Cond // Condition variable to wait for items
	closed   bool
	seq      uint64
	inFlight int
	log      *logrus.Entry
}

// NewFrontier creates an empty frontier
func NewFrontier(logger *logrus.Entry) *Frontier {
	f := &Frontier{log: logger}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.pq)
	return f
}

// Push adds a work item. Returns false if the frontier is closed.
func (f *Frontier) Push(item models.WorkItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Debugf("Attempted to add item to closed frontier: %s", item.URL)
		return false
	}

	f.seq++
	heap.Push(&f.pq, &pqItem{workItem: item, seq: f.seq})
	f.cond.Signal() // Signal one waiting worker that an item is available
	return true
}

// Pop retrieves the shallowest, oldest work item, blocking while the frontier is empty but open.
// Returns false once the frontier is closed and empty. Every successful Pop must be matched by Done.
func (f *Frontier) Pop() (models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pq) == 0 {
		if f.closed {
			return models.WorkItem{}, false
		}
		f.cond.Wait()
	}

	item := heap.Pop(&f.pq).(*pqItem)
	f.inFlight++
	return item.workItem, true
}

// Done marks a popped item finished. Items it discovered must be pushed before calling Done.
// When the last in-flight item finishes with nothing queued, the frontier closes.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.inFlight == 0 && len(f.pq) == 0 && !f.closed {
		f.log.Info("Frontier drained, closing")
		f.closed = true
		f.cond.Broadcast()
	}
}

// Close stops the frontier. Queued items can still be popped; Push is rejected.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast() // Wake up ALL waiting workers so they can check the closed status
	}
}

// Drain closes the frontier and discards queued items, returning how many were dropped.
func (f *Frontier) Drain() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dropped := len(f.pq)
	f.pq = f.pq[:0]
	f.closed = true
	f.cond.Broadcast()
	return dropped
}

// Len returns the number of queued items
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pq)
}

// InFlight returns the number of popped items not yet marked Done
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
