package elevfsm

// WorkQueue is an unbounded FIFO of work items built on a growable ring.
// It is owned by a single elevator and is not safe for concurrent use.
type WorkQueue struct {
	rep    []WorkItem
	first  int
	length int
}

func NewWorkQueue() *WorkQueue {
	return &WorkQueue{rep: make([]WorkItem, 4)}
}

func (q *WorkQueue) Len() int { return q.length }

func (q *WorkQueue) PushBack(w WorkItem) {
	q.lazyGrow()
	q.rep[(q.first+q.length)%len(q.rep)] = w
	q.length++
}

// PushFront puts w ahead of everything already queued.
func (q *WorkQueue) PushFront(w WorkItem) {
	q.lazyGrow()
	q.first = (q.first - 1 + len(q.rep)) % len(q.rep)
	q.rep[q.first] = w
	q.length++
}

func (q *WorkQueue) PopFront() (WorkItem, bool) {
	if q.length == 0 {
		return WorkItem{}, false
	}
	w := q.rep[q.first]
	q.rep[q.first] = WorkItem{}
	q.first = (q.first + 1) % len(q.rep)
	q.length--
	return w, true
}

// Items returns the queued items front to back.
func (q *WorkQueue) Items() []WorkItem {
	out := make([]WorkItem, q.length)
	for i := range out {
		out[i] = q.rep[(q.first+i)%len(q.rep)]
	}
	return out
}

// Only grow when the ring is full.
func (q *WorkQueue) lazyGrow() {
	if q.length < len(q.rep) {
		return
	}
	rep := make([]WorkItem, 2*len(q.rep))
	n := copy(rep, q.rep[q.first:])
	copy(rep[n:], q.rep[:q.first])
	q.first = 0
	q.rep = rep
}
