package pubsub

// Scheduler defers a call to a later turn
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler
type SchedulerFunc func(fn func())

// Schedule calls f(fn)
func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// Queue is a FIFO of deferred calls run by Drain
type Queue struct {
	pending []func()
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule appends fn
func (q *Queue) Schedule(fn func()) {
	q.pending = append(q.pending, fn)
}

// Len returns the number of calls waiting
func (q *Queue) Len() int {
	return len(q.pending)
}

// Drain runs queued calls until none remain, including ones scheduled while
// draining, and returns how many ran.
func (q *Queue) Drain() int {
	ran := 0
	for len(q.pending) > 0 {
		batch := q.pending
		q.pending = nil
		for _, fn := range batch {
			fn()
			ran++
		}
	}
	return ran
}
