package pipeline

import "sync"

// unitQueue is a FIFO of units waiting to be compiled. Submit may be called
// from any goroutine; RunAll drains it on one.
type unitQueue struct {
	mu    sync.Mutex
	units []Unit
}

func (q *unitQueue) push(u Unit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = append(q.units, u)
}

func (q *unitQueue) pop() (Unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.units) == 0 {
		return Unit{}, false
	}
	u := q.units[0]
	// release the circuit for GC
	q.units[0] = Unit{}
	if len(q.units) == 1 {
		q.units = q.units[:0]
	} else {
		q.units = q.units[1:]
	}
	return u, true
}

func (q *unitQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}
