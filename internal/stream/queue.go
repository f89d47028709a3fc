package stream

import "sync"

// CommandQueue is a FIFO of outbound commands. Any goroutine may enqueue; only the
// send loop dequeues.
type CommandQueue struct {
	mu     sync.Mutex
	items  []Command
	head   int
	notify chan struct{}
}

// NewCommandQueue creates an empty queue
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{notify: make(chan struct{}, 1)}
}

// Enqueue appends cmd and wakes the sender
func (q *CommandQueue) Enqueue(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryDequeue removes the oldest command without blocking
func (q *CommandQueue) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return Command{}, false
	}
	cmd := q.items[q.head]
	q.items[q.head] = Command{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 64 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return cmd, true
}

// Len returns the number of pending commands
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear discards every pending command and returns how many were dropped
func (q *CommandQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	q.items = nil
	q.head = 0
	return n
}

// Ready is signalled after an enqueue
func (q *CommandQueue) Ready() <-chan struct{} {
	return q.notify
}
