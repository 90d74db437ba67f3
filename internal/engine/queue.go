package engine

import (
	"sync"

	"github.com/roach88/collatz/internal/ir"
)

// MessageKind distinguishes worker reports.
type MessageKind int

const (
	// MessageCompletion reports a fully verified batch.
	MessageCompletion MessageKind = iota + 1
	// MessageCounterexample reports a failed trajectory check. Ends the run.
	MessageCounterexample
	// MessageFailure reports a worker that died (recovered panic).
	MessageFailure
)

// Message is the unit carried from workers to the coordinator.
// Exactly one payload field is set, matching Kind.
type Message struct {
	Kind           MessageKind
	Completion     ir.CompletionRecord
	Counterexample *ir.Counterexample
	Err            error
	Worker         int
}

// messageQueue is the many-producer, single-consumer completion channel.
//
// The queue is unbounded so a worker never stalls on reporting. Backlog
// growth is controlled by batch size, not by queue capacity: one message per
// batch keeps steady-state depth near zero.
//
// A buffered signal channel (size 1) lets the coordinator wait for messages
// inside a select alongside ctx.Done() and its checkpoint ticker.
type messageQueue struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	signal   chan struct{}
}

// newMessageQueue creates an empty queue.
func newMessageQueue() *messageQueue {
	return &messageQueue{
		messages: make([]Message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends a message. Safe from any goroutine.
// Returns false if the queue is closed.
func (q *messageQueue) Enqueue(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.messages = append(q.messages, m)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front message without blocking.
// Returns (Message{}, false) if the queue is empty.
func (q *messageQueue) TryDequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return Message{}, false
	}

	m := q.messages[0]

	// Nil out the slot so the backing array does not retain counterexample
	// trajectories until it is reallocated.
	q.messages[0] = Message{}

	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}

	return m, true
}

// Wait returns a channel that signals when messages may be available.
// The channel is closed when the queue is closed.
func (q *messageQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue depth.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Close rejects further messages and wakes any waiter.
func (q *messageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *messageQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
