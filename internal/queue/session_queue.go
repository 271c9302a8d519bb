package queue

import "sync"

// SessionQueue is the priority backlog for one session. Messages dequeue by
// priority (urgent first) and FIFO within a priority. The backing slice is
// kept in dequeue order so snapshots read the way they will drain.
//
// A SessionQueue is safe for concurrent use on its own; it may exist before
// the session registry knows the session.
type SessionQueue struct {
	mu        sync.Mutex
	sessionID string
	items     []*Message
}

// NewSessionQueue creates an empty backlog for the session.
func NewSessionQueue(sessionID string) *SessionQueue {
	return &SessionQueue{sessionID: sessionID}
}

// SessionID returns the owning session id.
func (q *SessionQueue) SessionID() string {
	return q.sessionID
}

// Enqueue inserts msg after all messages of equal or higher priority, so
// equal priorities drain first-in first-out.
func (q *SessionQueue) Enqueue(msg *Message) {
	if msg == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	i := len(q.items)
	for j, it := range q.items {
		if it.Priority < msg.Priority {
			i = j
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = msg
}

// Dequeue removes and returns the next message, or nil when empty.
func (q *SessionQueue) Dequeue() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg
}

// Peek returns a copy of the next message without removing it, or nil.
func (q *SessionQueue) Peek() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.items[0].Clone()
}

// Len returns the number of queued messages.
func (q *SessionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the backlog is empty.
func (q *SessionQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops all queued messages and returns how many were dropped.
func (q *SessionQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

// Messages returns a snapshot of the backlog in dequeue order.
func (q *SessionQueue) Messages() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Message, len(q.items))
	for i, msg := range q.items {
		out[i] = msg.Clone()
	}
	return out
}

// Prompts returns the queued prompt texts in dequeue order.
func (q *SessionQueue) Prompts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.items))
	for i, msg := range q.items {
		out[i] = msg.Prompt
	}
	return out
}
