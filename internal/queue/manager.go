package queue

import (
	"context"
	"sort"
	"sync"
)

// Processor executes one turn with a prompt and its attachments.
type Processor func(ctx context.Context, prompt string, attachments []string) (string, error)

// QueueStatus describes one session's backlog and busy flag.
type QueueStatus struct {
	SessionID     string   `json:"session_id"`
	Busy          bool     `json:"busy"`
	QueuedCount   int      `json:"queued_count"`
	QueuedPrompts []string `json:"queued_prompts"`
}

// Manager owns the per-session backlogs and the busy flags that give each
// session mutual exclusion for turns. Queues are created on first use and
// may outlive or precede the session registry's view of a session.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*SessionQueue
	busy   map[string]bool
}

// NewManager creates an empty queue manager.
func NewManager() *Manager {
	return &Manager{
		queues: make(map[string]*SessionQueue),
		busy:   make(map[string]bool),
	}
}

// queueLocked returns the session's queue, creating it if needed.
// Caller holds m.mu.
func (m *Manager) queueLocked(sessionID string) *SessionQueue {
	q, ok := m.queues[sessionID]
	if !ok {
		q = NewSessionQueue(sessionID)
		m.queues[sessionID] = q
	}
	return q
}

// Acquire atomically flips the session's busy flag from false to true.
// Returns false when the session is already busy.
func (m *Manager) Acquire(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy[sessionID] {
		return false
	}
	m.busy[sessionID] = true
	return true
}

// Release clears the session's busy flag. Releasing an idle session is a
// no-op.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, sessionID)
}

// IsBusy reports whether the session currently holds the turn lock.
func (m *Manager) IsBusy(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[sessionID]
}

// AnyBusy reports whether any session is mid-turn.
func (m *Manager) AnyBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.busy) > 0
}

// BusySessions returns the ids of all busy sessions, sorted.
func (m *Manager) BusySessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.busy))
	for id := range m.busy {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Enqueue adds a prompt to the session's backlog unconditionally and
// returns the queued message.
func (m *Manager) Enqueue(sessionID, prompt string, opts ...MessageOption) *Message {
	msg := NewMessage(sessionID, prompt, opts...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueLocked(sessionID).Enqueue(msg)
	return msg
}

// EnqueueIfBusy queues the prompt only when the session is busy. Returns
// (false, nil) when the session is idle — the caller should run the prompt
// inline — or (true, message) when it was queued. The busy check and the
// enqueue are a single atomic step.
func (m *Manager) EnqueueIfBusy(sessionID, prompt string, opts ...MessageOption) (bool, *Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.busy[sessionID] {
		return false, nil
	}
	msg := NewMessage(sessionID, prompt, opts...)
	m.queueLocked(sessionID).Enqueue(msg)
	return true, msg
}

// Dequeue removes and returns the session's next message, or nil when the
// session has no queue or the queue is empty.
func (m *Manager) Dequeue(sessionID string) *Message {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		return nil
	}
	return q.Dequeue()
}

// Peek returns a copy of the session's next message without removing it,
// or nil.
func (m *Manager) Peek(sessionID string) *Message {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		return nil
	}
	return q.Peek()
}

// QueuedCount returns the session's backlog depth.
func (m *Manager) QueuedCount(sessionID string) int {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		return 0
	}
	return q.Len()
}

// QueuedPrompts returns the session's queued prompt texts in dequeue order.
func (m *Manager) QueuedPrompts(sessionID string) []string {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		return nil
	}
	return q.Prompts()
}

// ClearQueue drops the session's backlog and returns how many messages were
// dropped. The busy flag is untouched.
func (m *Manager) ClearQueue(sessionID string) int {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		return 0
	}
	return q.Clear()
}

// Remove tears down all queue state for a deleted session: the backlog and
// the busy flag.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, sessionID)
	delete(m.busy, sessionID)
}

// Status reports the session's busy flag and backlog.
func (m *Manager) Status(sessionID string) QueueStatus {
	m.mu.Lock()
	busy := m.busy[sessionID]
	q := m.queues[sessionID]
	m.mu.Unlock()

	st := QueueStatus{SessionID: sessionID, Busy: busy, QueuedPrompts: []string{}}
	if q != nil {
		st.QueuedCount = q.Len()
		st.QueuedPrompts = q.Prompts()
	}
	return st
}

// AllStatus reports every session that has a queue or a busy flag.
func (m *Manager) AllStatus() map[string]QueueStatus {
	m.mu.Lock()
	ids := make(map[string]struct{}, len(m.queues)+len(m.busy))
	for id := range m.queues {
		ids[id] = struct{}{}
	}
	for id := range m.busy {
		ids[id] = struct{}{}
	}
	m.mu.Unlock()

	out := make(map[string]QueueStatus, len(ids))
	for id := range ids {
		out[id] = m.Status(id)
	}
	return out
}

// Overview aggregates AllStatus into one system-wide view.
type Overview struct {
	BusySessions []string               `json:"busy_sessions"`
	TotalQueued  int                    `json:"total_queued"`
	Sessions     map[string]QueueStatus `json:"sessions"`
}

// Overview reports the busy sessions, the backlog total, and each
// session's status in one snapshot.
func (m *Manager) Overview() Overview {
	all := m.AllStatus()
	ov := Overview{BusySessions: []string{}, Sessions: all}
	for id, st := range all {
		if st.Busy {
			ov.BusySessions = append(ov.BusySessions, id)
		}
		ov.TotalQueued += st.QueuedCount
	}
	sort.Strings(ov.BusySessions)
	return ov
}

// claimOrEnqueue atomically either takes the busy flag (returning nil) or
// queues the prompt (returning the message). This closes the race between
// checking the flag and acting on the answer.
func (m *Manager) claimOrEnqueue(sessionID, prompt string, opts ...MessageOption) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy[sessionID] {
		msg := NewMessage(sessionID, prompt, opts...)
		m.queueLocked(sessionID).Enqueue(msg)
		return msg
	}
	m.busy[sessionID] = true
	return nil
}

// RunWithQueue runs fn under the session's turn lock. If the session is
// busy the prompt is queued instead and (_, message, nil) is returned with
// no result. Otherwise the lock is held for the duration of fn and released
// on every path. RunWithQueue never drains the backlog; that is the
// caller's job, typically from inside fn while the lock is still held.
func (m *Manager) RunWithQueue(ctx context.Context, sessionID, prompt string, attachments []string, fn Processor, opts ...MessageOption) (string, *Message, error) {
	queueOpts := append([]MessageOption{WithAttachments(attachments...)}, opts...)
	if msg := m.claimOrEnqueue(sessionID, prompt, queueOpts...); msg != nil {
		return "", msg, nil
	}
	defer m.Release(sessionID)

	result, err := fn(ctx, prompt, attachments)
	return result, nil, err
}
