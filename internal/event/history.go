package event

// eventRing is a fixed-capacity ring of recent events. Oldest entries are
// overwritten once the ring is full. Not safe for concurrent use; the bus
// guards it with its own mutex.
type eventRing struct {
	buf   []Event
	next  int // next write position
	count int
}

func newEventRing(capacity int) *eventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) append(ev Event) {
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// newestFirst visits events from newest to oldest until visit returns false.
func (r *eventRing) newestFirst(visit func(Event) bool) {
	idx := r.next - 1
	for i := 0; i < r.count; i++ {
		if idx < 0 {
			idx += len(r.buf)
		}
		if !visit(r.buf[idx]) {
			return
		}
		idx--
	}
}

func (r *eventRing) len() int { return r.count }

func (r *eventRing) clear() {
	for i := range r.buf {
		r.buf[i] = Event{}
	}
	r.next = 0
	r.count = 0
}
