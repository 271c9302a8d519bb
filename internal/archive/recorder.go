package archive

import (
	"context"

	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
)

// Recorder copies every bus event into a Store. It registers as a
// context-aware callback, so a write failure is contained by the bus
// like any other handler error.
type Recorder struct {
	bus   *event.Bus
	subID string
}

// NewRecorder subscribes store to every event on bus.
func NewRecorder(bus *event.Bus, store Store) *Recorder {
	r := &Recorder{bus: bus}
	r.subID = bus.Subscribe(nil, event.CtxFunc(func(_ context.Context, ev event.Event) error {
		if err := store.SaveEvent(ev); err != nil {
			return errors.Wrap(errors.CodeArchiveError, "failed to archive event", err)
		}
		return nil
	}))
	return r
}

// Close detaches the recorder from the bus. The store stays open.
func (r *Recorder) Close() {
	r.bus.Unsubscribe(r.subID)
}
