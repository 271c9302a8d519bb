package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// Client is one connected SSE stream. Events arrive on the channel
// until the subscription context is cancelled. An empty SessionID
// matches every session; an empty Types set matches every event type.
type Client struct {
	ID        string
	SessionID string
	Types     map[event.EventType]struct{}
	Events    chan event.Event
}

func (c *Client) wants(ev event.Event) bool {
	if c.SessionID != "" && ev.SessionID != c.SessionID {
		return false
	}
	if len(c.Types) == 0 {
		return true
	}
	_, ok := c.Types[ev.Type]
	return ok
}

// Broker fans bus events out to SSE clients. It holds one bus
// subscription for its whole lifetime; per-client filtering happens at
// broadcast, so clients attach and detach without touching the bus.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]*Client
	bus     *event.Bus
	subID   string
	logger  *telemetry.Logger
}

// NewBroker creates a broker and subscribes it to the bus.
func NewBroker(bus *event.Bus, logger *telemetry.Logger) *Broker {
	b := &Broker{
		clients: make(map[string]*Client),
		bus:     bus,
		logger:  logger,
	}
	b.subID = bus.Subscribe(nil, event.CtxFunc(func(_ context.Context, ev event.Event) error {
		b.broadcast(ev)
		return nil
	}))
	return b
}

// Subscribe registers a new client. The client is removed and its
// channel closed when ctx is cancelled, typically by the HTTP request
// ending.
func (b *Broker) Subscribe(ctx context.Context, sessionID string, types []event.EventType) *Client {
	client := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Events:    make(chan event.Event, 64),
	}
	if len(types) > 0 {
		client.Types = make(map[event.EventType]struct{}, len(types))
		for _, t := range types {
			client.Types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.clients[client.ID] = client
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.clients, client.ID)
		b.mu.Unlock()
		close(client.Events)
	}()

	return client
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// broadcast delivers ev to every matching client. A client whose buffer
// is full loses the event rather than stalling the bus.
func (b *Broker) broadcast(ev event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		if !client.wants(ev) {
			continue
		}
		select {
		case client.Events <- ev:
		default:
			b.logger.Warn("Dropping event for slow SSE client",
				"client", client.ID,
				"event", string(ev.Type),
			)
		}
	}
}

// Close detaches the broker from the bus. Connected clients finish when
// their request contexts end.
func (b *Broker) Close() {
	b.bus.Unsubscribe(b.subID)
}
