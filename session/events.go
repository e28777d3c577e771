package session

import (
	"runtime"
	"sync"

	"github.com/smart1986/go-sessionlink/logger"
)

type Event string

// The closed set of events a client publishes. Subscribing to anything else
// is a silent no-op.
const (
	EventConnected    Event = "connected"
	EventDisconnected Event = "disconnected"
	EventKickedOut    Event = "kicked-out"
	EventForcedLogout Event = "forced-logout"
	EventMessage      Event = "message"
	EventError        Event = "error"
)

type (
	Handler func(data any)

	subscription struct {
		id int
		fn Handler
	}

	// Dispatcher maps events to ordered subscriber lists. Emit iterates a
	// snapshot, so a handler may subscribe or unsubscribe mid-delivery
	// without corrupting iteration.
	Dispatcher struct {
		mu     sync.Mutex
		nextID int
		subs   map[Event][]subscription
	}
)

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		nextID: 1,
		subs:   make(map[Event][]subscription),
	}
	for _, evt := range []Event{
		EventConnected,
		EventDisconnected,
		EventKickedOut,
		EventForcedLogout,
		EventMessage,
		EventError,
	} {
		d.subs[evt] = nil
	}
	return d
}

// On registers a handler and returns its subscription id, the handle for
// Off. Go functions are not comparable, so removal is by id. Returns 0 for
// an unknown event or nil handler.
func (d *Dispatcher) On(evt Event, fn Handler) int {
	if fn == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subs[evt]; !ok {
		logger.Warn("Dispatcher: unknown event type:", evt)
		return 0
	}
	id := d.nextID
	d.nextID++
	d.subs[evt] = append(d.subs[evt], subscription{id: id, fn: fn})
	return id
}

func (d *Dispatcher) Off(evt Event, id int) {
	if id == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	list, ok := d.subs[evt]
	if !ok {
		return
	}
	for i, sub := range list {
		if sub.id == id {
			d.subs[evt] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers to every subscriber in registration order. A panicking
// handler is logged and the remaining handlers still run.
func (d *Dispatcher) Emit(evt Event, data any) {
	d.mu.Lock()
	list, ok := d.subs[evt]
	if !ok {
		d.mu.Unlock()
		return
	}
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)
	d.mu.Unlock()

	for _, sub := range snapshot {
		invoke(evt, sub.fn, data)
	}
}

func invoke(evt Event, fn Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 2048)
			n := runtime.Stack(buf, false)
			logger.Error("Event handler panic, event:", evt, ", err:", r)
			logger.Error("Stack trace:", string(buf[:n]))
		}
	}()
	fn(data)
}
