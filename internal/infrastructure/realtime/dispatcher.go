package realtime

import (
	"encoding/json"
	"sync"
)

// Handler consumes the decoded data of one inbound event. Handlers run
// strictly sequentially on the session read loop and must not block.
type Handler func(data json.RawMessage)

// Dispatcher routes inbound events to explicitly registered subscribers.
// Subscription lifetime is the caller's responsibility: subscribe on create,
// unsubscribe on teardown. There is no process-wide bus.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]*Subscription // event name -> subscribers in registration order
}

// Subscription is the handle returned by Subscribe; Unsubscribe detaches it.
type Subscription struct {
	id      uint64
	event   string
	handler Handler
	owner   *Dispatcher
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]*Subscription)}
}

// Subscribe registers h for the named event and returns its handle.
func (d *Dispatcher) Subscribe(event string, h Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	sub := &Subscription{id: d.nextID, event: event, handler: h, owner: d}
	d.subs[event] = append(d.subs[event], sub)
	return sub
}

// Unsubscribe detaches the subscription. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.owner == nil {
		return
	}
	d := s.owner
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.subs[s.event]
	for i, cur := range list {
		if cur.id == s.id {
			d.subs[s.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	s.owner = nil
}

// Dispatch delivers one event to every subscriber in registration order.
// It is called from the session read loop, which serializes all delivery.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	d.mu.RLock()
	list := d.subs[event]
	snapshot := make([]*Subscription, len(list))
	copy(snapshot, list)
	d.mu.RUnlock()

	for _, sub := range snapshot {
		sub.handler(data)
	}
}
