// Package stream provides the per-session publish/subscribe hub: an
// ordered, append-only event log with live fan-out and catch-up replay.
package stream

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/forgebuild/foreman/internal/events"
)

// ErrUnknownSession is returned when the session has never been registered
// or has already been purged.
var ErrUnknownSession = errors.New("unknown session")

// Callback receives one event per invocation, in append order. index is
// the event's position in the log. Callbacks run on the publisher's
// goroutine (or the subscriber's, for backlog delivery) and must not block.
type Callback func(index int, ev events.StreamEvent)

// Hub multicasts session events. One sessionLog per registered session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
}

type sessionLog struct {
	mu     sync.RWMutex
	log    []events.StreamEvent
	subs   map[string]Callback
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*sessionLog)}
}

// Register creates the event log for a new session. Registering an existing
// session is a no-op.
func (h *Hub) Register(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = &sessionLog{subs: make(map[string]Callback)}
	}
}

// Publish appends an event to the session's log and delivers it to every
// live subscriber in append order. Publishing after a session_end event is
// dropped: the terminal event is authoritative and always last.
func (h *Hub) Publish(sessionID string, ev events.StreamEvent) error {
	h.mu.RLock()
	sl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}

	sl.mu.Lock()
	if sl.closed {
		sl.mu.Unlock()
		return nil
	}
	index := len(sl.log)
	sl.log = append(sl.log, ev)
	if ev.IsTerminal() {
		sl.closed = true
	}
	// Snapshot subscribers so a callback calling Unsubscribe cannot
	// deadlock against the log lock.
	subs := make([]Callback, 0, len(sl.subs))
	for _, cb := range sl.subs {
		subs = append(subs, cb)
	}
	sl.mu.Unlock()

	for _, cb := range subs {
		cb(index, ev)
	}
	return nil
}

// Replay returns a snapshot of the session's full event log for catch-up.
func (h *Hub) Replay(sessionID string) ([]events.StreamEvent, error) {
	h.mu.RLock()
	sl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	sl.mu.RLock()
	defer sl.mu.RUnlock()
	snapshot := make([]events.StreamEvent, len(sl.log))
	copy(snapshot, sl.log)
	return snapshot, nil
}

// EventsAfter returns the log entries with index > after. Pass -1 for the
// full log.
func (h *Hub) EventsAfter(sessionID string, after int) ([]events.StreamEvent, error) {
	all, err := h.Replay(sessionID)
	if err != nil {
		return nil, err
	}
	if after < -1 {
		after = -1
	}
	if after+1 >= len(all) {
		return nil, nil
	}
	return all[after+1:], nil
}

// Subscribe registers a callback for events with index greater than after
// and returns an unsubscribe function. Pass -1 for the full log. Entries
// already appended past after are delivered synchronously before Subscribe
// returns; backlog delivery and registration share one critical section, so
// every index past after reaches the callback exactly once and in order.
// The callback must not call back into the hub while the backlog is being
// delivered. The unsubscribe function is idempotent and safe to call after
// the session has been purged.
func (h *Hub) Subscribe(sessionID string, after int, cb Callback) (func(), error) {
	h.mu.RLock()
	sl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	if after < -1 {
		after = -1
	}

	id := uuid.New().String()
	sl.mu.Lock()
	for i := after + 1; i < len(sl.log); i++ {
		cb(i, sl.log[i])
	}
	sl.subs[id] = cb
	sl.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Lock()
			delete(sl.subs, id)
			sl.mu.Unlock()
		})
	}, nil
}

// Closed reports whether the session's stream has seen its terminal event.
func (h *Hub) Closed(sessionID string) (bool, error) {
	h.mu.RLock()
	sl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false, ErrUnknownSession
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.closed, nil
}

// Purge drops a session's log and subscribers. Used by garbage collection
// after the session itself has been removed.
func (h *Hub) Purge(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}
