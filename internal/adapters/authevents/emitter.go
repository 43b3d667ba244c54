// Package authevents fans auth state changes out to subscribed listeners in
// emission order. Auth client adapters embed an Emitter to implement
// OnAuthStateChange.
package authevents

import (
	"sync"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/ports"
)

type entry struct {
	id uint64
	fn ports.AuthStateListener
}

// Emitter delivers events synchronously. Concurrent Emit calls are serialized,
// so every listener observes events in the same order.
// Listeners must not call Emit.
type Emitter struct {
	mu        sync.Mutex
	dispatch  sync.Mutex
	nextID    uint64
	listeners []entry
}

// Subscribe registers fn and returns its release handle.
func (e *Emitter) Subscribe(fn ports.AuthStateListener) ports.Unsubscribe {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, entry{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers event to every listener registered at the time of the call.
// Each listener receives its own copy of sess.
func (e *Emitter) Emit(event domainauth.AuthEvent, sess *domainauth.AuthSession) {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	e.mu.Lock()
	snapshot := make([]entry, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(event, cloneSession(sess))
	}
}

// Len reports the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func cloneSession(sess *domainauth.AuthSession) *domainauth.AuthSession {
	if sess == nil {
		return nil
	}
	c := *sess
	if sess.User.Metadata != nil {
		c.User.Metadata = make(map[string]any, len(sess.User.Metadata))
		for k, v := range sess.User.Metadata {
			c.User.Metadata[k] = v
		}
	}
	return &c
}
