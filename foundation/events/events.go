// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// messageBuffer is the number of messages a listener can fall behind before
// messages are dropped for it. Websocket sends can take a long time.
const messageBuffer = 100

// listener represents a registered receiver and the message prefixes it
// wants. No prefixes means every message.
type listener struct {
	ch       chan string
	prefixes []string
}

func (l listener) wants(s string) bool {
	if len(l.prefixes) == 0 {
		return true
	}

	for _, prefix := range l.prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

// =============================================================================

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]listener
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]listener),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, l := range evt.m {
		delete(evt.m, id)
		close(l.ch)
	}
}

// Acquire registers a new listener and returns its id with the channel that
// receives the events. When prefixes are provided only messages starting
// with one of them are delivered, e.g. "miner:" or "account:".
func (evt *Events) Acquire(prefixes ...string) (string, <-chan string) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	id := uuid.NewString()
	l := listener{
		ch:       make(chan string, messageBuffer),
		prefixes: prefixes,
	}
	evt.m[id] = l

	return id, l.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	l, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(l.ch)
	return nil
}

// Count returns the number of registered listeners.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every registered channel that wants it. Send
// will not block waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, l := range evt.m {
		if !l.wants(s) {
			continue
		}

		select {
		case l.ch <- s:
		default:
		}
	}
}
