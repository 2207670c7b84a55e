// Package livepush is the best-effort real-time delivery path: a process-wide
// registry from user identity to live channels. Durability is the
// notification store's job, not this package's.
package livepush

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Channel is one live delivery handle (normally a websocket session). Send
// must not block; a Channel that cannot accept a frame returns an error and
// is dropped from the registry.
type Channel interface {
	Send(frame []byte) error
	Close() error
}

// Event is the wire envelope pushed to clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub maps user identity to the set of currently connected channels. A user
// with several tabs or devices holds several channels and receives each push
// on all of them. Registration and pushes are safe under concurrent connect
// storms.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint]map[Channel]struct{}
	log      zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[uint]map[Channel]struct{}),
		log:      log,
	}
}

// Register adds a channel for the user.
func (h *Hub) Register(userID uint, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[userID]
	if !ok {
		set = make(map[Channel]struct{})
		h.sessions[userID] = set
	}
	set[ch] = struct{}{}
	h.log.Debug().Uint("user", userID).Int("sessions", len(set)).Msg("live session registered")
}

// Unregister removes a channel; the user's entry disappears with its last
// channel so the registry never leaks handles.
func (h *Hub) Unregister(userID uint, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[userID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.sessions, userID)
	}
	h.log.Debug().Uint("user", userID).Int("sessions", len(set)).Msg("live session unregistered")
}

// Push delivers the event to every channel of the user, at most once per
// channel. Returns true if at least one channel accepted it; false means the
// user is offline, which callers treat as expected. Channels that fail to
// accept are unregistered and closed on the spot.
func (h *Hub) Push(userID uint, event string, data interface{}) bool {
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("push payload not serializable")
		return false
	}

	h.mu.RLock()
	channels := make([]Channel, 0, len(h.sessions[userID]))
	for ch := range h.sessions[userID] {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	delivered := false
	for _, ch := range channels {
		if err := ch.Send(frame); err != nil {
			h.log.Debug().Err(err).Uint("user", userID).Msg("dropping dead live session")
			h.Unregister(userID, ch)
			ch.Close()
			continue
		}
		delivered = true
	}
	return delivered
}

// SessionCount reports how many channels a user currently holds.
func (h *Hub) SessionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}
