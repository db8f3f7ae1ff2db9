// Package convstate tracks per-conversation pending interactions. A chat
// holds at most one pending state; setting a new one replaces the old and
// the replaced state is returned so the caller can surface the overwrite.
package convstate

import "sync"

// Kind enumerates the pending interaction types.
type Kind int

const (
	// KindIdle means no interaction is pending.
	KindIdle Kind = iota
	// KindAwaitingKey means the next text message is a redemption key.
	KindAwaitingKey
	// KindAwaitingEdit means a photo is parked and the next text message
	// is the edit instruction for it.
	KindAwaitingEdit
)

// State is one pending interaction for a chat.
type State struct {
	Kind      Kind
	AccountID int64
	ImagePath string
	Template  string
}

// Idle reports whether the state is empty.
func (s State) Idle() bool {
	return s.Kind == KindIdle
}

// Tracker maps chat ids to their pending state. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	states map[int64]State
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[int64]State)}
}

// Set installs a pending state for the chat and returns whatever state it
// replaced. The zero State means nothing was pending.
func (t *Tracker) Set(chatID int64, state State) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous := t.states[chatID]
	if state.Idle() {
		delete(t.states, chatID)
	} else {
		t.states[chatID] = state
	}
	return previous
}

// Take returns the chat's pending state and clears it. The second return
// reports whether anything was pending.
func (t *Tracker) Take(chatID int64) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[chatID]
	if ok {
		delete(t.states, chatID)
	}
	return state, ok
}

// Peek returns the chat's pending state without clearing it.
func (t *Tracker) Peek(chatID int64) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[chatID]
	return state, ok
}

// Clear drops the chat's pending state if any.
func (t *Tracker) Clear(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, chatID)
}
