package player

import (
	"log/slog"
	"sync"
)

// Users is the ordered registry of connected listeners. Index 0 is the
// priority listener: audio renders there, alerts land there by default.
// Later entries only receive the broadcast view updates.
type Users struct {
	mu       sync.RWMutex
	list     []Listener
	onChange func(delta int)
}

// NewUsers creates an empty registry. onChange, when non-nil, is called with
// +1/-1 as listeners come and go (used for the active-listener gauge).
func NewUsers(onChange func(delta int)) *Users {
	return &Users{onChange: onChange}
}

// Add appends l to the registry. Re-adding a present ID is a no-op.
func (u *Users) Add(l Listener) {
	u.mu.Lock()
	for _, cur := range u.list {
		if cur.ID() == l.ID() {
			u.mu.Unlock()
			return
		}
	}
	u.list = append(u.list, l)
	u.mu.Unlock()

	if u.onChange != nil {
		u.onChange(1)
	}
	slog.Debug("listener added", "id", l.ID(), "total", u.Len())
}

// Remove deletes the listener with the given ID, preserving order.
func (u *Users) Remove(id string) {
	u.mu.Lock()
	removed := false
	for i, cur := range u.list {
		if cur.ID() == id {
			u.list = append(u.list[:i], u.list[i+1:]...)
			removed = true
			break
		}
	}
	u.mu.Unlock()

	if removed {
		if u.onChange != nil {
			u.onChange(-1)
		}
		slog.Debug("listener removed", "id", id, "total", u.Len())
	}
}

// Prioritize moves the listener with the given ID to the front. Unknown IDs
// are ignored.
func (u *Users) Prioritize(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, cur := range u.list {
		if cur.ID() == id {
			if i > 0 {
				u.list = append(u.list[:i], u.list[i+1:]...)
				u.list = append([]Listener{cur}, u.list...)
			}
			return
		}
	}
}

// ByIndex returns the listener at position i, or nil when out of range.
func (u *Users) ByIndex(i int) Listener {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if i < 0 || i >= len(u.list) {
		return nil
	}
	return u.list[i]
}

// Len returns the number of registered listeners.
func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.list)
}

// IDList returns the listener IDs in priority order.
func (u *Users) IDList() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]string, len(u.list))
	for i, cur := range u.list {
		ids[i] = cur.ID()
	}
	return ids
}

// snapshot copies the current listener slice for iteration outside the lock.
func (u *Users) snapshot() []Listener {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Listener, len(u.list))
	copy(out, u.list)
	return out
}

// BroadcastState pushes a state snapshot to every listener.
func (u *Users) BroadcastState(snap StateSnapshot) {
	for _, l := range u.snapshot() {
		l.NotifyState(snap)
	}
}

// BroadcastContent pushes the client-view content to every listener.
func (u *Users) BroadcastContent(content any) {
	for _, l := range u.snapshot() {
		l.NotifyContent(content)
	}
}

// BroadcastHighlight tells every listener which sentence is being read.
func (u *Users) BroadcastHighlight(index int) {
	for _, l := range u.snapshot() {
		l.NotifyHighlight(index)
	}
}

// BroadcastAlert plays an alert sound on every listener.
func (u *Users) BroadcastAlert(kind AlertKind) {
	for _, l := range u.snapshot() {
		l.NotifyAlert(kind)
	}
}
