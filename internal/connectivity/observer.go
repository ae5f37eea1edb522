package connectivity

import "time"

// Event describes a single online/offline transition.
type Event struct {
	Online bool
	At     time.Time
	Source string
}

// Observer exposes current reachability plus transition subscriptions.
type Observer interface {
	Online() bool
	// Subscribe registers fn for future transitions and returns a function
	// that removes the registration. Calling it more than once is harmless.
	Subscribe(fn func(Event)) (unsubscribe func())
}
