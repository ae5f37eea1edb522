package connectivity

// Manual is an Observer whose state is driven explicitly. It backs the
// "always" and "never" connectivity modes and lets tests inject transitions.
type Manual struct {
	*Broadcaster
}

// NewManual returns a manual observer in the given state.
func NewManual(online bool) *Manual {
	return &Manual{Broadcaster: NewBroadcaster(online)}
}

// SetOnline changes the state, notifying subscribers on a transition.
func (m *Manual) SetOnline(online bool) bool {
	return m.Set(online, "manual")
}
