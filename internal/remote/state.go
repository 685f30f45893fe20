package remote

import "go.uber.org/atomic"

// State holds the process-scoped remote flags. It starts uninitialized and
// connected (an unknown link is assumed up until told otherwise), and is Reset on logout.
type State struct {
	initialized *atomic.Bool
	connected   *atomic.Bool
}

func NewState() *State {
	return &State{
		initialized: atomic.NewBool(false),
		connected:   atomic.NewBool(true),
	}
}

func (s *State) Initialized() bool {
	return s.initialized.Load()
}

func (s *State) MarkInitialized() {
	s.initialized.Store(true)
}

func (s *State) Connected() bool {
	return s.connected.Load()
}

// SetConnected stores v and reports whether this was a disconnected -> connected transition.
func (s *State) SetConnected(v bool) bool {
	was := s.connected.Swap(v)
	return !was && v
}

func (s *State) Reset() {
	s.initialized.Store(false)
	s.connected.Store(true)
}
