package chat

import "sync"

// ChannelState is the client's view of one channel. The client is a thin
// projection of server state: exactly one channel is current, and its view is
// rebuilt from scratch on every switch.
type ChannelState struct {
	Name   string
	Topic  string
	Roster []string
	Events []Event
	Files  []FileRecord
}

// Store holds the single current channel view. Poll results race against
// channel switches, so every mutation names the channel it was produced for
// and is dropped when that channel is no longer current.
type Store struct {
	mu      sync.Mutex
	current ChannelState
}

// NewStore creates a store with channel as the current channel.
func NewStore(channel string) *Store {
	return &Store{current: ChannelState{Name: channel}}
}

// Current returns a copy of the current channel state.
func (s *Store) Current() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.current
	out.Roster = append([]string(nil), s.current.Roster...)
	out.Events = append([]Event(nil), s.current.Events...)
	out.Files = append([]FileRecord(nil), s.current.Files...)
	return out
}

// CurrentChannel returns the name of the current channel.
func (s *Store) CurrentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Name
}

// Switch replaces the current state with a fresh one for name. The previous
// channel's message log, roster, and file list are discarded.
func (s *Store) Switch(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ChannelState{Name: name}
}

// SetTopic records the topic if channel is still current.
func (s *Store) SetTopic(channel, topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Name != channel {
		return false
	}
	s.current.Topic = topic
	return true
}

// SetFiles replaces the file list if channel is still current.
func (s *Store) SetFiles(channel string, files []FileRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Name != channel {
		return false
	}
	s.current.Files = append([]FileRecord(nil), files...)
	return true
}

// AppendFile adds one record (a fresh upload) if channel is still current.
func (s *Store) AppendFile(channel string, f FileRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Name != channel {
		return false
	}
	s.current.Files = append(s.current.Files, f)
	return true
}

// ApplyPoll appends events in arrival order and, when roster is non-nil,
// replaces the roster. Results for a channel that is no longer current are
// dropped whole, never applied; the server is the sole ordering authority so
// events are never reordered or deduplicated.
func (s *Store) ApplyPoll(channel string, events []Event, roster []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Name != channel {
		return false
	}
	s.current.Events = append(s.current.Events, events...)
	if roster != nil {
		s.current.Roster = append([]string(nil), roster...)
	}
	return true
}
