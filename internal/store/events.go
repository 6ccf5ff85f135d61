package store

// EventKind names what changed in the store.
type EventKind string

const (
	EventLoaded              EventKind = "loaded"
	EventAdded               EventKind = "added"
	EventUpdated             EventKind = "updated"
	EventRemoved             EventKind = "removed"
	EventRecentsChanged      EventKind = "recents"
	EventContactSoonsChanged EventKind = "contactSoons"
	EventNearbyChanged       EventKind = "nearby"
	EventCoordinatesResolved EventKind = "coordinates"
)

// Event is emitted after every change of the canonical collection or a derived view. ID is the
// affected contact, or empty for changes of a whole view.
type Event struct {
	Kind EventKind
	ID   string
}

// Subscribe returns a channel receiving all future events and a function that ends the
// subscription and closes the channel. Events are dropped for subscribers whose buffer is full,
// so a subscriber should re-read the views it cares about rather than count events.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, max(buffer, 0))
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
}

// emit delivers an event to all subscribers without blocking. The caller holds s.mu.
func (s *Store) emit(kind EventKind, id string) {
	e := Event{Kind: kind, ID: id}
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.logger.Debug("Dropping event for slow subscriber")
		}
	}
}
