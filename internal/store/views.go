package store

import (
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// Contacts returns copies of all contacts in insertion order.
func (s *Store) Contacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts := make([]model.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c.Clone())
	}
	return contacts
}

// Contact returns a copy of the contact with id.
func (s *Store) Contact(id string) (model.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Contact{}, false
	}
	return s.contacts[idx].Clone(), true
}

// Recents returns the recently used contacts, most recent first.
func (s *Store) Recents() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(s.recents.IDs())
}

// ContactSoons returns the contacts most overdue for outreach as of the last ranking.
func (s *Store) ContactSoons() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(s.contactSoons)
}

// PinnedContacts returns the pinned contacts in the order they were pinned.
func (s *Store) PinnedContacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(s.pinned)
}

// NearbyContacts returns the contacts within the geofence as of the last completed computation.
func (s *Store) NearbyContacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(s.nearby)
}

// resolve maps ids to copies of the current contacts, skipping unknown ids. The caller holds s.mu.
func (s *Store) resolve(ids []string) []model.Contact {
	contacts := make([]model.Contact, 0, len(ids))
	for _, id := range ids {
		if idx := s.indexOf(id); idx >= 0 {
			contacts = append(contacts, s.contacts[idx].Clone())
		}
	}
	return contacts
}
