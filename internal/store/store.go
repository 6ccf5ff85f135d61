// Package store holds the canonical collection of contacts, the derived views over it and the
// persistence of both.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/notification"
	"gitlab.com/dirk.krummacker/keepintouch/internal/ranking"
	"gitlab.com/dirk.krummacker/keepintouch/internal/recents"
	"go.uber.org/zap"
)

// DuplicatePolicy decides what Add does with an id that already exists.
type DuplicatePolicy int

const (
	// DuplicateReject makes Add fail with ErrDuplicateID and leaves the state unchanged.
	DuplicateReject DuplicatePolicy = iota

	// DuplicateReplace makes Add replace the stored contact. Like a new contact it is marked as
	// recently used.
	DuplicateReplace
)

// Options configure a Store. The zero value is usable.
type Options struct {
	CacheSize              int                  // capacity of the recents view, recents.DefaultSize if zero
	Duplicates             DuplicatePolicy      // handling of duplicate ids in Add
	RollbackOnPersistError bool                 // restore the previous state if a write fails
	Clock                  clock.Clock          // time source for ranking, clock.Real if nil
	Location               geo.LocationProvider // device position for the nearby view
	Geocoder               geo.Geocoder
	RadiusMeters           float64        // geofence radius, geo.DefaultRadiusMeters if zero
	GeocodeWorkers         int            // concurrent geocoder calls, geo.DefaultWorkers if zero
	Timezone               *time.Location // zone of stored reminder dates, time.Local if nil
	Logger                 *zap.Logger
}

// Store owns the contacts and the recents, contactSoons, pinned and nearby views. The views hold
// contact ids only and are resolved against the canonical collection when read, so an updated
// contact shows up with its new fields in every view.
type Store struct {
	mu       sync.Mutex
	backend  kv.Backend
	opts     Options
	logger   *zap.Logger
	ranker   ranking.Ranker
	records  model.Records
	filter   *geo.Filter
	geocoder geo.Geocoder

	// ctx is the parent of all asynchronous work and cancelled by Close.
	ctx        context.Context
	cancel     context.CancelFunc
	background sync.WaitGroup

	contacts     []model.Contact
	recents      *recents.Cache
	contactSoons []string
	pinned       []string
	nearby       []string
	nearbyTask   *geo.Task

	subscribers    map[int]chan Event
	nextSubscriber int
}

// snapshot is a copy of the state taken before a mutation, used for rollback.
type snapshot struct {
	contacts     []model.Contact
	recents      []string
	contactSoons []string
	pinned       []string
	nearby       []string
}

// New returns an empty store persisting to backend. Call Load to read the persisted state.
func New(backend kv.Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("store: backend is required")
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = recents.DefaultSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.GeocodeWorkers <= 0 {
		opts.GeocodeWorkers = geo.DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := recents.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		backend:     backend,
		opts:        opts,
		logger:      logger.With(zap.String("component", "store")),
		ranker:      ranking.New(opts.Clock),
		records:     model.Records{Reminders: notification.Codec{Location: opts.Timezone}},
		filter:      geo.NewFilter(opts.Location, opts.RadiusMeters, logger),
		geocoder:    opts.Geocoder,
		ctx:         ctx,
		cancel:      cancel,
		contacts:    []model.Contact{},
		recents:     cache,
		subscribers: map[int]chan Event{},
	}, nil
}

// Close cancels pending geocoding and nearby computations, waits for them and closes all
// subscriptions. The store must not be used afterwards.
func (s *Store) Close() {
	s.cancel()
	// Geocoding completions may start nearby computations, so they are waited for first.
	s.background.Wait()
	s.filter.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// Load replaces the in-memory state with the persisted one. Missing or malformed contact records
// load with default field values; only backend failures are returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIDs(ctx, KeyContactIDs)
	if err != nil {
		return err
	}
	contacts := make([]model.Contact, 0, len(ids))
	pinned := []string{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			s.logger.Warn("Skipping duplicate or empty id in contact list", zap.String("id", id))
			continue
		}
		seen[id] = true
		record, err := s.readRecord(ctx, id)
		if err != nil {
			return err
		}
		c := s.records.FromRecord(id, record)
		contacts = append(contacts, c)
		if c.PinnedContact {
			pinned = append(pinned, id)
		}
	}

	recentIDs, err := s.readIDs(ctx, KeyRecents)
	if err != nil {
		return err
	}
	s.contacts = contacts
	s.pinned = pinned
	s.nearby = nil
	s.recents.Restore(slices.DeleteFunc(recentIDs, func(id string) bool { return !seen[id] }))
	s.contactSoons = idsOf(s.ranker.Rank(s.contacts))

	s.logger.Info("Loaded contacts", zap.Int("contacts", len(contacts)), zap.Int("recents", s.recents.Len()))
	s.emit(EventLoaded, "")
	s.startNearby()
	return nil
}

// Add appends c to the collection and marks it as recently used. An empty id is replaced by a
// new UUID. The stored contact is returned.
func (s *Store) Add(ctx context.Context, c model.Contact) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if idx := s.indexOf(c.ID); idx >= 0 {
		if s.opts.Duplicates == DuplicateReject {
			return model.Contact{}, fmt.Errorf("add %q: %w", c.ID, ErrDuplicateID)
		}
		return s.replace(ctx, idx, c)
	}

	snap := s.snapshot()
	c = c.Clone()
	s.contacts = append(s.contacts, c)
	s.recents.Touch(c.ID)
	s.syncPinned(c)
	err := s.persist(ctx, s.saveContact(c), s.saveIDs, s.saveRecents)
	if err != nil {
		err = s.failed("add", snap, err)
	}
	if s.indexOf(c.ID) >= 0 {
		s.emit(EventAdded, c.ID)
		s.emit(EventRecentsChanged, "")
	}
	s.startNearby()
	return c.Clone(), err
}

// replace overwrites the contact at idx on a duplicate add. Like any add it marks the contact
// as recently used. The caller holds s.mu.
func (s *Store) replace(ctx context.Context, idx int, c model.Contact) (model.Contact, error) {
	snap := s.snapshot()
	c = c.Clone()
	s.contacts[idx] = c
	s.recents.Touch(c.ID)
	s.syncPinned(c)
	err := s.persist(ctx, s.saveContact(c), s.saveRecents)
	if err != nil {
		err = s.failed("add", snap, err)
	}
	s.emit(EventUpdated, c.ID)
	s.emit(EventRecentsChanged, "")
	s.startNearby()
	return c.Clone(), err
}

// Update replaces the contact with the same id. Pinned membership follows the PinnedContact
// flag; a contact that stays pinned keeps its position.
func (s *Store) Update(ctx context.Context, c model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(c.ID)
	if idx < 0 {
		return fmt.Errorf("update %q: %w", c.ID, ErrNotFound)
	}
	return s.update(ctx, idx, c)
}

// update replaces the contact at idx. The caller holds s.mu.
func (s *Store) update(ctx context.Context, idx int, c model.Contact) error {
	snap := s.snapshot()
	c = c.Clone()
	s.contacts[idx] = c
	s.syncPinned(c)
	err := s.persist(ctx, s.saveContact(c))
	if err != nil {
		err = s.failed("update", snap, err)
	}
	s.emit(EventUpdated, c.ID)
	s.startNearby()
	return err
}

// Remove deletes the contact with id from the collection and from every view. Removing an
// unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	snap := s.snapshot()
	s.contacts = slices.Delete(s.contacts, idx, idx+1)
	recentsChanged := s.recents.Remove(id)
	soonsChanged := slices.Contains(s.contactSoons, id)
	s.contactSoons = without(s.contactSoons, id)
	s.pinned = without(s.pinned, id)
	s.nearby = without(s.nearby, id)

	steps := []step{s.deleteKey(id), s.saveIDs}
	if recentsChanged {
		steps = append(steps, s.saveRecents)
	}
	if soonsChanged {
		steps = append(steps, s.saveContactSoons)
	}
	err := s.persist(ctx, steps...)
	if err != nil {
		err = s.failed("remove", snap, err)
	}
	if s.indexOf(id) < 0 {
		s.emit(EventRemoved, id)
	}
	return err
}

// AddRecent marks the contact with id as most recently used.
func (s *Store) AddRecent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return fmt.Errorf("add recent %q: %w", id, ErrNotFound)
	}
	snap := s.snapshot()
	s.recents.Touch(id)
	err := s.persist(ctx, s.saveRecents)
	if err != nil {
		err = s.failed("add recent", snap, err)
	}
	s.emit(EventRecentsChanged, "")
	return err
}

// ClearRecents empties the recents view and deletes its persisted record.
func (s *Store) ClearRecents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.recents.Clear()
	err := s.persist(ctx, s.deleteKey(KeyRecents))
	if err != nil {
		err = s.failed("clear recents", snap, err)
	}
	s.emit(EventRecentsChanged, "")
	return err
}

// ClearContactSoons empties the contactSoons view and deletes its persisted record.
func (s *Store) ClearContactSoons(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.contactSoons = nil
	err := s.persist(ctx, s.deleteKey(KeyContactSoons))
	if err != nil {
		err = s.failed("clear contact soons", snap, err)
	}
	s.emit(EventContactSoonsChanged, "")
	return err
}

// RankContactSoons recomputes the contactSoons view from the current collection and persists it.
func (s *Store) RankContactSoons(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.contactSoons = idsOf(s.ranker.Rank(s.contacts))
	err := s.persist(ctx, s.saveContactSoons)
	if err != nil {
		err = s.failed("rank contact soons", snap, err)
	}
	s.emit(EventContactSoonsChanged, "")
	return err
}

// LogResult describes the outcome of LogContact.
type LogResult struct {
	AlreadyLogged bool   // the contact was logged earlier on the same day
	LastContacted string // the stored last-contacted value after the call
}

// LogContact records that the contact with id was contacted at the given time and marks it as
// recently used. A second call on the same calendar day changes nothing.
func (s *Store) LogContact(ctx context.Context, id string, at time.Time) (LogResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return LogResult{}, fmt.Errorf("log contact %q: %w", id, ErrNotFound)
	}
	current := s.contacts[idx]
	if last, ok := ranking.ParseDate(current.LastContacted); ok && ranking.ElapsedDays(last, at) == 0 {
		return LogResult{AlreadyLogged: true, LastContacted: current.LastContacted}, nil
	}

	snap := s.snapshot()
	c := current.Clone()
	c.LastContacted = at.Format(ranking.LastContactedLayout)
	s.contacts[idx] = c
	s.recents.Touch(id)
	err := s.persist(ctx, s.saveContact(c), s.saveRecents)
	if err != nil {
		err = s.failed("log contact", snap, err)
	}
	s.emit(EventUpdated, id)
	s.emit(EventRecentsChanged, "")
	return LogResult{LastContacted: s.contacts[idx].LastContacted}, err
}

// failed logs a persistence failure and restores snap if rollback is enabled. The caller holds
// s.mu.
func (s *Store) failed(op string, snap snapshot, err error) error {
	s.logger.Error("Could not persist change", zap.String("op", op), zap.Error(err),
		zap.Bool("rollback", s.opts.RollbackOnPersistError))
	if s.opts.RollbackOnPersistError {
		s.restore(snap)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		contacts:     slices.Clone(s.contacts),
		recents:      s.recents.IDs(),
		contactSoons: slices.Clone(s.contactSoons),
		pinned:       slices.Clone(s.pinned),
		nearby:       slices.Clone(s.nearby),
	}
}

func (s *Store) restore(snap snapshot) {
	s.contacts = snap.contacts
	s.recents.Restore(snap.recents)
	s.contactSoons = snap.contactSoons
	s.pinned = snap.pinned
	s.nearby = snap.nearby
}

// syncPinned adds or removes c from the pinned view according to its flag.
func (s *Store) syncPinned(c model.Contact) {
	if !c.PinnedContact {
		s.pinned = without(s.pinned, c.ID)
		return
	}
	if !slices.Contains(s.pinned, c.ID) {
		s.pinned = append(s.pinned, c.ID)
	}
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.contacts, func(c model.Contact) bool { return c.ID == id })
}

func idsOf(contacts []model.Contact) []string {
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(other string) bool { return other == id })
}
