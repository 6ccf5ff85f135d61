package store

import (
	"context"
	"fmt"

	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"go.uber.org/zap"
)

// RefreshNearby starts a new nearby computation. Any computation started earlier can no longer
// change the nearby view.
func (s *Store) RefreshNearby() *geo.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startNearby()
}

// WaitNearby blocks until the latest nearby computation finished and returns its result.
func (s *Store) WaitNearby(ctx context.Context) (geo.Result, error) {
	s.mu.Lock()
	task := s.nearbyTask
	s.mu.Unlock()
	if task == nil {
		return geo.Result{IDs: []string{}}, nil
	}
	return task.Wait(ctx)
}

// startNearby runs the geofence over the current contacts. The caller holds s.mu.
func (s *Store) startNearby() *geo.Task {
	s.nearbyTask = s.filter.Compute(s.ctx, s.contacts, s.publishNearby)
	return s.nearbyTask
}

// publishNearby installs the result of a nearby computation unless a later one was started in
// the meantime. Ids of contacts removed while computing are dropped.
func (s *Store) publishNearby(result geo.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filter.IsCurrent(result.Seq) {
		s.logger.Debug("Discarding superseded nearby result", zap.Uint64("seq", result.Seq))
		return
	}
	ids := make([]string, 0, len(result.IDs))
	for _, id := range result.IDs {
		if s.indexOf(id) >= 0 {
			ids = append(ids, id)
		}
	}
	s.nearby = ids
	s.emit(EventNearbyChanged, "")
}

// SetLocation stores a free text location for the contact with id and resolves its coordinates
// in the background. A changed label drops the old coordinates right away. The new coordinates
// are applied only if the contact still carries the same label when the geocoder answers.
func (s *Store) SetLocation(ctx context.Context, id string, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("set location %q: %w", id, ErrNotFound)
	}
	c := s.contacts[idx].Clone()
	if c.Location != label {
		// Coordinates of the previous label must not place the contact.
		c.Coordinates = nil
	}
	c.Location = label
	if err := s.update(ctx, idx, c); err != nil {
		return err
	}
	if label == "" || s.geocoder == nil {
		return nil
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		coords, err := s.geocoder.ResolveCoordinate(s.ctx, label)
		if err != nil {
			s.logger.Warn("Could not resolve location", zap.String("id", id), zap.String("location", label),
				zap.Error(err))
			return
		}
		s.applyCoordinates(id, label, coords)
	}()
	return nil
}

// applyCoordinates stores coords for the contact with id if its label is still label.
func (s *Store) applyCoordinates(id string, label string, coords model.Coordinate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 || s.contacts[idx].Location != label {
		s.logger.Debug("Discarding coordinates for changed contact", zap.String("id", id))
		return false
	}
	c := s.contacts[idx].Clone()
	c.Coordinates = &coords
	if err := s.update(s.ctx, idx, c); err != nil {
		s.logger.Error("Could not store coordinates", zap.String("id", id), zap.Error(err))
		return false
	}
	s.emit(EventCoordinatesResolved, id)
	return true
}

// ResolveMissingCoordinates geocodes every contact that has a location label but no
// coordinates. It returns the number of contacts that received coordinates. Geocoder failures
// are logged and skipped.
func (s *Store) ResolveMissingCoordinates(ctx context.Context) (int, error) {
	if s.geocoder == nil {
		return 0, nil
	}
	s.mu.Lock()
	var requests []geo.Request
	for _, c := range s.contacts {
		if c.Location != "" && c.Coordinates == nil {
			requests = append(requests, geo.Request{ID: c.ID, Address: c.Location})
		}
	}
	s.mu.Unlock()
	if len(requests) == 0 {
		return 0, nil
	}

	resolved := 0
	for _, r := range geo.ResolveAll(ctx, s.geocoder, requests, s.opts.GeocodeWorkers) {
		if r.Err != nil {
			s.logger.Warn("Could not resolve location", zap.String("id", r.ID), zap.String("location", r.Address),
				zap.Error(r.Err))
			continue
		}
		if s.applyCoordinates(r.ID, r.Address, r.Coordinate) {
			resolved++
		}
	}
	return resolved, ctx.Err()
}
