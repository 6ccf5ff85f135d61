package geo

import (
	"context"
	"sync"
	"sync/atomic"

	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"go.uber.org/zap"
)

// Result is the outcome of one nearby computation.
type Result struct {
	Seq uint64   // request sequence number, increasing per Compute call
	IDs []string // ids of contacts within the radius, in input order
	Err error    // set if the device location could not be determined
}

// Task is a running nearby computation.
type Task struct {
	seq    uint64
	done   chan struct{}
	result Result
}

// Seq returns the request sequence number of the task.
func (t *Task) Seq() uint64 {
	return t.seq
}

// Done is closed once the result has been published.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completed or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Filter determines which contacts are within a fixed radius of the device.
//
// Every Compute call takes a new sequence number. Results may complete in any order; consumers
// use IsCurrent to drop a result that was superseded by a later request.
type Filter struct {
	provider LocationProvider
	radius   float64
	logger   *zap.Logger

	seq      atomic.Uint64
	inFlight sync.WaitGroup
}

// NewFilter returns a filter using provider for the device position. A non-positive radius
// selects DefaultRadiusMeters.
func NewFilter(provider LocationProvider, radius float64, logger *zap.Logger) *Filter {
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		provider: provider,
		radius:   radius,
		logger:   logger.With(zap.String("component", "geo")),
	}
}

// Radius returns the geofence radius in metres.
func (f *Filter) Radius() float64 {
	return f.radius
}

// Compute starts a nearby computation over contacts and returns immediately. When the device
// location is known, publish receives the ids within the radius; otherwise it receives a result
// carrying the error and no ids. publish runs on the computation goroutine before the task is
// marked done.
func (f *Filter) Compute(ctx context.Context, contacts []model.Contact, publish func(Result)) *Task {
	type candidate struct {
		id     string
		coords model.Coordinate
	}
	candidates := make([]candidate, 0, len(contacts))
	for _, c := range contacts {
		if c.Coordinates != nil {
			candidates = append(candidates, candidate{id: c.ID, coords: *c.Coordinates})
		}
	}

	task := &Task{seq: f.seq.Add(1), done: make(chan struct{})}
	f.inFlight.Add(1)
	go func() {
		defer f.inFlight.Done()
		defer close(task.done)

		result := Result{Seq: task.seq, IDs: []string{}}
		if f.provider == nil {
			result.Err = ErrNoLocation
		} else if device, err := f.provider.CurrentCoordinate(ctx); err != nil {
			result.Err = err
		} else {
			for _, c := range candidates {
				if WithinRadius(device, c.coords, f.radius) {
					result.IDs = append(result.IDs, c.id)
				}
			}
		}
		if result.Err != nil {
			f.logger.Info("Could not retrieve device coordinates",
				zap.Uint64("seq", task.seq), zap.Error(result.Err))
		}
		task.result = result
		if publish != nil {
			publish(result)
		}
	}()
	return task
}

// IsCurrent reports whether seq belongs to the most recent Compute call.
func (f *Filter) IsCurrent(seq uint64) bool {
	return f.seq.Load() == seq
}

// Wait blocks until every started computation has finished.
func (f *Filter) Wait() {
	f.inFlight.Wait()
}
