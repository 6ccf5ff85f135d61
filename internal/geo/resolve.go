package geo

import (
	"context"

	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds the number of concurrent geocoder calls of ResolveAll.
const DefaultWorkers = 4

// Request asks for the coordinate of one contact's location label.
type Request struct {
	ID      string
	Address string
}

// Resolution is the geocoder answer to a Request.
type Resolution struct {
	ID         string
	Address    string
	Coordinate model.Coordinate
	Err        error
}

// ResolveAll geocodes all requests with at most workers concurrent calls. Failures are reported
// per request; the returned slice has one entry per request, in request order.
func ResolveAll(ctx context.Context, geocoder Geocoder, requests []Request, workers int) []Resolution {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	resolutions := make([]Resolution, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range requests {
		g.Go(func() error {
			coords, err := geocoder.ResolveCoordinate(gctx, req.Address)
			resolutions[i] = Resolution{ID: req.ID, Address: req.Address, Coordinate: coords, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return resolutions
}
