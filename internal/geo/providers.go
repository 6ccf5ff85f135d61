package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// ErrNoLocation is returned by a LocationProvider that currently has no position.
var ErrNoLocation = errors.New("device location unavailable")

// LocationProvider supplies the current position of the device. Implementations may block, for
// example while waiting for a fix, and should honour ctx.
type LocationProvider interface {
	CurrentCoordinate(ctx context.Context) (model.Coordinate, error)
}

// Geocoder turns a free text location label into a coordinate.
type Geocoder interface {
	ResolveCoordinate(ctx context.Context, address string) (model.Coordinate, error)
}

// DeviceLocation is a LocationProvider whose position is pushed in by the interaction layer.
type DeviceLocation struct {
	mu         sync.RWMutex
	coordinate *model.Coordinate
}

// NewDeviceLocation returns a provider without a position.
func NewDeviceLocation() *DeviceLocation {
	return &DeviceLocation{}
}

// Set stores the current position.
func (d *DeviceLocation) Set(c model.Coordinate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coordinate = &c
}

// Clear forgets the current position.
func (d *DeviceLocation) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coordinate = nil
}

// CurrentCoordinate returns the stored position or ErrNoLocation.
func (d *DeviceLocation) CurrentCoordinate(ctx context.Context) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.coordinate == nil {
		return model.Coordinate{}, ErrNoLocation
	}
	return *d.coordinate, nil
}

// LiteralGeocoder resolves labels that already are "latitude,longitude" pairs, the way pasted
// map coordinates look. Any other label fails to resolve.
type LiteralGeocoder struct{}

// ResolveCoordinate parses the label as a coordinate pair.
func (LiteralGeocoder) ResolveCoordinate(ctx context.Context, address string) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	c, err := model.ParseCoordinate(address)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("no coordinates found for %q: %w", address, err)
	}
	return c, nil
}
