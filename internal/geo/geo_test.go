package geo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

var (
	newYork     = model.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	brooklyn    = model.Coordinate{Latitude: 40.6782, Longitude: -73.9442}
	losAngeles  = model.Coordinate{Latitude: 34.0522, Longitude: -118.2437}
	waitTimeout = 5 * time.Second
)

// TestMain verifies that no computation goroutine outlives the tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedProvider answers each CurrentCoordinate call only after the test releases it.
type gatedProvider struct {
	calls chan chan model.Coordinate
}

func (p *gatedProvider) CurrentCoordinate(ctx context.Context) (model.Coordinate, error) {
	reply := make(chan model.Coordinate)
	p.calls <- reply
	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return model.Coordinate{}, ctx.Err()
	}
}

// contactAt builds a contact with coordinates.
func contactAt(id string, c model.Coordinate) model.Contact {
	return model.Contact{ID: id, Coordinates: &c}
}

// TestDistance compares the haversine distance with well known values.
func TestDistance(t *testing.T) {
	assert.InDelta(t, 3935746, Distance(newYork, losAngeles), 5000)
	assert.InDelta(t, 0, Distance(newYork, newYork), 0.001)
	assert.True(t, WithinRadius(newYork, brooklyn, DefaultRadiusMeters))
	assert.False(t, WithinRadius(newYork, losAngeles, DefaultRadiusMeters))
}

// TestComputeFiltersByRadius expects only contacts with coordinates inside the radius.
func TestComputeFiltersByRadius(t *testing.T) {
	device := NewDeviceLocation()
	device.Set(newYork)
	f := NewFilter(device, 0, zaptest.NewLogger(t))
	assert.Equal(t, DefaultRadiusMeters, f.Radius())

	var published []Result
	task := f.Compute(context.Background(), []model.Contact{
		contactAt("ny", newYork),
		{ID: "nowhere"},
		contactAt("la", losAngeles),
		contactAt("bk", brooklyn),
	}, func(r Result) { published = append(published, r) })

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	result, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"ny", "bk"}, result.IDs)
	require.Len(t, published, 1)
	assert.Equal(t, result, published[0])
	assert.True(t, f.IsCurrent(task.Seq()))
}

// TestComputeWithoutLocation expects an empty result carrying ErrNoLocation.
func TestComputeWithoutLocation(t *testing.T) {
	f := NewFilter(NewDeviceLocation(), 1000, zaptest.NewLogger(t))
	task := f.Compute(context.Background(), []model.Contact{contactAt("ny", newYork)}, nil)
	<-task.Done()
	result, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, ErrNoLocation)
	assert.Empty(t, result.IDs)
}

// TestSequenceOutOfOrderCompletion starts two computations and lets the newer one finish first.
// It expects that only the newer one is current when the older one completes.
func TestSequenceOutOfOrderCompletion(t *testing.T) {
	provider := &gatedProvider{calls: make(chan chan model.Coordinate)}
	f := NewFilter(provider, 1000, zaptest.NewLogger(t))
	contacts := []model.Contact{contactAt("ny", newYork), contactAt("la", losAngeles)}

	var mu sync.Mutex
	var applied []Result
	publish := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		if f.IsCurrent(r.Seq) {
			applied = append(applied, r)
		}
	}

	older := f.Compute(context.Background(), contacts, publish)
	olderReply := <-provider.calls
	newer := f.Compute(context.Background(), contacts, publish)
	newerReply := <-provider.calls
	assert.Greater(t, newer.Seq(), older.Seq())

	newerReply <- losAngeles
	<-newer.Done()
	olderReply <- newYork
	<-older.Done()
	f.Wait()

	require.Len(t, applied, 1)
	assert.Equal(t, newer.Seq(), applied[0].Seq)
	assert.Equal(t, []string{"la"}, applied[0].IDs)
}

// TestWaitHonoursContext expects Wait to give up when its context ends before the task.
func TestWaitHonoursContext(t *testing.T) {
	provider := &gatedProvider{calls: make(chan chan model.Coordinate)}
	f := NewFilter(provider, 1000, zaptest.NewLogger(t))
	computeCtx, stop := context.WithCancel(context.Background())
	task := f.Compute(computeCtx, nil, nil)
	<-provider.calls

	waitCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := task.Wait(waitCtx)
	assert.ErrorIs(t, err, context.Canceled)

	stop()
	f.Wait()
	result, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

// TestLiteralGeocoder resolves a coordinate label and rejects a street address.
func TestLiteralGeocoder(t *testing.T) {
	c, err := LiteralGeocoder{}.ResolveCoordinate(context.Background(), "40.7128, -74.006")
	require.NoError(t, err)
	assert.Equal(t, model.Coordinate{Latitude: 40.7128, Longitude: -74.006}, c)

	_, err = LiteralGeocoder{}.ResolveCoordinate(context.Background(), "1 Main Street")
	assert.Error(t, err)
}

// countingGeocoder records the maximum number of concurrent calls.
type countingGeocoder struct {
	active  atomic.Int32
	maximum atomic.Int32
}

func (g *countingGeocoder) ResolveCoordinate(ctx context.Context, address string) (model.Coordinate, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		m := g.maximum.Load()
		if n <= m || g.maximum.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if address == "unknown" {
		return model.Coordinate{}, errors.New("not found")
	}
	return LiteralGeocoder{}.ResolveCoordinate(ctx, address)
}

// TestResolveAll geocodes several labels with two workers. It expects per request results in
// request order and never more than two concurrent calls.
func TestResolveAll(t *testing.T) {
	g := &countingGeocoder{}
	requests := []Request{
		{ID: "1", Address: "1,1"},
		{ID: "2", Address: "unknown"},
		{ID: "3", Address: "3,3"},
		{ID: "4", Address: "4,4"},
		{ID: "5", Address: "5,5"},
	}
	resolutions := ResolveAll(context.Background(), g, requests, 2)
	require.Len(t, resolutions, len(requests))
	for i, r := range resolutions {
		assert.Equal(t, requests[i].ID, r.ID)
	}
	assert.Error(t, resolutions[1].Err)
	assert.NoError(t, resolutions[0].Err)
	assert.Equal(t, model.Coordinate{Latitude: 3, Longitude: 3}, resolutions[2].Coordinate)
	assert.LessOrEqual(t, g.maximum.Load(), int32(2))
}
