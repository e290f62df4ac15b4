package routeindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
)

func block(trip, stop, svc int, arr, dep int64) Block {
	return Block{
		Trip:      ident.TripID(trip),
		Stop:      ident.StopID(stop),
		Service:   ident.ServiceID(svc),
		Arrival:   geo.Seconds(arr),
		Departure: geo.Seconds(dep),
	}
}

func TestBuildAndIterate(t *testing.T) {
	// route 0: stops [0,1,2], two trips.
	stops := []ident.StopID{0, 1, 2}
	blocks := []Block{
		block(10, 0, 0, 0, 0), block(10, 1, 0, 100, 100), block(10, 2, 0, 200, 200),
		block(11, 0, 0, 500, 500), block(11, 1, 0, 600, 600), block(11, 2, 0, 700, 700),
	}
	idx, err := Build(2, []Pattern{
		{Route: 0, Stops: stops, TripCount: 2, Blocks: blocks},
		{Route: 1, Stops: nil, TripCount: 0, Blocks: nil}, // unused direction
	})
	require.NoError(t, err)

	assert.Equal(t, 3, idx.StopsCount(0))
	assert.Equal(t, 6, idx.TripCount(0))
	assert.Equal(t, 0, idx.StopsCount(1))
	assert.Equal(t, 0, idx.TripCount(1))
	assert.Equal(t, stops, idx.Stops(0))

	cur := idx.TripsFromStop(0, 1)
	require.Equal(t, 2, cur.Len())
	assert.Equal(t, ident.TripID(10), cur.At(0).Trip)
	assert.Equal(t, ident.TripID(11), cur.At(1).Trip)
	assert.True(t, cur.At(0).Departure < cur.At(1).Departure)
}

func TestBuildRejectsMismatchedBlockCount(t *testing.T) {
	_, err := Build(1, []Pattern{
		{Route: 0, Stops: []ident.StopID{0, 1}, Blocks: []Block{{}}},
	})
	assert.Error(t, err)
}

func TestBuildRejectsOutOfOrderRoutes(t *testing.T) {
	_, err := Build(2, []Pattern{
		{Route: 1},
		{Route: 0},
	})
	assert.Error(t, err)
}
