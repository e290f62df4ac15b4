package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/feed"
)

func sampleFeed() *feed.InMemory {
	return &feed.InMemory{
		StopsData: []feed.Stop{
			{ID: "A", Name: "Alpha", Lat: 0.0000, Lon: 0.0000},
			{ID: "B", Name: "Beta", Lat: 0.0010, Lon: 0.0000},
			{ID: "C", Name: "Gamma", Lat: 0.0500, Lon: 0.0000},
		},
		RoutesData: []feed.Route{
			{ID: "R1", ShortName: "1"},
		},
		TripsData: []feed.Trip{
			{ID: "T1", RouteID: "R1", ServiceID: "WD", DirectionID: 0},
			{ID: "T2", RouteID: "R1", ServiceID: "WD", DirectionID: 0},
		},
		StopTimesData: []feed.StopTime{
			{TripID: "T1", StopID: "A", ArrivalSeconds: 0, DepartureSeconds: 0},
			{TripID: "T1", StopID: "B", ArrivalSeconds: 100, DepartureSeconds: 100},
			{TripID: "T1", StopID: "C", ArrivalSeconds: 300, DepartureSeconds: 300},
			{TripID: "T2", StopID: "A", ArrivalSeconds: 600, DepartureSeconds: 600},
			{TripID: "T2", StopID: "B", ArrivalSeconds: 700, DepartureSeconds: 700},
			{TripID: "T2", StopID: "C", ArrivalSeconds: 900, DepartureSeconds: 900},
		},
		CalendarsData: []feed.Calendar{
			{ServiceID: "WD"},
		},
	}
}

func TestBuildProducesConsistentIndices(t *testing.T) {
	built, err := Build(sampleFeed())
	require.NoError(t, err)

	stopA, err := built.Registry.Stop("A")
	require.NoError(t, err)
	stopB, err := built.Registry.Stop("B")
	require.NoError(t, err)

	routeID, err := built.Registry.Route("R1", 0)
	require.NoError(t, err)

	assert.Equal(t, 3, built.Routes.StopsCount(routeID))
	assert.Equal(t, 6, built.Routes.TripCount(routeID))

	cur := built.Routes.TripsFromStop(routeID, stopA)
	require.Equal(t, 2, cur.Len())
	assert.True(t, cur.At(0).Departure < cur.At(1).Departure)

	assert.Contains(t, built.Stops.Routes(stopA), routeID)
	assert.NotEmpty(t, built.Stops.Transfers(stopA))
	for _, tr := range built.Stops.Transfers(stopA) {
		assert.Equal(t, stopB, tr.Target)
	}
}

func TestBuildDropsShortTurnTrips(t *testing.T) {
	f := sampleFeed()
	f.TripsData = append(f.TripsData, feed.Trip{ID: "T3", RouteID: "R1", ServiceID: "WD", DirectionID: 0})
	f.StopTimesData = append(f.StopTimesData,
		feed.StopTime{TripID: "T3", StopID: "A", ArrivalSeconds: 1200, DepartureSeconds: 1200},
		feed.StopTime{TripID: "T3", StopID: "B", ArrivalSeconds: 1300, DepartureSeconds: 1300},
	)

	built, err := Build(f)
	require.NoError(t, err)

	routeID, err := built.Registry.Route("R1", 0)
	require.NoError(t, err)

	// T3 only visits 2 of the route's 3 modal stops, so it must be dropped.
	assert.Equal(t, 6, built.Routes.TripCount(routeID))
}
