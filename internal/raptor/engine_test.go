package raptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/feed"
	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
	"gtfs-router/internal/timetable"
)

// twoRouteFeed builds A -> B -> C on route R1, and C -> D on route R2, with
// a transfer required at C. Stops are placed well over the 1km transfer
// threshold apart so the only way between routes is riding, never walking;
// T1 departs A at 60s (not 0s) because boarding requires a trip to leave
// strictly after a passenger's arrival at the stop, and a query departing at
// 0s would otherwise find no catchable trip at all.
func twoRouteFeed() *feed.InMemory {
	return &feed.InMemory{
		StopsData: []feed.Stop{
			{ID: "A", Name: "A", Lat: 0.00, Lon: 0.00},
			{ID: "B", Name: "B", Lat: 0.01, Lon: 0.00},
			{ID: "C", Name: "C", Lat: 0.02, Lon: 0.00},
			{ID: "D", Name: "D", Lat: 0.02, Lon: 0.03},
		},
		RoutesData: []feed.Route{
			{ID: "R1", ShortName: "1"},
			{ID: "R2", ShortName: "2"},
		},
		TripsData: []feed.Trip{
			{ID: "T1", RouteID: "R1", ServiceID: "WD", DirectionID: 0},
			{ID: "T2", RouteID: "R2", ServiceID: "WD", DirectionID: 0},
		},
		StopTimesData: []feed.StopTime{
			{TripID: "T1", StopID: "A", ArrivalSeconds: 60, DepartureSeconds: 60},
			{TripID: "T1", StopID: "B", ArrivalSeconds: 360, DepartureSeconds: 360},
			{TripID: "T1", StopID: "C", ArrivalSeconds: 660, DepartureSeconds: 660},
			{TripID: "T2", StopID: "C", ArrivalSeconds: 900, DepartureSeconds: 900},
			{TripID: "T2", StopID: "D", ArrivalSeconds: 1200, DepartureSeconds: 1200},
		},
		CalendarsData: []feed.Calendar{{ServiceID: "WD"}},
	}
}

// transferFeed builds A -> C on route R1 and D -> E on route R2, with C and
// D placed under the 1km transfer threshold apart (and every other stop
// pair well clear of it) so the only way from C to D is a walking transfer.
// T2 departs D at 1400s, comfortably after the ~1200s a passenger arrives at
// D by walking from C (660s arrival + walk + transfer penalty), so the
// transfer is actually catchable.
func transferFeed() *feed.InMemory {
	return &feed.InMemory{
		StopsData: []feed.Stop{
			{ID: "A", Name: "A", Lat: 0.00, Lon: 0.00},
			{ID: "C", Name: "C", Lat: 0.01, Lon: 0.00},
			{ID: "D", Name: "D", Lat: 0.015, Lon: 0.00},
			{ID: "E", Name: "E", Lat: 0.05, Lon: 0.05},
		},
		RoutesData: []feed.Route{
			{ID: "R1", ShortName: "1"},
			{ID: "R2", ShortName: "2"},
		},
		TripsData: []feed.Trip{
			{ID: "T1", RouteID: "R1", ServiceID: "WD", DirectionID: 0},
			{ID: "T2", RouteID: "R2", ServiceID: "WD", DirectionID: 0},
		},
		StopTimesData: []feed.StopTime{
			{TripID: "T1", StopID: "A", ArrivalSeconds: 60, DepartureSeconds: 60},
			{TripID: "T1", StopID: "C", ArrivalSeconds: 660, DepartureSeconds: 660},
			{TripID: "T2", StopID: "D", ArrivalSeconds: 1400, DepartureSeconds: 1400},
			{TripID: "T2", StopID: "E", ArrivalSeconds: 1700, DepartureSeconds: 1700},
		},
		CalendarsData: []feed.Calendar{{ServiceID: "WD"}},
	}
}

func buildEngineFor(t *testing.T, f *feed.InMemory) (*Engine, *timetable.Built) {
	t.Helper()
	built, err := timetable.Build(f)
	require.NoError(t, err)
	e := New(built.Registry, built.Routes, built.Stops)
	require.NoError(t, e.SetOptions(geo.Normal, "WD"))
	return e, built
}

func buildEngine(t *testing.T) (*Engine, *timetable.Built) {
	t.Helper()
	return buildEngineFor(t, twoRouteFeed())
}

func stopID(t *testing.T, built *timetable.Built, gtfsID string) ident.StopID {
	t.Helper()
	id, err := built.Registry.Stop(gtfsID)
	require.NoError(t, err)
	return id
}

func TestFindRidesAcrossTwoRoutesWithTransfer(t *testing.T) {
	e, built := buildEngine(t)
	a := stopID(t, built, "A")
	d := stopID(t, built, "D")

	j, err := e.Find([]ident.StopID{a}, []ident.StopID{d}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, j.Legs)

	var rides int
	for _, leg := range j.Legs {
		if leg.Ride != nil {
			rides++
		}
	}
	assert.Equal(t, 2, rides)
	assert.Equal(t, geo.Seconds(1200), j.Arrival)
}

// TestFindWalksATransferBetweenRoutes exercises scanTransfers end to end:
// the only way from C to D is a walking transfer, so a successful Find from
// A to E must contain exactly one Walk leg between them with the engine's
// actual penalty-plus-pace timing.
func TestFindWalksATransferBetweenRoutes(t *testing.T) {
	e, built := buildEngineFor(t, transferFeed())
	a := stopID(t, built, "A")
	c := stopID(t, built, "C")
	d := stopID(t, built, "D")
	eStop := stopID(t, built, "E")

	j, err := e.Find([]ident.StopID{a}, []ident.StopID{eStop}, 0)
	require.NoError(t, err)

	var walks []Leg
	var rides int
	for _, leg := range j.Legs {
		switch {
		case leg.Walk != nil:
			walks = append(walks, leg)
		case leg.Ride != nil:
			rides++
		}
	}
	require.Len(t, walks, 1)
	assert.Equal(t, 2, rides)

	w := walks[0].Walk
	assert.Equal(t, c, w.From.Stop)
	assert.Equal(t, d, w.To.Stop)

	distKM := geo.GreatCircleKM(0.01, 0.00, 0.015, 0.00)
	require.Less(t, distKM, 1.0, "fixture must place C and D within the transfer threshold")
	wantWalkSeconds := geo.WalkTime(distKM, geo.Normal) + transferPenaltySeconds
	assert.Equal(t, w.From.Time+wantWalkSeconds, w.To.Time)

	assert.Equal(t, geo.Seconds(660), w.From.Time)
	assert.Equal(t, geo.Seconds(1700), j.Arrival)
}

func TestFindReturnsSameEndpointsError(t *testing.T) {
	e, built := buildEngine(t)
	a := stopID(t, built, "A")

	_, err := e.Find([]ident.StopID{a}, []ident.StopID{a}, 0)
	assert.Error(t, err)
	var same *SameEndpointsError
	assert.ErrorAs(t, err, &same)
}

func TestFindReturnsUnreachableWhenServiceNeverMatches(t *testing.T) {
	f := twoRouteFeed()
	f.CalendarsData = append(f.CalendarsData, feed.Calendar{ServiceID: "WE"})
	built, err := timetable.Build(f)
	require.NoError(t, err)
	e := New(built.Registry, built.Routes, built.Stops)
	require.NoError(t, e.SetOptions(geo.Normal, "WE"))

	a := stopID(t, built, "A")
	d := stopID(t, built, "D")

	_, err = e.Find([]ident.StopID{a}, []ident.StopID{d}, 0)
	var unreachable *UnreachableError
	assert.ErrorAs(t, err, &unreachable)
}

func TestFindRejectsUnconfiguredEngine(t *testing.T) {
	built, err := timetable.Build(twoRouteFeed())
	require.NoError(t, err)
	e := New(built.Registry, built.Routes, built.Stops)

	a := stopID(t, built, "A")
	d := stopID(t, built, "D")
	_, err = e.Find([]ident.StopID{a}, []ident.StopID{d}, 0)
	var notConfigured *NotConfiguredError
	assert.ErrorAs(t, err, &notConfigured)
}
