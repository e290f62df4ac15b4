// Package raptor implements the round-based earliest-arrival search over a
// packed timetable: each round extends every currently improved stop by one
// more public-transit ride, then by one more walking transfer, until a round
// improves nothing.
package raptor

import (
	"fmt"
	"sort"

	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
	"gtfs-router/internal/routeindex"
	"gtfs-router/internal/stopindex"
)

// transferPenaltySeconds is added to every walking transfer to account for
// the time spent actually getting up and moving, not just the walk itself.
const transferPenaltySeconds geo.Seconds = 60

// maxTransferSeconds caps how long a single walking transfer may take;
// a walk (before the transfer penalty) of this length or longer is not
// offered as a same-round transfer option.
const maxTransferSeconds geo.Seconds = 600

// UnknownStopError is returned when a caller passes a StopId the engine's
// registry never assigned.
type UnknownStopError struct {
	Stop ident.StopID
}

func (e *UnknownStopError) Error() string {
	return fmt.Sprintf("raptor: stop id %d is not part of this timetable", e.Stop)
}

// SameEndpointsError is returned when the start and end stop sets are
// identical — there is nothing to route.
type SameEndpointsError struct{}

func (e *SameEndpointsError) Error() string { return "raptor: start and end stop sets are identical" }

// UnreachableError is returned when no journey from any start to any end
// stop exists within the round cap.
type UnreachableError struct{}

func (e *UnreachableError) Error() string { return "raptor: destination is unreachable from origin" }

// NotConfiguredError is returned by Find when SetOptions was never called to
// pick a service day to search within.
type NotConfiguredError struct{}

func (e *NotConfiguredError) Error() string {
	return "raptor: engine has no service id configured, call SetOptions first"
}

// Engine holds one immutable, already-built timetable plus the query options
// that affect every Find call: walking pace and which service day to
// restrict trips to. Engines are safe for concurrent Find calls once
// SetOptions has completed; SetOptions itself is not concurrency-safe.
type Engine struct {
	registry *ident.Registry
	routes   *routeindex.Index
	stops    *stopindex.Index

	walkingSpeed geo.WalkingSpeed
	service      ident.ServiceID
	hasService   bool
}

// New wraps an already-built registry and pair of packed indices in a
// ready-to-configure Engine.
func New(registry *ident.Registry, routes *routeindex.Index, stops *stopindex.Index) *Engine {
	return &Engine{registry: registry, routes: routes, stops: stops, walkingSpeed: geo.Normal}
}

// SetOptions fixes the walking pace and the GTFS service_id trips must match
// to be boardable. serviceID must name a service the registry knows about.
func (e *Engine) SetOptions(speed geo.WalkingSpeed, serviceID string) error {
	sid, err := e.registry.Service(serviceID)
	if err != nil {
		return err
	}
	e.walkingSpeed = speed
	e.service = sid
	e.hasService = true
	return nil
}

// label is one stop's best-known state within a single round: how to get
// here, and when.
type label struct {
	arrival        geo.Seconds // offset from the query's departure time; geo.Inf if unreached this round
	prev           ident.StopID
	viaRide        bool
	trip           ident.TripID
	route          ident.RouteID
	board          ident.StopID
	boardDeparture geo.Seconds // offset of the boarded trip's departure at board
}

// Find runs the round-based search from every stop in starts (all at
// departure) to the earliest reachable stop in ends, and reconstructs the
// winning Journey.
func (e *Engine) Find(starts, ends []ident.StopID, departure geo.Seconds) (Journey, error) {
	if !e.hasService {
		return Journey{}, &NotConfiguredError{}
	}
	stopCount := e.stops.StopCount()
	for _, s := range starts {
		if int(s) >= stopCount {
			return Journey{}, &UnknownStopError{Stop: s}
		}
	}
	for _, s := range ends {
		if int(s) >= stopCount {
			return Journey{}, &UnknownStopError{Stop: s}
		}
	}
	if sameSets(starts, ends) {
		return Journey{}, &SameEndpointsError{}
	}

	endSet := make(map[ident.StopID]struct{}, len(ends))
	for _, s := range ends {
		endSet[s] = struct{}{}
	}

	earliest := make([]geo.Seconds, stopCount)
	for i := range earliest {
		earliest[i] = geo.Inf
	}
	bestEnd := geo.Inf
	bestEndStop := ident.NoStop
	bestEndRound := 0

	marked := make(map[ident.StopID]struct{}, len(starts))
	rounds := [][]label{make([]label, stopCount)}
	for i := range rounds[0] {
		rounds[0][i] = label{arrival: geo.Inf, prev: ident.NoStop}
	}
	for _, s := range starts {
		rounds[0][s] = label{arrival: 0, prev: ident.NoStop}
		earliest[s] = 0
		marked[s] = struct{}{}
		if _, isEnd := endSet[s]; isEnd && 0 < bestEnd {
			bestEnd, bestEndStop, bestEndRound = 0, s, 0
		}
	}

	roundCap := stopCount + 1
	k := 0
	for len(marked) > 0 && k < roundCap {
		k++
		rounds = append(rounds, append([]label(nil), rounds[k-1]...))
		prevRound := rounds[k-1]
		thisRound := rounds[k]

		boarding := e.collectBoardingStops(marked)
		marked = make(map[ident.StopID]struct{})

		for route, pos := range boarding {
			e.scanRoute(route, pos, departure, prevRound, thisRound, earliest, &bestEnd, &bestEndStop, &bestEndRound, k, marked, endSet)
		}

		e.scanTransfers(thisRound, earliest, &bestEnd, &bestEndStop, &bestEndRound, k, marked, endSet)
	}

	if bestEndStop == ident.NoStop {
		return Journey{}, &UnreachableError{}
	}
	return e.reconstruct(rounds, bestEndRound, bestEndStop, departure, bestEnd), nil
}

func sameSets(a, b []ident.StopID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// collectBoardingStops returns, for every route served by a marked stop,
// the earliest (lowest stop-sequence position) marked stop on that route —
// the position RAPTOR should start scanning the route from this round.
func (e *Engine) collectBoardingStops(marked map[ident.StopID]struct{}) map[ident.RouteID]int {
	boarding := make(map[ident.RouteID]int)
	for stop := range marked {
		for _, route := range e.stops.Routes(stop) {
			pos := e.routes.StopPosition(route, stop)
			if pos < 0 {
				continue
			}
			if existing, ok := boarding[route]; !ok || pos < existing {
				boarding[route] = pos
			}
		}
	}
	return boarding
}

// scanRoute walks route's stop sequence forward from startPos, riding the
// earliest trip it can board at each stop and relaxing every downstream
// stop's label against the trip it currently holds.
func (e *Engine) scanRoute(
	route ident.RouteID, startPos int, departure geo.Seconds,
	prevRound, thisRound []label, earliest []geo.Seconds,
	bestEnd *geo.Seconds, bestEndStop *ident.StopID, bestEndRound *int, round int,
	marked map[ident.StopID]struct{}, endSet map[ident.StopID]struct{},
) {
	stops := e.routes.Stops(route)
	stopsCount := len(stops)
	curTrip := -1
	var boardStop ident.StopID
	var boardDeparture geo.Seconds

	for pos := startPos; pos < stopsCount; pos++ {
		stop := stops[pos]

		if curTrip >= 0 {
			block := e.routes.BlockAt(route, curTrip, pos)
			candidate := block.Arrival - departure
			if candidate < earliest[stop] && candidate < *bestEnd {
				thisRound[stop] = label{arrival: candidate, prev: boardStop, viaRide: true, trip: block.Trip, route: route, board: boardStop, boardDeparture: boardDeparture}
				earliest[stop] = candidate
				marked[stop] = struct{}{}
				if _, isEnd := endSet[stop]; isEnd && candidate < *bestEnd {
					*bestEnd, *bestEndStop, *bestEndRound = candidate, stop, round
				}
			}
		}

		prevArrival := prevRound[stop].arrival
		if prevArrival >= geo.Inf {
			continue
		}
		wantDeparture := departure + prevArrival
		if ord, ok := e.earliestBoardableTrip(route, stop, wantDeparture); ok {
			if curTrip < 0 || ord < curTrip {
				curTrip = ord
				boardStop = stop
				boardDeparture = e.routes.BlockAt(route, ord, pos).Departure - departure
			}
		}
	}
}

// earliestBoardableTrip finds the lowest-ordinal trip of route serving stop
// whose Departure is strictly later than notBefore (a passenger already
// standing at the stop at notBefore cannot catch a trip leaving at that same
// instant) and whose Service matches the engine's configured service day.
func (e *Engine) earliestBoardableTrip(route ident.RouteID, stop ident.StopID, notBefore geo.Seconds) (int, bool) {
	cur := e.routes.TripsFromStop(route, stop)
	for i := 0; i < cur.Len(); i++ {
		block := cur.At(i)
		if block.Departure <= notBefore {
			continue
		}
		if block.Service != e.service {
			continue
		}
		return i, true
	}
	return 0, false
}

// scanTransfers offers a single walking transfer from every stop that was
// improved by a ride this round. Transfers never chain: a stop reached only
// by walking this round does not itself offer outgoing transfers.
func (e *Engine) scanTransfers(
	thisRound []label, earliest []geo.Seconds,
	bestEnd *geo.Seconds, bestEndStop *ident.StopID, bestEndRound *int, round int,
	marked map[ident.StopID]struct{}, endSet map[ident.StopID]struct{},
) {
	rideMarked := make([]ident.StopID, 0, len(marked))
	for stop := range marked {
		if thisRound[stop].viaRide {
			rideMarked = append(rideMarked, stop)
		}
	}
	sort.Slice(rideMarked, func(i, j int) bool { return rideMarked[i] < rideMarked[j] })

	for _, stop := range rideMarked {
		if !thisRound[stop].viaRide {
			continue // overwritten by a walk earlier in this loop
		}
		base := thisRound[stop].arrival
		for _, tr := range e.stops.Transfers(stop) {
			walk := geo.WalkTime(tr.DistanceKM, e.walkingSpeed) + transferPenaltySeconds
			if walk-transferPenaltySeconds >= maxTransferSeconds {
				continue
			}
			candidate := base + walk
			if candidate < earliest[tr.Target] && candidate < *bestEnd {
				thisRound[tr.Target] = label{arrival: candidate, prev: stop, viaRide: false}
				earliest[tr.Target] = candidate
				marked[tr.Target] = struct{}{}
				if _, isEnd := endSet[tr.Target]; isEnd && candidate < *bestEnd {
					*bestEnd, *bestEndStop, *bestEndRound = candidate, tr.Target, round
				}
			}
		}
	}
}
