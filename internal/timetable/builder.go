// Package timetable builds the packed routeindex.Index and stopindex.Index
// from a parsed feed.Feed: it groups stop-times into routes and trips, sorts
// them into the order the packed arrays require, and drops any trip whose
// stop count disagrees with its route's modal (longest-observed) pattern —
// a known simplification that discards legitimate short-turn trips in
// exchange for satisfying the equal-length-per-route invariant everywhere
// else in the engine.
package timetable

import (
	"sort"

	"gtfs-router/internal/feed"
	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
	"gtfs-router/internal/routeindex"
	"gtfs-router/internal/stopindex"
)

// maxTransferKM is the spec's transfer-eligibility cutoff: footpaths must be
// strictly shorter than one kilometre.
const maxTransferKM = 1.0

// Built bundles the Registry (now locked) together with the two packed
// indices that the RAPTOR engine operates on.
type Built struct {
	Registry *ident.Registry
	Routes   *routeindex.Index
	Stops    *stopindex.Index
}

// Build consumes f once and produces a Built timetable.
func Build(f feed.Feed) (*Built, error) {
	reg := ident.New()

	for _, s := range f.Stops() {
		reg.InsertStop(s.ID)
	}
	for _, r := range f.Routes() {
		reg.InsertRoutePair(r.ID)
	}
	for _, tr := range f.Trips() {
		reg.InsertTrip(tr.ID)
	}
	for _, c := range f.Calendars() {
		reg.InsertService(c.ServiceID)
	}

	tripByID := make(map[string]feed.Trip, len(f.Trips()))
	for _, tr := range f.Trips() {
		tripByID[tr.ID] = tr
	}

	type routeTripKey = struct {
		route ident.RouteID
		trip  ident.TripID
	}
	grouped := make(map[routeTripKey][]routeindex.Block)
	stopRoutes := make(map[ident.StopID]map[ident.RouteID]struct{})

	for _, st := range f.StopTimes() {
		tr, ok := tripByID[st.TripID]
		if !ok {
			continue // malformed: stop_time references an unknown trip
		}
		stopID, err := reg.Stop(st.StopID)
		if err != nil {
			continue // malformed: stop_time references an unknown stop
		}
		routeID, err := reg.Route(tr.RouteID, ident.Direction(tr.DirectionID))
		if err != nil {
			continue // malformed: trip references a route never seen in routes.txt
		}
		serviceID := reg.InsertService(tr.ServiceID)
		tripID, err := reg.Trip(tr.ID)
		if err != nil {
			continue
		}

		key := routeTripKey{route: routeID, trip: tripID}
		grouped[key] = append(grouped[key], routeindex.Block{
			Trip:      tripID,
			Stop:      stopID,
			Service:   serviceID,
			Arrival:   geo.Seconds(st.ArrivalSeconds),
			Departure: geo.Seconds(st.DepartureSeconds),
		})

		if stopRoutes[stopID] == nil {
			stopRoutes[stopID] = make(map[ident.RouteID]struct{})
		}
		stopRoutes[stopID][routeID] = struct{}{}
	}

	reg.Lock()

	routePatterns, err := buildRoutePatterns(reg.RouteCount(), grouped)
	if err != nil {
		return nil, err
	}
	routes, err := routeindex.Build(reg.RouteCount(), routePatterns)
	if err != nil {
		return nil, err
	}

	stopPatterns := buildStopPatterns(reg, f, stopRoutes)
	stops, err := stopindex.Build(reg.StopCount(), stopPatterns)
	if err != nil {
		return nil, err
	}

	return &Built{Registry: reg, Routes: routes, Stops: stops}, nil
}

type tripGroup struct {
	trip   ident.TripID
	blocks []routeindex.Block
}

func buildRoutePatterns(routeCount int, grouped map[struct {
	route ident.RouteID
	trip  ident.TripID
}][]routeindex.Block) ([]routeindex.Pattern, error) {
	byRoute := make(map[ident.RouteID][]tripGroup, routeCount)
	for key, blocks := range grouped {
		sorted := append([]routeindex.Block(nil), blocks...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Departure < sorted[j].Departure })
		byRoute[key.route] = append(byRoute[key.route], tripGroup{trip: key.trip, blocks: sorted})
	}

	patterns := make([]routeindex.Pattern, routeCount)
	for r := 0; r < routeCount; r++ {
		routeID := ident.RouteID(r)
		trips := byRoute[routeID]
		sort.Slice(trips, func(i, j int) bool {
			return trips[i].blocks[0].Arrival < trips[j].blocks[0].Arrival
		})

		modal := 0
		for _, tg := range trips {
			if len(tg.blocks) > modal {
				modal = len(tg.blocks)
			}
		}

		var stops []ident.StopID
		var blocks []routeindex.Block
		tripCount := 0
		for _, tg := range trips {
			if len(tg.blocks) != modal {
				continue // drop partial-pattern (short-turn) trips
			}
			if stops == nil {
				stops = make([]ident.StopID, modal)
				for i, b := range tg.blocks {
					stops[i] = b.Stop
				}
			}
			blocks = append(blocks, tg.blocks...)
			tripCount++
		}
		patterns[r] = routeindex.Pattern{Route: routeID, Stops: stops, TripCount: tripCount, Blocks: blocks}
	}
	return patterns, nil
}

func buildStopPatterns(reg *ident.Registry, f feed.Feed, stopRoutes map[ident.StopID]map[ident.RouteID]struct{}) []stopindex.Pattern {
	stopCount := reg.StopCount()
	lat := make([]float64, stopCount)
	lon := make([]float64, stopCount)
	for _, s := range f.Stops() {
		id, err := reg.Stop(s.ID)
		if err != nil {
			continue
		}
		lat[id] = s.Lat
		lon[id] = s.Lon
	}

	transfers := make([][]stopindex.Transfer, stopCount)
	for i := 0; i < stopCount; i++ {
		for j := i + 1; j < stopCount; j++ {
			d := geo.GreatCircleKM(lat[i], lon[i], lat[j], lon[j])
			if d >= maxTransferKM {
				continue
			}
			transfers[i] = append(transfers[i], stopindex.Transfer{Target: ident.StopID(j), DistanceKM: d})
			transfers[j] = append(transfers[j], stopindex.Transfer{Target: ident.StopID(i), DistanceKM: d})
		}
	}

	patterns := make([]stopindex.Pattern, stopCount)
	for i := 0; i < stopCount; i++ {
		sort.Slice(transfers[i], func(a, b int) bool { return transfers[i][a].Target < transfers[i][b].Target })

		var routes []ident.RouteID
		for rid := range stopRoutes[ident.StopID(i)] {
			routes = append(routes, rid)
		}
		sort.Slice(routes, func(a, b int) bool { return routes[a] < routes[b] })

		patterns[i] = stopindex.Pattern{Stop: ident.StopID(i), Routes: routes, Transfers: transfers[i]}
	}
	return patterns
}
