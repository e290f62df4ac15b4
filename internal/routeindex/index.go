// Package routeindex holds the flat, per-route packed arrays described by
// the data model: one contiguous route_stops[] slice and one contiguous
// stop_times[] slice, addressed through a directory of offsets with a
// trailing sentinel entry so ranges are always computed as
// [dir[r], dir[r+1]) without special-casing the last route.
package routeindex

import (
	"fmt"

	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
)

// Block is one row of the stop_times table after grouping: a TripBlock in
// spec terms.
type Block struct {
	Trip      ident.TripID
	Stop      ident.StopID
	Service   ident.ServiceID
	Arrival   geo.Seconds
	Departure geo.Seconds
}

type dirEntry struct {
	stopsOffset int
	tripsOffset int
}

// Pattern is the per-route input the builder hands to New: the modal stop
// sequence plus every trip's blocks already concatenated in sorted order.
type Pattern struct {
	Route     ident.RouteID
	Stops     []ident.StopID
	TripCount int // number of trips contributing Blocks (Blocks == TripCount*len(Stops))
	Blocks    []Block
}

// Index is the immutable, read-only-after-construction packed route layout.
// It is safe to share by reference across concurrent readers.
type Index struct {
	routeStops []ident.StopID
	stopTimes  []Block
	dir        []dirEntry // len = routeCount+1
}

// Build assembles the packed arrays from patterns, which must be supplied in
// ascending RouteId order and must contain one entry per RouteId in
// [0,routeCount) — including routes with no trips at all (StopsCount==0),
// e.g. a direction of a GTFS route that no trip ever used.
func Build(routeCount int, patterns []Pattern) (*Index, error) {
	idx := &Index{dir: make([]dirEntry, routeCount+1)}
	if len(patterns) != routeCount {
		return nil, fmt.Errorf("routeindex: got %d patterns, want %d (one per route id)", len(patterns), routeCount)
	}
	for want, p := range patterns {
		if int(p.Route) != want {
			return nil, fmt.Errorf("routeindex: patterns must be in ascending RouteId order, got route %d at position %d", p.Route, want)
		}
		if len(p.Stops) > 0 && len(p.Blocks)%len(p.Stops) != 0 {
			return nil, fmt.Errorf("routeindex: route %d has %d blocks, not a multiple of %d stops", p.Route, len(p.Blocks), len(p.Stops))
		}
		idx.dir[want] = dirEntry{stopsOffset: len(idx.routeStops), tripsOffset: len(idx.stopTimes)}
		idx.routeStops = append(idx.routeStops, p.Stops...)
		idx.stopTimes = append(idx.stopTimes, p.Blocks...)
	}
	idx.dir[routeCount] = dirEntry{stopsOffset: len(idx.routeStops), tripsOffset: len(idx.stopTimes)}
	return idx, nil
}

// RouteCount returns the number of internal routes in the index.
func (idx *Index) RouteCount() int { return len(idx.dir) - 1 }

// StopsCount returns the length of the stop sequence of route r.
func (idx *Index) StopsCount(r ident.RouteID) int {
	return idx.dir[r+1].stopsOffset - idx.dir[r].stopsOffset
}

// TripCount returns the number of TripBlocks (trips_per_route * stops_count)
// of route r.
func (idx *Index) TripCount(r ident.RouteID) int {
	return idx.dir[r+1].tripsOffset - idx.dir[r].tripsOffset
}

// Stops returns the ordered stop sequence of route r.
func (idx *Index) Stops(r ident.RouteID) []ident.StopID {
	return idx.routeStops[idx.dir[r].stopsOffset:idx.dir[r+1].stopsOffset]
}

// Trips returns the concatenated TripBlocks of every trip of route r, in
// sorted trip order.
func (idx *Index) Trips(r ident.RouteID) []Block {
	return idx.stopTimes[idx.dir[r].tripsOffset:idx.dir[r+1].tripsOffset]
}

// BlockAt returns the TripBlock of the tripOrdinal-th trip of route r at
// stop-sequence position pos. tripOrdinal indexes trips in the same sorted
// order StopCursor.At does (ascending by first-stop arrival).
func (idx *Index) BlockAt(r ident.RouteID, tripOrdinal, pos int) Block {
	stopsCount := idx.StopsCount(r)
	return idx.stopTimes[idx.dir[r].tripsOffset+tripOrdinal*stopsCount+pos]
}

// StopPosition returns the index of stop s within route r's stop sequence,
// or -1 if r does not serve s.
func (idx *Index) StopPosition(r ident.RouteID, s ident.StopID) int {
	for i, st := range idx.Stops(r) {
		if st == s {
			return i
		}
	}
	return -1
}

// StopCursor is a jumping-stride view over the TripBlocks of one stop across
// every trip of a route: StopCursor.At(i) is the i-th trip's block at that
// stop. Cursors are zero-copy views into the shared stop_times array.
type StopCursor struct {
	blocks []Block
	offset int
	stride int
	n      int
}

// Len returns the number of trips visible through the cursor.
func (c StopCursor) Len() int { return c.n }

// At returns the i-th trip's TripBlock at the cursor's stop. Successive
// elements are ordered by Departure ascending (Route invariant), so a linear
// scan from i=0 finds the earliest feasible trip.
func (c StopCursor) At(i int) Block { return c.blocks[c.offset+i*c.stride] }

// TripsFromStop returns a stride-stepping cursor over the TripBlock of every
// trip of route r at stop s. Used by the engine to find "the earliest trip
// departing s on r strictly after t".
func (idx *Index) TripsFromStop(r ident.RouteID, s ident.StopID) StopCursor {
	stride := idx.StopsCount(r)
	pos := idx.StopPosition(r, s)
	if pos < 0 || stride == 0 {
		return StopCursor{}
	}
	n := idx.TripCount(r) / stride
	return StopCursor{
		blocks: idx.stopTimes,
		offset: idx.dir[r].tripsOffset + pos,
		stride: stride,
		n:      n,
	}
}
