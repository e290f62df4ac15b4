// Package stopindex holds the flat, per-stop packed arrays: one contiguous
// stop_routes[] slice and one contiguous transfers[] slice, addressed
// through a directory of offsets with a trailing sentinel entry.
package stopindex

import (
	"fmt"

	"gtfs-router/internal/ident"
)

// Transfer is a walkable footpath to another stop. Build rejects
// self-transfers and transfers of 1km or more; it does not check symmetry,
// which comes from the timetable builder adding every footpath both ways.
type Transfer struct {
	Target     ident.StopID
	DistanceKM float64
}

type dirEntry struct {
	routesOffset   int
	transfersOffset int
}

// Pattern is the per-stop input the builder hands to Build.
type Pattern struct {
	Stop      ident.StopID
	Routes    []ident.RouteID // ascending, unique
	Transfers []Transfer      // ascending by Target, unique
}

// Index is the immutable, read-only-after-construction packed stop layout.
type Index struct {
	stopRoutes []ident.RouteID
	transfers  []Transfer
	dir        []dirEntry // len = stopCount+1
}

// Build assembles the packed arrays from patterns, which must be supplied in
// ascending StopId order with one entry per StopId in [0,stopCount).
func Build(stopCount int, patterns []Pattern) (*Index, error) {
	idx := &Index{dir: make([]dirEntry, stopCount+1)}
	if len(patterns) != stopCount {
		return nil, fmt.Errorf("stopindex: got %d patterns, want %d (one per stop id)", len(patterns), stopCount)
	}
	for want, p := range patterns {
		if int(p.Stop) != want {
			return nil, fmt.Errorf("stopindex: patterns must be in ascending StopId order, got stop %d at position %d", p.Stop, want)
		}
		for _, tr := range p.Transfers {
			if tr.Target == p.Stop {
				return nil, fmt.Errorf("stopindex: self-transfer at stop %d", p.Stop)
			}
			if tr.DistanceKM >= 1.0 {
				return nil, fmt.Errorf("stopindex: transfer %d->%d distance %.3fkm exceeds 1km", p.Stop, tr.Target, tr.DistanceKM)
			}
		}
		idx.dir[want] = dirEntry{routesOffset: len(idx.stopRoutes), transfersOffset: len(idx.transfers)}
		idx.stopRoutes = append(idx.stopRoutes, p.Routes...)
		idx.transfers = append(idx.transfers, p.Transfers...)
	}
	idx.dir[stopCount] = dirEntry{routesOffset: len(idx.stopRoutes), transfersOffset: len(idx.transfers)}
	return idx, nil
}

// StopCount returns the number of stops in the index.
func (idx *Index) StopCount() int { return len(idx.dir) - 1 }

// Routes returns the RouteIds serving stop s, ascending, unique.
func (idx *Index) Routes(s ident.StopID) []ident.RouteID {
	return idx.stopRoutes[idx.dir[s].routesOffset:idx.dir[s+1].routesOffset]
}

// Transfers returns the footpaths available from stop s, ascending by
// target, unique.
func (idx *Index) Transfers(s ident.StopID) []Transfer {
	return idx.transfers[idx.dir[s].transfersOffset:idx.dir[s+1].transfersOffset]
}
