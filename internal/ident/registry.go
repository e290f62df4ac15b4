// Package ident implements the bijective string<->dense-integer mapping
// used by every other package in this module: StopId, RouteId, TripId and
// ServiceId are all dense, zero-based indices handed out by a Registry.
package ident

import "fmt"

// StopID, RouteID, TripID and ServiceID are disjoint dense index spaces.
// The maximum value of each type is reserved as the "undefined" sentinel.
type (
	StopID    uint32
	RouteID   uint32
	TripID    uint32
	ServiceID uint32
)

// NoStop, NoRoute, NoTrip and NoService are the sentinel "undefined" values
// for each id space, mirroring the original's use of the maximum
// representable value.
const (
	NoStop    StopID    = ^StopID(0)
	NoRoute   RouteID   = ^RouteID(0)
	NoTrip    TripID    = ^TripID(0)
	NoService ServiceID = ^ServiceID(0)
)

// Direction is the GTFS direction_id bit a route was split on.
type Direction uint8

const (
	DirectionDefault  Direction = 0
	DirectionOpposite Direction = 1
)

// RouteKey is the lookup key for the internal route space: a GTFS route is
// split into two internal routes, one per direction bit.
type RouteKey struct {
	GTFSRouteID string
	Direction   Direction
}

// UnknownIDError is returned when a string id has no registered mapping.
// It carries the offending string so callers (and the engine's configured
// service lookup) can surface it unchanged.
type UnknownIDError struct {
	Kind string
	ID   string
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("ident: unknown %s id %q", e.Kind, e.ID)
}

// Registry holds the four bijective maps. A single instance is built once
// per feed, then Locked; after Lock, Insert* calls are silently ignored so
// later readers can share the Registry by reference without synchronisation.
type Registry struct {
	locked bool

	stopFwd map[string]StopID
	stopRev []string

	routeFwd map[RouteKey]RouteID
	routeRev []RouteKey

	tripFwd map[string]TripID
	tripRev []string

	serviceFwd map[string]ServiceID
	serviceRev []string
}

// New returns an empty, unlocked Registry.
func New() *Registry {
	return &Registry{
		stopFwd:    make(map[string]StopID),
		routeFwd:   make(map[RouteKey]RouteID),
		tripFwd:    make(map[string]TripID),
		serviceFwd: make(map[string]ServiceID),
	}
}

// Lock freezes the Registry. Subsequent Insert* calls are no-ops.
func (r *Registry) Lock() { r.locked = true }

// Locked reports whether the Registry has been frozen.
func (r *Registry) Locked() bool { return r.locked }

// InsertStop registers id if absent and returns its StopID (existing or
// freshly assigned). After Lock, an unseen id is ignored and NoStop is
// returned.
func (r *Registry) InsertStop(id string) StopID {
	if sid, ok := r.stopFwd[id]; ok {
		return sid
	}
	if r.locked {
		return NoStop
	}
	sid := StopID(len(r.stopRev))
	r.stopFwd[id] = sid
	r.stopRev = append(r.stopRev, id)
	return sid
}

// InsertRoutePair registers both internal routes (direction 0 and 1) for a
// single GTFS route id, as the builder must do for every GTFS route
// regardless of which directions are actually used by a trip.
func (r *Registry) InsertRoutePair(gtfsRouteID string) (dir0, dir1 RouteID) {
	dir0 = r.insertRoute(RouteKey{GTFSRouteID: gtfsRouteID, Direction: DirectionDefault})
	dir1 = r.insertRoute(RouteKey{GTFSRouteID: gtfsRouteID, Direction: DirectionOpposite})
	return dir0, dir1
}

func (r *Registry) insertRoute(key RouteKey) RouteID {
	if rid, ok := r.routeFwd[key]; ok {
		return rid
	}
	if r.locked {
		return NoRoute
	}
	rid := RouteID(len(r.routeRev))
	r.routeFwd[key] = rid
	r.routeRev = append(r.routeRev, key)
	return rid
}

// InsertTrip registers id if absent and returns its TripID.
func (r *Registry) InsertTrip(id string) TripID {
	if tid, ok := r.tripFwd[id]; ok {
		return tid
	}
	if r.locked {
		return NoTrip
	}
	tid := TripID(len(r.tripRev))
	r.tripFwd[id] = tid
	r.tripRev = append(r.tripRev, id)
	return tid
}

// InsertService registers id if absent and returns its ServiceID.
func (r *Registry) InsertService(id string) ServiceID {
	if sid, ok := r.serviceFwd[id]; ok {
		return sid
	}
	if r.locked {
		return NoService
	}
	sid := ServiceID(len(r.serviceRev))
	r.serviceFwd[id] = sid
	r.serviceRev = append(r.serviceRev, id)
	return sid
}

// Stop looks up the StopID for a GTFS stop_id string.
func (r *Registry) Stop(id string) (StopID, error) {
	if sid, ok := r.stopFwd[id]; ok {
		return sid, nil
	}
	return NoStop, &UnknownIDError{Kind: "stop", ID: id}
}

// Route looks up the RouteID for a (gtfs route id, direction) pair.
func (r *Registry) Route(gtfsRouteID string, dir Direction) (RouteID, error) {
	if rid, ok := r.routeFwd[RouteKey{GTFSRouteID: gtfsRouteID, Direction: dir}]; ok {
		return rid, nil
	}
	return NoRoute, &UnknownIDError{Kind: "route", ID: gtfsRouteID}
}

// Trip looks up the TripID for a GTFS trip_id string.
func (r *Registry) Trip(id string) (TripID, error) {
	if tid, ok := r.tripFwd[id]; ok {
		return tid, nil
	}
	return NoTrip, &UnknownIDError{Kind: "trip", ID: id}
}

// Service looks up the ServiceID for a GTFS service_id string.
func (r *Registry) Service(id string) (ServiceID, error) {
	if sid, ok := r.serviceFwd[id]; ok {
		return sid, nil
	}
	return NoService, &UnknownIDError{Kind: "service", ID: id}
}

// StopString reverses a StopID back to its GTFS stop_id string.
func (r *Registry) StopString(id StopID) (string, error) {
	if int(id) < len(r.stopRev) {
		return r.stopRev[id], nil
	}
	return "", &UnknownIDError{Kind: "stop", ID: fmt.Sprintf("#%d", id)}
}

// RouteKeyOf reverses a RouteID back to its (gtfs route id, direction) pair.
func (r *Registry) RouteKeyOf(id RouteID) (RouteKey, error) {
	if int(id) < len(r.routeRev) {
		return r.routeRev[id], nil
	}
	return RouteKey{}, &UnknownIDError{Kind: "route", ID: fmt.Sprintf("#%d", id)}
}

// TripString reverses a TripID back to its GTFS trip_id string.
func (r *Registry) TripString(id TripID) (string, error) {
	if int(id) < len(r.tripRev) {
		return r.tripRev[id], nil
	}
	return "", &UnknownIDError{Kind: "trip", ID: fmt.Sprintf("#%d", id)}
}

// ServiceString reverses a ServiceID back to its GTFS service_id string.
func (r *Registry) ServiceString(id ServiceID) (string, error) {
	if int(id) < len(r.serviceRev) {
		return r.serviceRev[id], nil
	}
	return "", &UnknownIDError{Kind: "service", ID: fmt.Sprintf("#%d", id)}
}

func (r *Registry) StopCount() int    { return len(r.stopRev) }
func (r *Registry) RouteCount() int   { return len(r.routeRev) }
func (r *Registry) TripCount() int    { return len(r.tripRev) }
func (r *Registry) ServiceCount() int { return len(r.serviceRev) }
